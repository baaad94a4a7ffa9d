package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/internal/middleware"
	"retreat_app_echo/internal/session"
	"retreat_app_echo/web/templates/shared"
)

// pageProps builds the chrome every page needs from the request.
func pageProps(c echo.Context, title, activeNav string, crumbs ...shared.Breadcrumb) shared.PageProps {
	props := shared.PageProps{
		Title:       title,
		ActiveNav:   activeNav,
		Breadcrumbs: append([]shared.Breadcrumb{{Title: "Home", URL: "/dashboard"}}, crumbs...),
		UserEmail:   getStringFromContext(c, "userEmail"),
		UserUID:     getStringFromContext(c, "userUID"),
		Flash:       c.QueryParam("flash"),
	}
	if code := c.QueryParam("error"); code == "unauthorized" {
		props.Error = "You do not have access to that page."
	} else {
		props.Error = code
	}
	props.IsAdmin = middleware.RealSession(c).IsAdmin()
	props.Impersonating = middleware.Impersonating(c)
	return props
}

func render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	return component.Render(c.Request().Context(), c.Response())
}

// redirectWith sends the browser to path with a flash or error message.
func redirectWith(c echo.Context, path, key, message string) error {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return c.Redirect(http.StatusSeeOther, path+sep+key+"="+url.QueryEscape(message))
}

// currentUser returns the effective session. Routes behind RequireAuth always
// have one.
func currentUser(c echo.Context) (*session.Session, error) {
	s := middleware.EffectiveSession(c)
	if s == nil {
		return nil, apperr.Unauthenticated("Authentication required")
	}
	return s, nil
}

func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.Invalid(fmt.Sprintf("Invalid %s", name), nil)
	}
	return uint(id), nil
}

func formID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.FormValue(name)), 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.Invalid(fmt.Sprintf("Invalid %s", name), map[string]string{name: "required"})
	}
	return uint(id), nil
}

// CustomValidator adapts go-playground/validator to echo.
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// bindAndValidate decodes the body into dst and runs its validate tags.
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Invalid("Invalid request body", nil)
	}
	if err := c.Validate(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return apperr.Invalid("Invalid request", fields)
		}
		return apperr.Invalid(err.Error(), nil)
	}
	return nil
}

// Helper to safely get string from context
func getStringFromContext(c echo.Context, key string) string {
	val := c.Get(key)
	if val == nil {
		return ""
	}
	strVal, ok := val.(string)
	if !ok {
		return ""
	}
	return strVal
}

func queryID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.QueryParam(name)), 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.Invalid(fmt.Sprintf("Invalid %s", name), nil)
	}
	return uint(id), nil
}
