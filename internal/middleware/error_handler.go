package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"retreat_app_echo/internal/apperr"
	"retreat_app_echo/web/templates/pages"
	"retreat_app_echo/web/templates/shared"
)

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// resolveError maps err to a status code, a page title and a public message.
func resolveError(err error) (int, string, string, map[string]string) {
	code := http.StatusInternalServerError
	message := ""
	var fields map[string]string

	if ae, ok := apperr.As(err); ok {
		code = apperr.HTTPStatus(ae)
		message = apperr.PublicMessage(ae)
		fields = ae.Fields
	} else if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			message = msg
		}
	}

	title := "Internal Server Error"
	switch code {
	case http.StatusNotFound:
		title = "Page Not Found"
		if message == "" {
			message = "The page you're looking for doesn't exist."
		}
	case http.StatusForbidden:
		title = "Access Denied"
		if message == "" {
			message = "You don't have permission to access this resource."
		}
	case http.StatusUnauthorized:
		title = "Unauthorized"
		if message == "" {
			message = "Please log in to continue."
		}
	case http.StatusBadRequest:
		title = "Bad Request"
		if message == "" {
			message = "The request could not be processed."
		}
	case http.StatusConflict:
		title = "Already Processed"
	case http.StatusBadGateway:
		title = "Payment Provider Error"
	case http.StatusTooManyRequests:
		title = "Too Many Requests"
	}
	if message == "" {
		message = "Something went wrong. Please try again later."
	}
	return code, title, message, fields
}

// CustomErrorHandler answers API requests with JSON and everything else with
// a rendered error page.
func CustomErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, title, message, fields := resolveError(err)

		fieldsLog := []zap.Field{
			zap.Int("status", code),
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		}
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", fieldsLog...)
		} else {
			logger.Debug("request rejected", fieldsLog...)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		if IsAPIRequest(c) {
			if err := c.JSON(code, ErrorResponse{Error: message, Fields: fields}); err != nil {
				logger.Error("failed to write error response", zap.Error(err))
			}
			return
		}

		props := pages.ErrorPageProps{
			PageProps: shared.PageProps{
				Title:     title,
				ActiveNav: "",
				Breadcrumbs: []shared.Breadcrumb{
					{Title: "Home", URL: "/"},
					{Title: "Error", URL: ""},
				},
			},
			ErrorTitle:   title,
			ErrorMessage: message,
		}

		real := RealSession(c)
		if eff := EffectiveSession(c); eff != nil {
			props.UserEmail = eff.Email
			props.UserUID = fmt.Sprint(eff.UserID)
			props.IsAdmin = real.IsAdmin()
			props.Impersonating = Impersonating(c)
			props.BackLink, props.BackText = "/dashboard", "Back to dashboard"
		}

		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		c.Response().WriteHeader(code)

		var renderErr error
		if isPublicPath(c.Request().URL.Path) || props.UserEmail == "" {
			renderErr = pages.PublicErrorPage(props).Render(c.Request().Context(), c.Response())
		} else {
			renderErr = pages.ErrorPage(props).Render(c.Request().Context(), c.Response())
		}
		if renderErr != nil {
			logger.Error("failed to render error page", zap.Error(renderErr))
			_, _ = c.Response().Write([]byte(message))
		}
	}
}

func isPublicPath(path string) bool {
	for _, prefix := range []string{"/login", "/auth", "/static"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return path == "/"
}
