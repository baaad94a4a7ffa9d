package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	AuthenticationMissing   Kind = "authentication_missing"
	AuthorizationDenied     Kind = "authorization_denied"
	NotFound                Kind = "not_found"
	ValidationFailed        Kind = "validation_failed"
	ExternalProviderFailure Kind = "external_provider_failure"
	ConstraintViolation     Kind = "constraint_violation"
	Internal                Kind = "internal"
)

const defaultPublicMsg = "Something went wrong. Please try again later."

// AppError is the error type returned by services. PublicMsg is safe to show
// to the caller, Err is kept for logs.
type AppError struct {
	Kind      Kind
	PublicMsg string
	Fields    map[string]string
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.PublicMsg, e.Err)
	}
	if e.PublicMsg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.PublicMsg)
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

func Unauthenticated(publicMsg string) *AppError {
	return &AppError{Kind: AuthenticationMissing, PublicMsg: publicMsg}
}

func Forbidden(publicMsg string) *AppError {
	return &AppError{Kind: AuthorizationDenied, PublicMsg: publicMsg}
}

func NotFoundErr(publicMsg string) *AppError {
	return &AppError{Kind: NotFound, PublicMsg: publicMsg}
}

func Invalid(publicMsg string, fields map[string]string) *AppError {
	return &AppError{Kind: ValidationFailed, PublicMsg: publicMsg, Fields: fields}
}

func ProviderFailure(publicMsg string, err error) *AppError {
	return &AppError{Kind: ExternalProviderFailure, PublicMsg: publicMsg, Err: err}
}

// AlreadyProcessed marks a write rejected by a uniqueness guard. Callers should
// re-read state rather than retry the write.
func AlreadyProcessed(err error) *AppError {
	return &AppError{Kind: ConstraintViolation, PublicMsg: "Payment already processed", Err: err}
}

// Wrap hides an internal error behind the default public message.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return &AppError{Kind: Internal, PublicMsg: defaultPublicMsg, Err: err}
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func Is(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

func HTTPStatus(err error) int {
	ae, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case AuthenticationMissing:
		return http.StatusUnauthorized
	case AuthorizationDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case ValidationFailed:
		return http.StatusBadRequest
	case ExternalProviderFailure:
		return http.StatusBadGateway
	case ConstraintViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	return defaultPublicMsg
}
