// Package errors defines the typed failures surfaced by the workflow engine.
//
// Every failure carries a stable machine-readable code and the HTTP status the
// transport layer should answer with. Sentinels allow errors.Is checks through
// any amount of fmt.Errorf wrapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors, one per taxonomy entry.
var (
	ErrRouteNotFound           = errors.New("approval route not found")
	ErrNoRoutesConfigured      = errors.New("no approval routes configured")
	ErrApplicationCodeNotFound = errors.New("application code not found")
	ErrFormDefinitionMissing   = errors.New("form definition missing")
	ErrInvalidSubmission       = errors.New("invalid submission")
	ErrUnauthorized            = errors.New("unauthorized approver")
	ErrInvalidState            = errors.New("invalid application state")
	ErrValidation              = errors.New("validation failed")
	ErrApplicationNotFound     = errors.New("application not found")
)

// AppError is a structured error with a code, HTTP status and wrapped cause.
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel so errors.Is works on AppError values.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError without a wrapped cause.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap wraps err into an AppError.
func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// WithParams attaches structured context.
func (e *AppError) WithParams(params map[string]interface{}) *AppError {
	if e == nil || len(params) == 0 {
		return e
	}
	e.Params = params
	return e
}

// RouteNotFound reports a missing route, by id or by name.
func RouteNotFound(ref string) *AppError {
	return Wrap(ErrRouteNotFound, CodeRouteNotFound, fmt.Sprintf("approval route %q not found", ref), http.StatusNotFound).
		WithParams(map[string]interface{}{"route": ref})
}

// NoRoutesConfigured reports an empty route catalog.
func NoRoutesConfigured() *AppError {
	return Wrap(ErrNoRoutesConfigured, CodeNoRoutesConfigured, "no approval routes are configured", http.StatusInternalServerError)
}

// ApplicationCodeNotFound reports an unknown application code id.
func ApplicationCodeNotFound(ref string) *AppError {
	return Wrap(ErrApplicationCodeNotFound, CodeApplicationCodeNotFound, fmt.Sprintf("application code %q not found", ref), http.StatusNotFound).
		WithParams(map[string]interface{}{"application_code": ref})
}

// FormDefinitionMissing reports a code with no registered form schema.
func FormDefinitionMissing(code string) *AppError {
	return Wrap(ErrFormDefinitionMissing, CodeFormDefinitionMissing, fmt.Sprintf("no form definition registered for %q", code), http.StatusInternalServerError).
		WithParams(map[string]interface{}{"application_code": code})
}

// InvalidSubmission reports missing required submission fields.
func InvalidSubmission(message string) *AppError {
	return Wrap(ErrInvalidSubmission, CodeInvalidSubmission, message, http.StatusBadRequest)
}

// Unauthorized reports an actor who is not the current approver.
func Unauthorized(applicationID, actorID string) *AppError {
	return Wrap(ErrUnauthorized, CodeUnauthorizedApprover, MessageNoLongerActionable, http.StatusForbidden).
		WithParams(map[string]interface{}{"application_id": applicationID, "actor_id": actorID})
}

// InvalidState reports a transition attempted from the wrong lifecycle state.
func InvalidState(applicationID, status string) *AppError {
	return Wrap(ErrInvalidState, CodeInvalidState, MessageNoLongerActionable, http.StatusConflict).
		WithParams(map[string]interface{}{"application_id": applicationID, "status": status})
}

// Validation reports invalid caller input.
func Validation(message string) *AppError {
	return Wrap(ErrValidation, CodeValidationFailed, message, http.StatusBadRequest)
}

// ApplicationNotFound reports an unknown application id.
func ApplicationNotFound(id string) *AppError {
	return Wrap(ErrApplicationNotFound, CodeApplicationNotFound, fmt.Sprintf("application %q not found", id), http.StatusNotFound).
		WithParams(map[string]interface{}{"application_id": id})
}

// IsAppError checks if an error is an AppError and returns it.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus returns the status for err, 500 for anything untyped.
func HTTPStatus(err error) int {
	if appErr, ok := IsAppError(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
