package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_MatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		sentinel error
		code     string
		status   int
	}{
		{"route not found", RouteNotFound("r1"), ErrRouteNotFound, CodeRouteNotFound, http.StatusNotFound},
		{"no routes", NoRoutesConfigured(), ErrNoRoutesConfigured, CodeNoRoutesConfigured, http.StatusInternalServerError},
		{"code not found", ApplicationCodeNotFound("c1"), ErrApplicationCodeNotFound, CodeApplicationCodeNotFound, http.StatusNotFound},
		{"form missing", FormDefinitionMissing("XYZ"), ErrFormDefinitionMissing, CodeFormDefinitionMissing, http.StatusInternalServerError},
		{"invalid submission", InvalidSubmission("applicantId is required"), ErrInvalidSubmission, CodeInvalidSubmission, http.StatusBadRequest},
		{"unauthorized", Unauthorized("a1", "U2"), ErrUnauthorized, CodeUnauthorizedApprover, http.StatusForbidden},
		{"invalid state", InvalidState("a1", "approved"), ErrInvalidState, CodeInvalidState, http.StatusConflict},
		{"validation", Validation("reason is required"), ErrValidation, CodeValidationFailed, http.StatusBadRequest},
		{"application not found", ApplicationNotFound("a1"), ErrApplicationNotFound, CodeApplicationNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestRouteErrorsAreDistinguishable(t *testing.T) {
	assert.False(t, errors.Is(RouteNotFound("社長決裁ルート"), ErrNoRoutesConfigured))
	assert.False(t, errors.Is(NoRoutesConfigured(), ErrRouteNotFound))
}

func TestIsAppError_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("approve: %w", InvalidState("a1", "rejected"))

	appErr, ok := IsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidState, appErr.Code)
	assert.Equal(t, MessageNoLongerActionable, appErr.Message)
	assert.True(t, errors.Is(wrapped, ErrInvalidState))
}

func TestHTTPStatus_Untyped(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("disk full")))
}

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "X: msg", New("X", "msg", http.StatusTeapot).Error())
	assert.Contains(t, Validation("bad").Error(), "validation failed")
}
