package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		code string
		want int
	}{
		{"not found", ErrCodeNotFound, http.StatusNotFound},
		{"validation", ErrCodeValidation, http.StatusBadRequest},
		{"run in progress", ErrCodeRunInProgress, http.StatusConflict},
		{"schema mismatch", ErrCodeSchemaMismatch, http.StatusUnprocessableEntity},
		{"commit failure", ErrCodeCommitFailure, http.StatusInternalServerError},
		{"unmapped code falls back to 500", "ERR_SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode("NOT_FOUND"))
	assert.Equal(t, ErrCodeRunInProgress, NormalizeErrorCode("RUN_ALREADY_IN_PROGRESS"))
	assert.Equal(t, ErrCodeSchemaMismatch, NormalizeErrorCode("SCHEMA_VERSION_MISMATCH"))
	assert.Equal(t, ErrCodeInvalidInput, NormalizeErrorCode("UNRESOLVED_VENDOR"))

	// API-format and unknown codes pass through untouched.
	assert.Equal(t, ErrCodeInternal, NormalizeErrorCode(ErrCodeInternal))
	assert.Equal(t, "CUSTOM_CODE", NormalizeErrorCode("CUSTOM_CODE"))
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "run not found", "req-123")
	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "run not found", resp.Error.Message)
	assert.Equal(t, "req-123", resp.Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{{Field: "id", Message: "Must be greater than or equal to 1"}}
	resp := NewValidationErrorResponse("Request validation failed", "req-456", details)
	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "id", resp.Error.Details[0].Field)
}
