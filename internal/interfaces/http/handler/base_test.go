package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recon/backend/internal/domain/shared"
	"github.com/recon/backend/internal/interfaces/http/dto"
)

func TestBaseHandler_HandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"run already in progress", shared.ErrRunAlreadyInProgress, http.StatusConflict, dto.ErrCodeRunInProgress},
		{"schema version mismatch", shared.ErrSchemaVersionMismatch, http.StatusUnprocessableEntity, dto.ErrCodeSchemaMismatch},
		{"wrapped domain error", fmt.Errorf("begin run: %w", shared.ErrRunAlreadyInProgress), http.StatusConflict, dto.ErrCodeRunInProgress},
		{"plain error becomes internal", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	h := &BaseHandler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest(http.MethodGet, "/", nil)

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestBaseHandler_HandleError_NilIsNoop(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h := &BaseHandler{}
	h.HandleError(c, nil)

	assert.Zero(t, w.Body.Len())
}

func TestBaseHandler_ErrorCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/", nil)
	c.Set("request_id", "req-789")

	h := &BaseHandler{}
	h.NotFound(c, "run not found")

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-789", resp.Error.RequestID)
}
