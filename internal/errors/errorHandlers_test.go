package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsType(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewUpstreamError("bad status", nil))

	assert.True(t, IsType(err, ErrorTypeUpstream))
	assert.False(t, IsType(err, ErrorTypeValidation))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeUpstream))
}

func TestUserMessage(t *testing.T) {
	t.Run("short message unchanged", func(t *testing.T) {
		assert.Equal(t, "boom", UserMessage(NewValidationError("boom")))
	})

	t.Run("long message truncated to limit", func(t *testing.T) {
		long := strings.Repeat("я", 400)
		msg := UserMessage(NewUpstreamError(long, nil))
		assert.Equal(t, MaxUserMessageLen+1, len([]rune(msg)))
		assert.True(t, strings.HasSuffix(msg, "…"))
	})

	t.Run("nil error", func(t *testing.T) {
		assert.Empty(t, UserMessage(nil))
	})
}

func TestCustomErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("exit status 1")
	err := NewExternalToolError("ffmpeg failed", inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "exit status 1")
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"not found", New404Error("no such chat"), http.StatusNotFound, "NOT_FOUND"},
		{"rate limited", NewRateLimited("slow down"), http.StatusTooManyRequests, "RATE_LIMITED"},
		{"plain error becomes 500", fmt.Errorf("disk full"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)

			HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body struct {
				Error struct {
					Type string `json:"type"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body.Error.Type)
		})
	}
}
