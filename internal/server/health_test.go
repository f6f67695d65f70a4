package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	router := env.router

	t.Run("returns 200 OK", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("returns correct JSON structure", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)

		assert.Equal(t, "healthy", response["status"])
		assert.Equal(t, "ok", response["database"])
		assert.Equal(t, "1.0.0", response["version"])

		timestamp, ok := response["timestamp"].(string)
		require.True(t, ok, "timestamp should be a string")
		_, err = time.Parse(time.RFC3339, timestamp)
		assert.NoError(t, err, "timestamp should be valid RFC3339 format")
	})

	t.Run("includes request ID in response headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), "should include X-Request-ID header")
	})

	t.Run("accepts custom request ID", func(t *testing.T) {
		customID := "test-request-id-123"
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-Request-ID", customID)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, customID, w.Header().Get("X-Request-ID"), "should preserve custom request ID")
	})

	t.Run("handles concurrent requests", func(t *testing.T) {
		const numRequests = 10
		results := make(chan int, numRequests)

		for i := 0; i < numRequests; i++ {
			go func() {
				req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
				req.RemoteAddr = "192.0.3.1:12345"
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)
				results <- w.Code
			}()
		}

		for i := 0; i < numRequests; i++ {
			assert.Equal(t, http.StatusOK, <-results)
		}
	})

	t.Run("does not accept POST method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/health", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealthEndpointWithoutDatabase(t *testing.T) {
	router := New(newTestDeps())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"not_configured"`)
}
