package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"osrs-tracker/internal/middleware"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, header string) (seen string, resp *httptest.ResponseRecorder) {
	t.Helper()

	handler := middleware.RequestID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/tracker.v1.PlayerService/TrackPlayer", nil)
	if header != "" {
		req.Header.Set(middleware.RequestIDHeader, header)
	}
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return seen, resp
}

func TestRequestIDReusesHeader(t *testing.T) {
	t.Parallel()

	seen, resp := serve(t, "abc-123")
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", resp.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, http.StatusTeapot, resp.Code)
}

func TestRequestIDGenerated(t *testing.T) {
	t.Parallel()

	for _, header := range []string{"", strings.Repeat("x", 100)} {
		seen, resp := serve(t, header)
		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, seen, resp.Header().Get(middleware.RequestIDHeader))
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	t.Parallel()

	assert.Empty(t, middleware.GetRequestID(t.Context()))
	assert.Equal(t, "id", middleware.GetRequestID(middleware.WithRequestID(t.Context(), "id")))
}
