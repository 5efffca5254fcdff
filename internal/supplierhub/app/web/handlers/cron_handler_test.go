package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"supplierhub_api/pkg/logger"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestCronHandlerRejectsBadToken(t *testing.T) {
	h := NewCronHandler(nil, "s3cret", logger.NewLogger(discard{}, ""))

	req := httptest.NewRequest(http.MethodGet, "/cron/run?token=wrong&source=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestCronHandlerRejectsMissingToken(t *testing.T) {
	h := NewCronHandler(nil, "s3cret", logger.NewLogger(discard{}, ""))

	req := httptest.NewRequest(http.MethodGet, "/cron/run?source=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCronHandlerRejectsBadSource(t *testing.T) {
	h := NewCronHandler(nil, "s3cret", logger.NewLogger(discard{}, ""))

	for _, q := range []string{"", "source=abc", "source=0", "source=-1"} {
		req := httptest.NewRequest(http.MethodGet, "/cron/run?token=s3cret&"+q, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", q)
	}
}
