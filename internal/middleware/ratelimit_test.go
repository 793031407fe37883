package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRateLimiterPerAccount(t *testing.T) {
	rl := NewRateLimiter(1, zap.NewNop())
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(accountID int64) int {
		r := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
		r = r.WithContext(WithAccountID(context.Background(), accountID))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	// burst = 2
	assert.Equal(t, http.StatusOK, do(1))
	assert.Equal(t, http.StatusOK, do(1))
	assert.Equal(t, http.StatusTooManyRequests, do(1))

	assert.Equal(t, http.StatusOK, do(2), "other accounts have their own budget")
}

func TestRateLimiterDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rl := NewRateLimiter(0, zap.NewNop())

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		rl.Middleware(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
