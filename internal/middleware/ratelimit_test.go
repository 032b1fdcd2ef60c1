package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pdfpilot/pdfpilot-backend/internal/requestdata"
)

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.err
}

func (f *fakeLimiter) Close() error { return nil }

func limitTestRouter(t *testing.T, rm *RateLimitMiddleware, userID uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/limited", func(c *gin.Context) {
		if userID != uuid.Nil {
			ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{UserID: userID})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}, rm.Limit(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doLimited(router *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/limited", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLimitAllowsUnderLimit(t *testing.T) {
	userID := uuid.New()
	limiter := &fakeLimiter{allowed: true}
	rm := NewRateLimitMiddleware(testLogger(t), limiter)

	rec := doLimited(limitTestRouter(t, rm, userID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != userID.String() {
		t.Fatalf("limiter keyed by user id; got %v", limiter.keys)
	}
}

func TestLimitBlocksOverLimit(t *testing.T) {
	rm := NewRateLimitMiddleware(testLogger(t), &fakeLimiter{allowed: false})
	rec := doLimited(limitTestRouter(t, rm, uuid.New()))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status: want=429 got=%d", rec.Code)
	}
}

func TestLimitFailsOpenOnLimiterError(t *testing.T) {
	rm := NewRateLimitMiddleware(testLogger(t), &fakeLimiter{allowed: true, err: errors.New("redis down")})
	rec := doLimited(limitTestRouter(t, rm, uuid.New()))
	if rec.Code != http.StatusOK {
		t.Fatalf("limiter failure must not block requests; got %d", rec.Code)
	}
}

func TestLimitNilLimiterPassesThrough(t *testing.T) {
	rm := NewRateLimitMiddleware(testLogger(t), nil)
	rec := doLimited(limitTestRouter(t, rm, uuid.Nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("nil limiter must disable the cap; got %d", rec.Code)
	}
}

func TestLimitRequiresIdentity(t *testing.T) {
	rm := NewRateLimitMiddleware(testLogger(t), &fakeLimiter{allowed: true})
	rec := doLimited(limitTestRouter(t, rm, uuid.Nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing identity: want=401 got=%d", rec.Code)
	}
}
