package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pdfpilot/pdfpilot-backend/internal/logger"
	"github.com/pdfpilot/pdfpilot-backend/internal/requestdata"
)

const testSecret = "test-secret"

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() { log.Sync() })
	return log
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authTestRouter(t *testing.T, captured **requestdata.RequestData) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	am := NewAuthMiddleware(testLogger(t), testSecret)
	router.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		*captured = requestdata.GetRequestData(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return router
}

func TestRequireAuthValidToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   userID.String(),
		"email": "reader@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	var captured *requestdata.RequestData
	router := authTestRouter(t, &captured)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if captured == nil || captured.UserID != userID {
		t.Fatalf("request data not propagated; got %+v", captured)
	}
	if captured.UserEmail != "reader@example.com" {
		t.Fatalf("email claim: got %q", captured.UserEmail)
	}
}

func TestRequireAuthQueryToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	var captured *requestdata.RequestData
	router := authTestRouter(t, &captured)

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if captured == nil || captured.UserID != userID {
		t.Fatalf("request data not propagated from query token")
	}
}

func TestRequireAuthRejections(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
		{"wrong secret", signToken(t, "other-secret", jwt.MapClaims{
			"sub": uuid.New().String(),
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"expired", signToken(t, testSecret, jwt.MapClaims{
			"sub": uuid.New().String(),
			"exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"no subject", signToken(t, testSecret, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"non-uuid subject", signToken(t, testSecret, jwt.MapClaims{
			"sub": "user-42",
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var captured *requestdata.RequestData
			router := authTestRouter(t, &captured)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status: want=401 got=%d", rec.Code)
			}
			if captured != nil {
				t.Fatalf("handler must not run for a rejected token")
			}
		})
	}
}
