package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codelock/codelock-backend/internal/config"
	"github.com/codelock/codelock-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const testSecret = "ws-auth-test-secret"

// unreachableRedis fails every command immediately. Session lookups against
// it behave like a session that cannot be confirmed.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
}

func wsAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWTSecret: testSecret, JWTExpiry: time.Hour}
	auth := service.NewAuthService(cfg, unreachableRedis())

	r := gin.New()
	r.GET("/stream", RequireStudentWSAuth(auth), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func mintToken(t *testing.T, tokenType service.TokenType) string {
	t.Helper()
	now := time.Now()
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   "7",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		TokenType: tokenType,
		UserID:    7,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestRequireStudentWSAuthRequiresToken(t *testing.T) {
	r := wsAuthRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d without a token", w.Code, http.StatusUnauthorized)
	}
}

func TestRequireStudentWSAuthRejectsFacultyToken(t *testing.T) {
	r := wsAuthRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream?token="+mintToken(t, service.TokenTypeFaculty), nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d for a faculty token", w.Code, http.StatusForbidden)
	}
}

func TestRequireStudentWSAuthChecksActiveSession(t *testing.T) {
	// The token itself is valid, but no matching session exists in Redis —
	// the superseded-login case. The upgrade must be refused just like a
	// REST request would be.
	r := wsAuthRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream?token="+mintToken(t, service.TokenTypeStudent), nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d for a token with no live session", w.Code, http.StatusUnauthorized)
	}
}
