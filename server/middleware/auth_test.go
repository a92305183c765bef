package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func protectedRouter(auth *AuthMiddleware, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/admin")
	group.Use(auth.RequireAuth())
	if role != "" {
		group.Use(auth.RequireRole(role))
	}
	group.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString("subject")})
	})
	return router
}

func get(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthTokenRoundTrip(t *testing.T) {
	auth := NewAuthMiddleware("test-secret", zap.NewNop())
	router := protectedRouter(auth, "")

	token, err := auth.GenerateToken("ops", "admin", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	rec := get(router, token)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestAuthRejectsMissingAndMalformedTokens(t *testing.T) {
	auth := NewAuthMiddleware("test-secret", zap.NewNop())
	router := protectedRouter(auth, "")

	cases := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"not a token", "garbage"},
		{"wrong part count", "a.b.c"},
		{"bad signature", "eyJzdWIiOiJvcHMifQ.invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := get(router, tc.token); rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	auth := NewAuthMiddleware("test-secret", zap.NewNop())
	router := protectedRouter(auth, "")

	token, err := auth.GenerateToken("ops", "admin", -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if rec := get(router, token); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthRejectsForeignSignature(t *testing.T) {
	issuer := NewAuthMiddleware("secret-one", zap.NewNop())
	verifier := NewAuthMiddleware("secret-two", zap.NewNop())
	router := protectedRouter(verifier, "")

	token, err := issuer.GenerateToken("ops", "admin", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if rec := get(router, token); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	auth := NewAuthMiddleware("test-secret", zap.NewNop())
	router := protectedRouter(auth, "admin")

	adminToken, err := auth.GenerateToken("ops", "admin", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	viewerToken, err := auth.GenerateToken("guest", "viewer", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if rec := get(router, adminToken); rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}
	if rec := get(router, viewerToken); rec.Code != http.StatusForbidden {
		t.Errorf("viewer status = %d, want 403", rec.Code)
	}
}
