package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/techvara/crm/internal/auth"
	"github.com/techvara/crm/internal/models"
)

func newAuthTestRouter(t *testing.T, requiredRole models.UserRole) (*gin.Engine, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "techvara-crm"})
	require.NoError(t, err)

	router := gin.New()
	group := router.Group("/", Auth(jwt))
	if requiredRole != "" {
		group.Use(RequireRole(requiredRole))
	}
	group.GET("/probe", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": CurrentUserID(c),
			"role":    CurrentRole(c),
		})
	})
	return router, jwt
}

func issueToken(t *testing.T, jwt *iauth.JWTService, role models.UserRole) string {
	t.Helper()

	token, err := jwt.GenerateAccessToken(&models.User{
		BaseModel: models.BaseModel{ID: "user-1"},
		Role:      role,
	})
	require.NoError(t, err)
	return token
}

func TestAuthRejectsMissingOrMalformedHeader(t *testing.T) {
	router, _ := newAuthTestRouter(t, "")

	for _, header := range []string{"", "Bearer", "Token abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAuthAcceptsValidToken(t *testing.T) {
	router, jwt := newAuthTestRouter(t, "")
	token := issueToken(t, jwt, models.RoleWorker)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "user-1")
}

func TestRequireRoleAdminGate(t *testing.T) {
	router, jwt := newAuthTestRouter(t, models.RoleAdmin)

	worker := issueToken(t, jwt, models.RoleWorker)
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+worker)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	admin := issueToken(t, jwt, models.RoleAdmin)
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminPassesWorkerGate(t *testing.T) {
	router, jwt := newAuthTestRouter(t, models.RoleWorker)

	admin := issueToken(t, jwt, models.RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
