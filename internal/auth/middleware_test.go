package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(m *JWTManager, roles ...Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", AuthRequired(m), RequireRole(roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":   GetUserID(c),
			"tenant": GetTenantID(c),
			"role":   GetRole(c),
		})
	})
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)

	token, err := m.GenerateAccessToken("user-1", "tenant-1", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "tenant-1", claims.TenantID)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = NewJWTManager("other", time.Minute).ParseAndValidate(token)
	assert.Error(t, err)

	_, err = m.GenerateAccessToken("user-1", "tenant-1", Role("owner"))
	assert.Error(t, err)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("secret", -time.Minute)
	token, err := m.GenerateAccessToken("user-1", "tenant-1", RoleStaff)
	require.NoError(t, err)

	_, err = m.ParseAndValidate(token)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	r := newTestRouter(m, RoleStaff, RoleAdmin)

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "not-a-jwt").Code)
	})

	t.Run("allowed role", func(t *testing.T) {
		token, err := m.GenerateAccessToken("user-1", "tenant-1", RoleStaff)
		require.NoError(t, err)

		w := do(r, token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"tenant":"tenant-1"`)
	})

	t.Run("role not allowed", func(t *testing.T) {
		token, err := m.GenerateAccessToken("hook", "tenant-1", RoleSystem)
		require.NoError(t, err)

		assert.Equal(t, http.StatusForbidden, do(r, token).Code)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer    ", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestAuthMiddleware_ErrorBody(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	r := newTestRouter(m, RoleAdmin)

	w := do(r, "")
	assert.JSONEq(t, `{"error":"missing Authorization header","code":"UNAUTHORIZED"}`, w.Body.String())

	token, err := m.GenerateAccessToken("user-1", "tenant-1", RoleStaff)
	require.NoError(t, err)
	w = do(r, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"forbidden: insufficient role","code":"FORBIDDEN"}`, w.Body.String())
}

func TestJWTManager_RejectsOtherAlgorithms(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	claims := &Claims{
		UserID:   "user-1",
		TenantID: "tenant-1",
		Role:     RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.ParseAndValidate(token)
	assert.Error(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "u", TenantID: "t", Role: RoleAdmin}).
		SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.ParseAndValidate(noExpiry)
	assert.Error(t, err, "tokens must expire")
}
