package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tistis/secure-booking/internal/auth"
	"github.com/tistis/secure-booking/internal/policy"
)

func setup(t *testing.T) (*gin.Engine, *auth.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, policy.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m := auth.NewJWTManager("secret", time.Minute)
	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewHandler(policy.NewService(policy.NewGormRepository(db)), zap.NewNop()),
		auth.AuthRequired(m),
		auth.RequireRole(auth.RoleStaff, auth.RoleAdmin),
		auth.RequireRole(auth.RoleAdmin),
	)
	return r, m
}

func call(t *testing.T, r http.Handler, m *auth.JWTManager, role auth.Role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := m.GenerateAccessToken("user-1", "tenant-1", role)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const dentalBody = `{
	"requires_confirmation": true,
	"confirmation_timeout_minutes": 720,
	"hold_ttl_minutes": 20,
	"no_show_penalty_weight": 60,
	"late_cancel_penalty_weight": 15,
	"fraud_penalty_weight": 100,
	"block_threshold_score": 100,
	"block_duration_hours": 336,
	"penalty_window_days": 60,
	"fraud_block_permanent": true,
	"min_trust_score": 30,
	"late_cancel_window_hours": 24,
	"score_decay_days": 120,
	"score_deltas": {"completed": 2, "cancelled_early": 0, "cancelled_late": -10, "no_show": -25, "fraud_signal": -60},
	"requires_deposit": true,
	"deposit_type": "fixed",
	"deposit_value": 300
}`

func TestHandler_GetDefault(t *testing.T) {
	r, m := setup(t)

	w := call(t, r, m, auth.RoleStaff, http.MethodGet, "/v1/policies/restaurant", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body PolicyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.IsDefault)
	assert.True(t, body.RequiresConfirmation)
	assert.Equal(t, 10, body.HoldTTLMinutes)

	w = call(t, r, m, auth.RoleStaff, http.MethodGet, "/v1/policies/spa", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Put(t *testing.T) {
	r, m := setup(t)

	w := call(t, r, m, auth.RoleStaff, http.MethodPut, "/v1/policies/dental", dentalBody)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, r, m, auth.RoleAdmin, http.MethodPut, "/v1/policies/dental", dentalBody)
	require.Equal(t, http.StatusOK, w.Code)

	w = call(t, r, m, auth.RoleStaff, http.MethodGet, "/v1/policies/dental", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body PolicyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.IsDefault)
	assert.Equal(t, 20, body.HoldTTLMinutes)
	assert.Equal(t, 30, body.MinTrustScore)
	assert.Equal(t, -25, body.ScoreDeltas.NoShow)
	assert.Equal(t, "fixed", body.DepositType)
	assert.InDelta(t, 300.0, body.DepositValue, 0.001)
}

func TestHandler_Put_Invalid(t *testing.T) {
	r, m := setup(t)

	// Percentage deposits above 100 pass binding but fail policy validation.
	bad := strings.Replace(strings.Replace(dentalBody, `"fixed"`, `"percentage"`, 1), `300`, `150`, 1)
	w := call(t, r, m, auth.RoleAdmin, http.MethodPut, "/v1/policies/dental", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_POLICY")

	w = call(t, r, m, auth.RoleAdmin, http.MethodPut, "/v1/policies/dental", `{"hold_ttl_minutes": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
