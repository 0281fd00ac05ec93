package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/auth"
	"github.com/tistis/secure-booking/internal/policy"
	"github.com/tistis/secure-booking/internal/trust"
)

type stubService struct {
	gotTenant   string
	gotVertical policy.Vertical
}

func (s *stubService) RecordOutcome(context.Context, trust.RecordOutcomeRequest) (*trust.View, error) {
	return nil, nil
}

func (s *stubService) GetScore(_ context.Context, tenantID string, vertical policy.Vertical, fingerprint string) (*trust.View, error) {
	s.gotTenant = tenantID
	s.gotVertical = vertical
	return &trust.View{CustomerFingerprint: fingerprint, Score: 42, Level: trust.LevelFor(42), NoShowCount: 2}, nil
}

func (s *stubService) DecayScore(context.Context, string, policy.Vertical, string) (*trust.View, error) {
	return nil, nil
}

func (s *stubService) DecayStaleScores(context.Context, time.Duration, int) (int, error) {
	return 0, nil
}

func TestHandler_Get(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtManager := auth.NewJWTManager("secret", time.Minute)
	svc := &stubService{}

	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewHandler(svc, zap.NewNop()),
		auth.AuthRequired(jwtManager), auth.RequireRole(auth.RoleStaff, auth.RoleAdmin))

	token, err := jwtManager.GenerateAccessToken("user-1", "tenant-1", auth.RoleStaff)
	require.NoError(t, err)

	t.Run("returns the tenant scoped score", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/customers/fp_abc/trust?vertical=dental", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body TrustScoreResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "fp_abc", body.CustomerFingerprint)
		assert.Equal(t, 42, body.Score)
		assert.Equal(t, "poor", body.Level)
		assert.Equal(t, "tenant-1", svc.gotTenant)
		assert.Equal(t, policy.VerticalDental, svc.gotVertical)
	})

	t.Run("rejects unknown vertical", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/customers/fp_abc/trust?vertical=spa", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
