package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/peladahub/peladahub/internal/app"
	iauth "github.com/peladahub/peladahub/internal/auth"
	"github.com/peladahub/peladahub/internal/database/testutil"
	"github.com/peladahub/peladahub/internal/models"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-secret", Issuer: "test"})
	require.NoError(t, err)

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Server.RateLimit.MaxRequests = 1000
	cfg.Server.RateLimit.Window = 60_000_000_000

	router, err := NewRouter(Dependencies{
		DB:       db,
		Config:   cfg,
		JWT:      jwtSvc,
		Sessions: sessionSvc,
	})
	require.NoError(t, err)

	return router, db, jwtSvc
}

func issueToken(t *testing.T, db *gorm.DB, jwtSvc *iauth.JWTService, membership models.Membership, role string) string {
	t.Helper()

	user := &models.User{
		Email:      string(membership) + "-" + role + "@example.com",
		Name:       "Jogador",
		Password:   "irrelevant",
		Membership: membership,
		Role:       role,
		IsActive:   true,
	}
	require.NoError(t, db.Create(user).Error)

	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:     user.ID,
		SessionID:  "session",
		Membership: membership,
		Role:       role,
	})
	require.NoError(t, err)
	return token
}

func doRequest(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/health", "").Code)
	require.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/auth/me", "").Code)
	require.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/api/matches", "").Code)

	notFound := doRequest(router, http.MethodGet, "/api/nothing-here", "")
	require.Equal(t, http.StatusNotFound, notFound.Code)
	require.Contains(t, notFound.Body.String(), `"success":false`)
}

func TestRouterMembershipGates(t *testing.T) {
	router, db, jwtSvc := newTestRouter(t)

	monthly := issueToken(t, db, jwtSvc, models.MembershipMonthly, models.RolePlayer)
	casual := issueToken(t, db, jwtSvc, models.MembershipCasual, models.RolePlayer)
	organizer := issueToken(t, db, jwtSvc, models.MembershipMonthly, models.RoleOrganizer)

	// Financial and ranking screens are monthly-member territory.
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/finance/balance", monthly).Code)
	require.Equal(t, http.StatusForbidden, doRequest(router, http.MethodGet, "/api/finance/balance", casual).Code)
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/rankings?period=2026-08", monthly).Code)
	require.Equal(t, http.StatusForbidden, doRequest(router, http.MethodGet, "/api/rankings?period=2026-08", casual).Code)

	// Both membership kinds can browse matches.
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/matches", monthly).Code)
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/matches", casual).Code)

	// Invite issuance is organizer-only; organizers pass membership gates too.
	require.Equal(t, http.StatusForbidden, doRequest(router, http.MethodGet, "/api/invites", monthly).Code)
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/invites", organizer).Code)
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/finance/balance", organizer).Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/health", "").Code)

	metricsRec := doRequest(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metricsRec.Code)
	require.True(t, strings.Contains(metricsRec.Body.String(), "peladahub_api_latency_seconds"))
}
