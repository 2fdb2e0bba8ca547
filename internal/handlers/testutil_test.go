package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/peladahub/peladahub/internal/auth"
	"github.com/peladahub/peladahub/internal/database/testutil"
	"github.com/peladahub/peladahub/internal/middleware"
	"github.com/peladahub/peladahub/internal/models"
	"github.com/peladahub/peladahub/internal/services"
	"github.com/peladahub/peladahub/pkg/crypto"
)

type handlerFixture struct {
	db       *gorm.DB
	engine   *gin.Engine
	jwt      *iauth.JWTService
	sessions *iauth.SessionService
	users    *services.UserService
	invites  *services.InviteService
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "handler-secret", Issuer: "test"})
	require.NoError(t, err)

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, iauth.SessionConfig{})
	require.NoError(t, err)

	userSvc, err := services.NewUserService(db)
	require.NoError(t, err)

	inviteSvc, err := services.NewInviteService(db, nil,
		services.WithInviteBaseURL("https://pelada.example.com"))
	require.NoError(t, err)

	f := &handlerFixture{
		db:       db,
		jwt:      jwtSvc,
		sessions: sessionSvc,
		users:    userSvc,
		invites:  inviteSvc,
	}

	authHandler := NewAuthHandler(userSvc, sessionSvc)
	inviteHandler := NewInviteHandler(inviteSvc, userSvc)

	engine := gin.New()
	engine.POST("/api/auth/login", authHandler.Login)
	engine.POST("/api/auth/refresh", authHandler.Refresh)

	authed := engine.Group("/api")
	authed.Use(middleware.Auth(jwtSvc))
	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/invites", middleware.RequireRole(models.RoleOrganizer), inviteHandler.Create)
	authed.GET("/invites/:id/qr", middleware.RequireRole(models.RoleOrganizer), inviteHandler.QRCode)
	authed.POST("/invites/accept", inviteHandler.Accept)

	f.engine = engine
	return f
}

func (f *handlerFixture) createUser(t *testing.T, email, password string, membership models.Membership, role string) *models.User {
	t.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Email:      email,
		Name:       "Jogador",
		Password:   hashed,
		Membership: membership,
		Role:       role,
		IsActive:   true,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *handlerFixture) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()

	token, err := f.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:     user.ID,
		SessionID:  "session",
		Membership: user.Membership,
		Role:       user.Role,
	})
	require.NoError(t, err)
	return token
}

func (f *handlerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.False(t, envelope.Success)
	return envelope.Error.Code
}
