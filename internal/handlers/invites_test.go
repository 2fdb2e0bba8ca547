package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peladahub/peladahub/internal/models"
)

func TestCreateInviteRequiresOrganizer(t *testing.T) {
	f := newHandlerFixture(t)
	player := f.createUser(t, "jogador@example.com", "segredo123", models.MembershipMonthly, models.RolePlayer)

	w := f.do(t, http.MethodPost, "/api/invites", f.tokenFor(t, player), map[string]any{
		"email":      "novato@example.com",
		"membership": "casual",
	})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestInviteLifecycleOverHTTP(t *testing.T) {
	f := newHandlerFixture(t)
	organizer := f.createUser(t, "dono@example.com", "segredo123", models.MembershipMonthly, models.RoleOrganizer)
	newcomer := f.createUser(t, "novato@example.com", "segredo123", models.MembershipNone, models.RolePlayer)

	created := f.do(t, http.MethodPost, "/api/invites", f.tokenFor(t, organizer), map[string]any{
		"email":      "novato@example.com",
		"membership": "monthly",
	})
	require.Equal(t, http.StatusCreated, created.Code)

	data := decodeData(t, created)
	token := data["token"].(string)
	require.NotEmpty(t, token)
	require.Contains(t, data["link"].(string), token)

	accepted := f.do(t, http.MethodPost, "/api/invites/accept", f.tokenFor(t, newcomer), map[string]any{
		"token": token,
	})
	require.Equal(t, http.StatusOK, accepted.Code)

	result := decodeData(t, accepted)
	require.Equal(t, "monthly", result["membership"])
	routes := result["routes"].([]any)
	require.Equal(t, "Financial", routes[2])

	// Single-use: a second acceptance renders the conflict envelope.
	replay := f.do(t, http.MethodPost, "/api/invites/accept", f.tokenFor(t, newcomer), map[string]any{
		"token": token,
	})
	require.Equal(t, http.StatusBadRequest, replay.Code)
	require.Equal(t, "CONFLICT", decodeErrorCode(t, replay))
}

func TestAcceptInviteWrongEmailIsForbidden(t *testing.T) {
	f := newHandlerFixture(t)
	organizer := f.createUser(t, "dono@example.com", "segredo123", models.MembershipMonthly, models.RoleOrganizer)
	intruder := f.createUser(t, "outro@example.com", "segredo123", models.MembershipNone, models.RolePlayer)

	created := f.do(t, http.MethodPost, "/api/invites", f.tokenFor(t, organizer), map[string]any{
		"email":      "novato@example.com",
		"membership": "casual",
	})
	token := decodeData(t, created)["token"].(string)

	w := f.do(t, http.MethodPost, "/api/invites/accept", f.tokenFor(t, intruder), map[string]any{
		"token": token,
	})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAcceptUnknownTokenIsNotFound(t *testing.T) {
	f := newHandlerFixture(t)
	user := f.createUser(t, "novato@example.com", "segredo123", models.MembershipNone, models.RolePlayer)

	w := f.do(t, http.MethodPost, "/api/invites/accept", f.tokenFor(t, user), map[string]any{
		"token": "nao-existe",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestInviteQRCodeRendersPNG(t *testing.T) {
	f := newHandlerFixture(t)
	organizer := f.createUser(t, "dono@example.com", "segredo123", models.MembershipMonthly, models.RoleOrganizer)

	created := f.do(t, http.MethodPost, "/api/invites", f.tokenFor(t, organizer), map[string]any{
		"email":      "novato@example.com",
		"membership": "casual",
	})
	invite := decodeData(t, created)["invite"].(map[string]any)
	inviteID := invite["id"].(string)

	w := f.do(t, http.MethodGet, "/api/invites/"+inviteID+"/qr", f.tokenFor(t, organizer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.NotEmpty(t, w.Body.Bytes())
}
