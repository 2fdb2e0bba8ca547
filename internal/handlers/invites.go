package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/peladahub/peladahub/internal/middleware"
	"github.com/peladahub/peladahub/internal/models"
	"github.com/peladahub/peladahub/internal/services"
	appErrors "github.com/peladahub/peladahub/pkg/errors"
	"github.com/peladahub/peladahub/pkg/response"
)

const defaultQRCodeSize = 256

// InviteHandler manages invite issuance and acceptance.
type InviteHandler struct {
	invites *services.InviteService
	users   *services.UserService
}

func NewInviteHandler(invites *services.InviteService, users *services.UserService) *InviteHandler {
	return &InviteHandler{invites: invites, users: users}
}

type createInviteRequest struct {
	Email      string     `json:"email" validate:"required,email"`
	Membership string     `json:"membership" validate:"required,oneof=monthly casual"`
	MaxUses    *int       `json:"max_uses" validate:"omitempty,min=1"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

type inviteCreatedResponse struct {
	Invite *models.Invite `json:"invite"`
	Token  string         `json:"token"`
	Link   string         `json:"link"`
}

// POST /api/invites
func (h *InviteHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.invites.Create(requestContext(c), services.CreateInviteInput{
		Email:      req.Email,
		Membership: models.Membership(req.Membership),
		MaxUses:    req.MaxUses,
		ExpiresAt:  req.ExpiresAt,
		InvitedBy:  userID,
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusCreated, inviteCreatedResponse{
		Invite: result.Invite,
		Token:  result.Token,
		Link:   result.URL,
	})
}

// GET /api/invites
func (h *InviteHandler) List(c *gin.Context) {
	invites, err := h.invites.List(requestContext(c))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"invites": invites})
}

type acceptInviteRequest struct {
	Token string `json:"token" validate:"required"`
}

// POST /api/invites/accept
func (h *InviteHandler) Accept(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req acceptInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	caller, err := h.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	result, err := h.invites.Accept(ctx, services.AcceptInviteInput{
		Token:       req.Token,
		CallerID:    caller.ID,
		CallerEmail: caller.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInviteNotFound):
			response.Error(c, appErrors.ErrNotFound)
		case errors.Is(err, services.ErrInviteAlreadyUsed):
			response.Error(c, appErrors.NewConflict("Invite has already been accepted"))
		case errors.Is(err, services.ErrInviteExhausted):
			response.Error(c, appErrors.NewConflict("Invite usage cap has been reached"))
		case errors.Is(err, services.ErrInviteExpired):
			response.Error(c, appErrors.NewConflict("Invite has expired"))
		case errors.Is(err, services.ErrInviteEmailMismatch):
			response.Error(c, appErrors.NewForbidden("Invite was issued for a different email address"))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GET /api/invites/:id/qr
func (h *InviteHandler) QRCode(c *gin.Context) {
	inviteID := c.Param("id")
	if inviteID == "" {
		response.Error(c, appErrors.NewBadRequest("Invite ID is required"))
		return
	}

	link, err := h.invites.Link(requestContext(c), inviteID)
	if err != nil {
		if errors.Is(err, services.ErrInviteNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	size := parseIntQuery(c, "size", defaultQRCodeSize)
	if size < 64 || size > 1024 {
		size = defaultQRCodeSize
	}

	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
