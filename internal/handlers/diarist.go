package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peladahub/peladahub/internal/middleware"
	"github.com/peladahub/peladahub/internal/models"
	"github.com/peladahub/peladahub/internal/services"
	appErrors "github.com/peladahub/peladahub/pkg/errors"
	"github.com/peladahub/peladahub/pkg/response"
)

// DiaristHandler manages casual-player slot requests and their payment
// windows.
type DiaristHandler struct {
	diarists *services.DiaristService
}

func NewDiaristHandler(diarists *services.DiaristService) *DiaristHandler {
	return &DiaristHandler{diarists: diarists}
}

type diaristRequestBody struct {
	AmountCents int64 `json:"amount_cents" validate:"required,min=1"`
}

// POST /api/matches/:id/diarist
func (h *DiaristHandler) Request(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req diaristRequestBody
	if !bindAndValidate(c, &req) {
		return
	}

	request, err := h.diarists.Request(requestContext(c), c.Param("id"), userID, req.AmountCents)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMatchNotFound):
			response.Error(c, appErrors.ErrNotFound)
		case errors.Is(err, services.ErrMatchFull):
			response.Error(c, appErrors.NewConflict("Match roster is full"))
		case errors.Is(err, services.ErrDiaristDuplicate):
			response.Error(c, appErrors.NewConflict("You already have a request for this match"))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}

	response.Success(c, http.StatusCreated, request)
}

// GET /api/matches/:id/diarist
func (h *DiaristHandler) ListByMatch(c *gin.Context) {
	requests, err := h.diarists.ListByMatch(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"requests": requests})
}

// GET /api/diarist/:id
func (h *DiaristHandler) Status(c *gin.Context) {
	request, err := h.load(c)
	if err != nil {
		h.transitionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.statusPayload(c, request))
}

// POST /api/diarist/:id/start-payment
func (h *DiaristHandler) StartPayment(c *gin.Context) {
	request, err := h.diarists.StartPayment(requestContext(c), c.Param("id"))
	if err != nil {
		h.transitionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.statusPayload(c, request))
}

// POST /api/diarist/:id/pay
func (h *DiaristHandler) Pay(c *gin.Context) {
	request, err := h.diarists.MarkPaid(requestContext(c), c.Param("id"))
	if err != nil {
		h.transitionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, request)
}

// POST /api/diarist/:id/credit
//
// Converts a lapsed payment window into credit. Inside the window this is a
// no-op and the current state comes back unchanged.
func (h *DiaristHandler) Credit(c *gin.Context) {
	request, err := h.diarists.CreditIfLate(requestContext(c), c.Param("id"))
	if err != nil {
		h.transitionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.statusPayload(c, request))
}

func (h *DiaristHandler) load(c *gin.Context) (*models.DiaristRequest, error) {
	return h.diarists.Get(requestContext(c), c.Param("id"))
}

func (h *DiaristHandler) statusPayload(c *gin.Context, request *models.DiaristRequest) gin.H {
	active, _ := h.diarists.WindowActive(requestContext(c), request.ID)
	return gin.H{
		"request":               request,
		"payment_window_active": active,
	}
}

func (h *DiaristHandler) transitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDiaristNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrDiaristInvalidState):
		response.Error(c, appErrors.NewConflict("Request is not in a state that allows this operation"))
	default:
		response.Error(c, appErrors.ErrInternalServer)
	}
}
