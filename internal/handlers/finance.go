package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peladahub/peladahub/internal/middleware"
	"github.com/peladahub/peladahub/internal/services"
	appErrors "github.com/peladahub/peladahub/pkg/errors"
	"github.com/peladahub/peladahub/pkg/response"
)

// FinanceHandler manages monthly charges and balances.
type FinanceHandler struct {
	finance *services.FinanceService
}

func NewFinanceHandler(finance *services.FinanceService) *FinanceHandler {
	return &FinanceHandler{finance: finance}
}

type openChargesRequest struct {
	Period      string `json:"period" validate:"required,datetime=2006-01"`
	AmountCents int64  `json:"amount_cents" validate:"required,min=1"`
}

// POST /api/finance/charges
//
// Opens the month's charge for every active monthly member. Re-running for
// the same period only creates charges that do not exist yet.
func (h *FinanceHandler) OpenCharges(c *gin.Context) {
	var req openChargesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	created, err := h.finance.OpenMonthlyCharges(requestContext(c), req.Period, req.AmountCents)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"created": created})
}

// GET /api/finance/charges
func (h *FinanceHandler) MyCharges(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	charges, err := h.finance.ListByUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"charges": charges})
}

// POST /api/finance/charges/:id/pay
func (h *FinanceHandler) PayCharge(c *gin.Context) {
	charge, err := h.finance.MarkPaid(requestContext(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChargeNotFound):
			response.Error(c, appErrors.ErrNotFound)
		case errors.Is(err, services.ErrChargeAlreadyPaid):
			response.Error(c, appErrors.NewConflict("Charge has already been settled"))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}

	response.Success(c, http.StatusOK, charge)
}

// GET /api/finance/balance
func (h *FinanceHandler) Balance(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	balance, err := h.finance.BalanceFor(requestContext(c), userID)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, balance)
}
