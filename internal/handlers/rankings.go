package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peladahub/peladahub/internal/services"
	appErrors "github.com/peladahub/peladahub/pkg/errors"
	"github.com/peladahub/peladahub/pkg/response"
)

// RankingHandler serves the monthly scorer ranking.
type RankingHandler struct {
	rankings *services.RankingService
}

func NewRankingHandler(rankings *services.RankingService) *RankingHandler {
	return &RankingHandler{rankings: rankings}
}

// GET /api/rankings?period=YYYY-MM
func (h *RankingHandler) Monthly(c *gin.Context) {
	period := strings.TrimSpace(c.Query("period"))
	if period == "" {
		period = time.Now().Format("2006-01")
	}

	if _, err := time.Parse("2006-01", period); err != nil {
		response.Error(c, appErrors.NewBadRequest("period must use the YYYY-MM format"))
		return
	}

	entries, err := h.rankings.Monthly(requestContext(c), period)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"period":  period,
		"entries": entries,
	})
}
