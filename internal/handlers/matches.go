package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peladahub/peladahub/internal/middleware"
	"github.com/peladahub/peladahub/internal/realtime"
	"github.com/peladahub/peladahub/internal/services"
	appErrors "github.com/peladahub/peladahub/pkg/errors"
	"github.com/peladahub/peladahub/pkg/response"
)

// MatchHandler manages match scheduling, rosters, the team draw and the
// live scoreboard.
type MatchHandler struct {
	matches *services.MatchService
	draws   *services.DrawService
	hub     *realtime.Hub
}

func NewMatchHandler(matches *services.MatchService, draws *services.DrawService, hub *realtime.Hub) *MatchHandler {
	return &MatchHandler{matches: matches, draws: draws, hub: hub}
}

type createMatchRequest struct {
	Title       string    `json:"title" validate:"required,max=128"`
	Location    string    `json:"location" validate:"omitempty,max=256"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Capacity    int       `json:"capacity" validate:"required,min=2,max=44"`
}

// POST /api/matches
func (h *MatchHandler) Create(c *gin.Context) {
	var req createMatchRequest
	if !bindAndValidate(c, &req) {
		return
	}

	match, err := h.matches.Create(requestContext(c), services.CreateMatchInput{
		Title:       req.Title,
		Location:    req.Location,
		ScheduledAt: req.ScheduledAt,
		Capacity:    req.Capacity,
		CreatedBy:   c.GetString(middleware.CtxUserIDKey),
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusCreated, match)
}

// GET /api/matches
func (h *MatchHandler) List(c *gin.Context) {
	matches, err := h.matches.List(requestContext(c))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"matches": matches})
}

// GET /api/matches/:id
func (h *MatchHandler) Get(c *gin.Context) {
	match, err := h.matches.Get(requestContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrMatchNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, match)
}

// POST /api/matches/:id/join
func (h *MatchHandler) Join(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entry, err := h.matches.Join(requestContext(c), c.Param("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMatchNotFound):
			response.Error(c, appErrors.ErrNotFound)
		case errors.Is(err, services.ErrMatchFull):
			response.Error(c, appErrors.NewConflict("Match roster is full"))
		case errors.Is(err, services.ErrMatchInvalidState):
			response.Error(c, appErrors.NewConflict("Match is no longer open for joining"))
		case errors.Is(err, services.ErrAlreadyRostered):
			response.Error(c, appErrors.NewConflict("You are already on this roster"))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}

	response.Success(c, http.StatusCreated, entry)
}

// POST /api/matches/:id/leave
func (h *MatchHandler) Leave(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.matches.Leave(requestContext(c), c.Param("id"), userID); err != nil {
		switch {
		case errors.Is(err, services.ErrMatchNotFound):
			response.Error(c, appErrors.ErrNotFound)
		case errors.Is(err, services.ErrNotRostered):
			response.Error(c, appErrors.NewConflict("You are not on this roster"))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"left": true})
}

// POST /api/matches/:id/start
func (h *MatchHandler) Start(c *gin.Context) {
	match, err := h.matches.Start(requestContext(c), c.Param("id"))
	if err != nil {
		h.lifecycleError(c, err)
		return
	}

	h.hub.BroadcastStream(realtime.StreamMatches, realtime.Message{
		Event: "started",
		Data:  gin.H{"match_id": match.ID},
	})

	response.Success(c, http.StatusOK, match)
}

// POST /api/matches/:id/finish
func (h *MatchHandler) Finish(c *gin.Context) {
	match, err := h.matches.Finish(requestContext(c), c.Param("id"))
	if err != nil {
		h.lifecycleError(c, err)
		return
	}

	h.hub.BroadcastStream(realtime.StreamMatches, realtime.Message{
		Event: "finished",
		Data: gin.H{
			"match_id":   match.ID,
			"home_goals": match.HomeGoals,
			"away_goals": match.AwayGoals,
		},
	})

	response.Success(c, http.StatusOK, match)
}

type recordGoalRequest struct {
	Side     string  `json:"side" validate:"required,oneof=home away"`
	ScorerID string  `json:"scorer_id" validate:"required"`
	AssistID *string `json:"assist_id"`
	Minute   int     `json:"minute" validate:"omitempty,min=0,max=200"`
}

// POST /api/matches/:id/goals
func (h *MatchHandler) RecordGoal(c *gin.Context) {
	var req recordGoalRequest
	if !bindAndValidate(c, &req) {
		return
	}

	event, err := h.matches.RecordGoal(requestContext(c), services.ScoreEventInput{
		MatchID:  c.Param("id"),
		Side:     req.Side,
		ScorerID: req.ScorerID,
		AssistID: req.AssistID,
		Minute:   req.Minute,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMatchNotFound):
			response.Error(c, appErrors.ErrNotFound)
		case errors.Is(err, services.ErrMatchInvalidState):
			response.Error(c, appErrors.NewConflict("Goals can only be recorded on a live match"))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}

	response.Success(c, http.StatusCreated, event)
}

type drawRequest struct {
	TeamCount int `json:"team_count" validate:"required,min=2,max=6"`
}

// POST /api/matches/:id/draw
func (h *MatchHandler) Draw(c *gin.Context) {
	var req drawRequest
	if !bindAndValidate(c, &req) {
		return
	}

	teams, err := h.draws.Draw(requestContext(c), c.Param("id"), req.TeamCount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMatchNotFound):
			response.Error(c, appErrors.ErrNotFound)
		case errors.Is(err, services.ErrDrawTooFewPlayers):
			response.Error(c, appErrors.NewConflict("Not enough rostered players for that many teams"))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"teams": teams})
}

// GET /api/matches/:id/teams
func (h *MatchHandler) Teams(c *gin.Context) {
	teams, err := h.draws.Teams(requestContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrMatchNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"teams": teams})
}

// GET /api/matches/:id/live
//
// Upgrades to a WebSocket subscribed to this match's score stream plus the
// global lifecycle stream. Clients can resubscribe to other matches over
// the same socket.
func (h *MatchHandler) Live(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	streams := []string{realtime.StreamMatches, realtime.MatchStream(c.Param("id"))}
	h.hub.Serve(userID, streams, c.Writer, c.Request)
}

func (h *MatchHandler) lifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMatchNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrMatchInvalidState):
		response.Error(c, appErrors.NewConflict("Match is not in a state that allows this operation"))
	default:
		response.Error(c, appErrors.ErrInternalServer)
	}
}
