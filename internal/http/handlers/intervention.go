package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sagelearn/engage-backend/internal/http/response"
	"github.com/sagelearn/engage-backend/internal/pkg/ctxutil"
	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/services"
)

type InterventionHandler struct {
	log           *logger.Logger
	interventions services.InterventionService
}

func NewInterventionHandler(log *logger.Logger, interventions services.InterventionService) *InterventionHandler {
	return &InterventionHandler{
		log:           log.With("handler", "InterventionHandler"),
		interventions: interventions,
	}
}

// GET /api/interventions/:id/suggestion
func (h *InterventionHandler) Suggestion(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil || sessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	decision, err := h.interventions.Evaluate(dbc, rd.LearnerID, sessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, decision)
}

// POST /api/interventions/:id/response
func (h *InterventionHandler) Respond(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	interventionID, err := uuid.Parse(c.Param("id"))
	if err != nil || interventionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_intervention_id", err)
		return
	}

	var in services.ResponseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	intervention, err := h.interventions.RecordResponse(dbc, rd.LearnerID, interventionID, in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"intervention": intervention})
}

// GET /api/interventions/:id/history
func (h *InterventionHandler) History(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil || sessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	history, err := h.interventions.History(dbc, rd.LearnerID, sessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"interventions": history, "count": len(history)})
}

// GET /api/interventions/stats
func (h *InterventionHandler) Stats(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	stats, err := h.interventions.Stats(dbc, rd.LearnerID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, stats)
}
