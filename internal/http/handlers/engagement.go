package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sagelearn/engage-backend/internal/http/response"
	"github.com/sagelearn/engage-backend/internal/pkg/ctxutil"
	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/services"
)

type EngagementHandler struct {
	log       *logger.Logger
	telemetry services.TelemetryService
}

func NewEngagementHandler(log *logger.Logger, telemetry services.TelemetryService) *EngagementHandler {
	return &EngagementHandler{
		log:       log.With("handler", "EngagementHandler"),
		telemetry: telemetry,
	}
}

// POST /api/engagement/log
func (h *EngagementHandler) Log(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var in services.SampleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if in.SessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", nil)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	sample, err := h.telemetry.Append(dbc, rd.LearnerID, in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"sample": sample})
}

// GET /api/engagement/:sessionId/timeline?resolution=N
func (h *EngagementHandler) Timeline(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil || sessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	resolution := 0
	if raw := c.Query("resolution"); raw != "" {
		resolution, err = strconv.Atoi(raw)
		if err != nil || resolution < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_resolution", err)
			return
		}
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	timeline, err := h.telemetry.Timeline(dbc, rd.LearnerID, sessionID, resolution)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"timeline": timeline, "count": len(timeline)})
}

// GET /api/engagement/:sessionId/current
func (h *EngagementHandler) Current(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil || sessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	snap, err := h.telemetry.Current(dbc, rd.LearnerID, sessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, snap)
}

// GET /api/engagement/:sessionId/averages
func (h *EngagementHandler) Averages(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil || sessionID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	averages, err := h.telemetry.Averages(dbc, rd.LearnerID, sessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if averages == nil {
		response.RespondOK(c, gin.H{"hasData": false})
		return
	}
	response.RespondOK(c, gin.H{
		"hasData":          true,
		"meanEngagement":   averages.MeanEngagement,
		"emotionHistogram": averages.EmotionHistogram,
	})
}
