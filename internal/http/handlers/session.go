package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sagelearn/engage-backend/internal/http/response"
	"github.com/sagelearn/engage-backend/internal/pkg/ctxutil"
	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/repos"
	"github.com/sagelearn/engage-backend/internal/services"
)

type SessionHandler struct {
	log      *logger.Logger
	sessions services.SessionService
	stats    services.StatsService
}

func NewSessionHandler(log *logger.Logger, sessions services.SessionService, stats services.StatsService) *SessionHandler {
	return &SessionHandler{
		log:      log.With("handler", "SessionHandler"),
		sessions: sessions,
		stats:    stats,
	}
}

// POST /api/sessions/start
func (h *SessionHandler) Start(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var in services.SessionStartInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	result, err := h.sessions.Start(dbc, rd.LearnerID, in)
	if err != nil {
		h.log.Error("Start session failed", "error", err, "learner_id", rd.LearnerID)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, result)
}

// POST /api/sessions/:sessionId/end
func (h *SessionHandler) End(c *gin.Context) {
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
	session, err := h.sessions.End(dbc, rd.LearnerID, sessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// GET /api/sessions/active
func (h *SessionHandler) GetActive(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	session, err := h.sessions.GetActive(dbc, rd.LearnerID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// GET /api/sessions
func (h *SessionHandler) List(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	filter := repos.SessionFilter{Platform: c.Query("platform")}
	if raw := c.Query("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_is_active", err)
			return
		}
		filter.IsActive = &active
	}
	var bad error
	filter.StartedAfter, bad = parseTimeQuery(c, "from")
	if bad != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_from", bad)
		return
	}
	filter.EndedBefore, bad = parseTimeQuery(c, "to")
	if bad != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_to", bad)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	result, err := h.sessions.List(dbc, rd.LearnerID, filter, page, limit)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// GET /api/sessions/stats
func (h *SessionHandler) Stats(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	from, err := parseTimeQuery(c, "from")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_from", err)
		return
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_to", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	stats, err := h.stats.SessionStats(dbc, rd.LearnerID, from, to)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, stats)
}

// POST /api/sessions/stats/rebuild
func (h *SessionHandler) RebuildStats(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.stats.Rebuild(dbc, rd.LearnerID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rebuilt": true})
}

// GET /api/sessions/:sessionId
func (h *SessionHandler) Detail(c *gin.Context) {
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
	detail, err := h.sessions.Detail(dbc, rd.LearnerID, sessionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
