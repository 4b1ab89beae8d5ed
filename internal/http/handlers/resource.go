package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sagelearn/engage-backend/internal/http/response"
	"github.com/sagelearn/engage-backend/internal/pkg/ctxutil"
	"github.com/sagelearn/engage-backend/internal/pkg/dbctx"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/repos"
)

type ResourceHandler struct {
	log       *logger.Logger
	resources repos.LearningResourceRepo
}

func NewResourceHandler(log *logger.Logger, resources repos.LearningResourceRepo) *ResourceHandler {
	return &ResourceHandler{
		log:       log.With("handler", "ResourceHandler"),
		resources: resources,
	}
}

// GET /api/resources?type=video&tags=calculus,limits
func (h *ResourceHandler) List(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.LearnerID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var tags []string
	if raw := c.Query("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	resources, total, err := h.resources.List(dbc, c.Query("type"), tags, page, limit)
	if err != nil {
		h.log.Error("List resources failed", "error", err)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"resources": resources,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}
