package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/consult-api/internal/handler"
	"github.com/jwalitptl/consult-api/internal/service/audit"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit/:entityType/:id", h.ListEntityAudit)
}

// ListEntityAudit returns the audit trail of one entity, newest first.
func (h *Handler) ListEntityAudit(c *gin.Context) {
	if _, ok := handler.ActorID(c); !ok {
		return
	}
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	logs, err := h.service.List(c.Request.Context(), c.Param("entityType"), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(logs))
}
