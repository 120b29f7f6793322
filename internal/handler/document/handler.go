package document

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/consult-api/internal/handler"
	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/service/document"
)

type Handler struct {
	service *document.Service
}

func NewHandler(service *document.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	documents := r.Group("/consultations/:id/documents")
	{
		documents.GET("", h.ListDocuments)
		documents.GET("/:documentId", h.GetDocument)
		documents.PUT("/:documentId", h.UpdateDocument)
		documents.POST("/:documentId/approve", h.ApproveDocument)
		documents.POST("/:documentId/send", h.SendDocument)
	}
}

func (h *Handler) ListDocuments(c *gin.Context) {
	consultationID, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	documents, err := h.service.ListByConsultation(c.Request.Context(), consultationID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(documents))
}

func (h *Handler) GetDocument(c *gin.Context) {
	id, ok := handler.PathID(c, "documentId")
	if !ok {
		return
	}

	doc, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doc))
}

func (h *Handler) UpdateDocument(c *gin.Context) {
	actorID, ok := handler.ActorID(c)
	if !ok {
		return
	}
	id, ok := handler.PathID(c, "documentId")
	if !ok {
		return
	}

	var req model.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	doc, err := h.service.Update(c.Request.Context(), actorID, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doc))
}

func (h *Handler) ApproveDocument(c *gin.Context) {
	actorID, ok := handler.ActorID(c)
	if !ok {
		return
	}
	id, ok := handler.PathID(c, "documentId")
	if !ok {
		return
	}

	doc, err := h.service.Approve(c.Request.Context(), actorID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doc))
}

func (h *Handler) SendDocument(c *gin.Context) {
	actorID, ok := handler.ActorID(c)
	if !ok {
		return
	}
	id, ok := handler.PathID(c, "documentId")
	if !ok {
		return
	}

	var req model.SendDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	doc, err := h.service.Send(c.Request.Context(), actorID, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doc))
}
