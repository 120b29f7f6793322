package consultation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/consult-api/internal/handler"
	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/service/consultation"
)

type Handler struct {
	service *consultation.Service
}

func NewHandler(service *consultation.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	consultations := r.Group("/consultations")
	{
		consultations.POST("", h.CreateConsultation)
		consultations.GET("", h.ListConsultations)
		consultations.GET("/:id", h.GetConsultation)
		consultations.PUT("/:id", h.UpdateConsultation)
		consultations.POST("/:id/upload_audio", h.UploadAudio)
	}
}

func (h *Handler) CreateConsultation(c *gin.Context) {
	actorID, ok := handler.ActorID(c)
	if !ok {
		return
	}

	var req model.CreateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.Create(c.Request.Context(), actorID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) ListConsultations(c *gin.Context) {
	actorID, ok := handler.ActorID(c)
	if !ok {
		return
	}

	filters := &model.ConsultationFilters{
		ClinicianID: actorID,
		Status:      model.ConsultationStatus(c.Query("status")),
	}

	consultations, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(consultations))
}

// GetConsultation returns the consultation with its transcript and
// generated documents, the review screen's single fetch.
func (h *Handler) GetConsultation(c *gin.Context) {
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	found, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	transcript, err := h.service.GetTranscript(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	documents, err := h.service.ListDocuments(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"consultation": found,
		"transcript":   transcript,
		"documents":    documents,
	}))
}

func (h *Handler) UpdateConsultation(c *gin.Context) {
	actorID, ok := handler.ActorID(c)
	if !ok {
		return
	}
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	updated, err := h.service.Update(c.Request.Context(), actorID, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) UploadAudio(c *gin.Context) {
	actorID, ok := handler.ActorID(c)
	if !ok {
		return
	}
	id, ok := handler.PathID(c, "id")
	if !ok {
		return
	}

	file, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("audio file required"))
		return
	}

	src, err := file.Open()
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	defer src.Close()

	updated, err := h.service.UploadAudio(c.Request.Context(), actorID, id, file.Filename, file.Size, src)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}
