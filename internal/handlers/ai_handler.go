package handlers

import (
	"net/http"

	"github.com/photodiary/server/internal/app"
	"github.com/photodiary/server/internal/models"
)

// AIHandler serves the upload form's caption helper
type AIHandler struct {
	app      *app.App
	maxBytes int64
}

// NewAIHandler creates a new AIHandler
func NewAIHandler(a *app.App, maxBytes int64) *AIHandler {
	return &AIHandler{app: a, maxBytes: maxBytes}
}

// Caption suggests a description and tags for an image before upload
// @Summary Suggest caption and tags
// @Tags ai
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image"
// @Success 200 {object} models.CaptionResponse
// @Failure 400 {object} models.ErrorResponse "No image"
// @Failure 503 {object} models.ErrorResponse "AI unavailable"
// @Router /api/ai/caption [post]
func (h *AIHandler) Caption(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, h.maxBytes)
	if err != nil {
		respondFailure(w, err, "AI failed to generate a caption.")
		return
	}
	if int64(len(up.data)) > h.maxBytes {
		respondFailure(w, models.NewValidationError("file", "File is too large."), "")
		return
	}

	caption, err := h.app.Photos().Caption(r.Context(), up.data, up.filename)
	if err != nil {
		respondFailure(w, err, "AI failed to generate a caption.")
		return
	}

	tags := caption.Tags
	if tags == nil {
		tags = []string{}
	}
	respondJSON(w, http.StatusOK, models.CaptionResponse{Caption: caption.Text, Tags: tags})
}
