package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/photodiary/server/internal/app"
	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/observability"
	"github.com/photodiary/server/internal/state"
)

// PhotoHandler handles photo collection endpoints
type PhotoHandler struct {
	app      *app.App
	maxBytes int64
	logger   *observability.Logger
}

// NewPhotoHandler creates a new PhotoHandler
func NewPhotoHandler(a *app.App, maxBytes int64, logger *observability.Logger) *PhotoHandler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &PhotoHandler{app: a, maxBytes: maxBytes, logger: logger}
}

// List returns the filtered, date-grouped collection
// @Summary List photos
// @Description Returns the in-memory collection filtered by search term and favorites, grouped by day, newest first
// @Tags photos
// @Produce json
// @Param q query string false "Search term matched against description, tags and date"
// @Param favorites query bool false "Only favorites"
// @Success 200 {object} models.PhotoListResponse
// @Router /api/photos [get]
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	favoritesOnly, _ := strconv.ParseBool(r.URL.Query().Get("favorites"))
	view := h.app.Photos().View(r.URL.Query().Get("q"), favoritesOnly)
	respondJSON(w, http.StatusOK, toListResponse(view))
}

// Refresh reloads the collection from the remote store
// @Summary Reload photos
// @Tags photos
// @Produce json
// @Success 200 {object} models.PhotoListResponse
// @Failure 502 {object} models.PhotoListResponse "Remote store unavailable"
// @Router /api/photos/refresh [post]
func (h *PhotoHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if err := h.app.Photos().Refresh(r.Context()); err != nil {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, toListResponse(h.app.Photos().View("", false)))
}

// Upload stores a new photo
// @Summary Upload a photo
// @Tags photos
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image"
// @Param description formData string true "Description"
// @Param tags formData string false "Comma separated tags"
// @Success 201 {object} models.Photo
// @Failure 400 {object} models.ErrorResponse "Invalid input"
// @Failure 502 {object} models.ErrorResponse "Remote store unavailable"
// @Router /api/photos [post]
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, h.maxBytes)
	if err != nil {
		respondFailure(w, err, state.MsgUploadFailed)
		return
	}

	photo, err := h.app.Photos().Upload(r.Context(), models.NewPhotoInput{
		Image:       up.data,
		Filename:    up.filename,
		ContentType: up.mimeType,
		Description: r.FormValue("description"),
		Tags:        r.MultipartForm.Value["tags"],
	})
	if err != nil {
		respondFailure(w, err, state.MsgUploadFailed)
		return
	}

	h.logger.WithContext(r.Context()).WithField("photo_id", photo.ID).Info("Photo uploaded")
	respondJSON(w, http.StatusCreated, photo)
}

// Delete removes a photo and its image
// @Summary Delete a photo
// @Tags photos
// @Param id path string true "Photo ID"
// @Success 204 "Deleted"
// @Failure 404 {object} models.ErrorResponse "Photo not found"
// @Failure 502 {object} models.ErrorResponse "Remote store unavailable"
// @Router /api/photos/{id} [delete]
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.app.RemovePhoto(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondFailure(w, err, state.MsgDeleteFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavorite flips the favorite flag
// @Summary Toggle favorite
// @Tags photos
// @Produce json
// @Param id path string true "Photo ID"
// @Success 200 {object} models.ToggleFavoriteResponse
// @Failure 404 {object} models.ErrorResponse "Photo not found"
// @Failure 502 {object} models.ErrorResponse "Remote store unavailable, flag restored"
// @Router /api/photos/{id}/favorite [post]
func (h *PhotoHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	value, err := h.app.Photos().ToggleFavorite(r.Context(), id)
	if err != nil {
		respondFailure(w, err, state.MsgFavoriteFailed)
		return
	}
	respondJSON(w, http.StatusOK, models.ToggleFavoriteResponse{ID: id, IsFavorite: value})
}

func toListResponse(view state.View) models.PhotoListResponse {
	groups := make([]models.PhotoGroupResponse, 0, len(view.Groups))
	for _, g := range view.Groups {
		groups = append(groups, models.PhotoGroupResponse{Date: g.Date, Label: g.Label, Photos: g.Photos})
	}
	return models.PhotoListResponse{
		Status:  string(view.Status),
		Error:   view.Error,
		Groups:  groups,
		Matches: view.Matches,
		Total:   view.Total,
	}
}
