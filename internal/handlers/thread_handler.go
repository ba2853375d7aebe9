package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/photodiary/server/internal/app"
	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/state"
)

// ThreadHandler handles the comment thread of the opened photo
type ThreadHandler struct {
	app *app.App
}

// NewThreadHandler creates a new ThreadHandler
func NewThreadHandler(a *app.App) *ThreadHandler {
	return &ThreadHandler{app: a}
}

// Open opens the comment thread of a photo, replacing any open one
// @Summary Open a photo
// @Tags thread
// @Produce json
// @Param id path string true "Photo ID"
// @Success 200 {object} models.ThreadResponse
// @Failure 404 {object} models.ErrorResponse "Photo not found"
// @Failure 502 {object} models.ErrorResponse "Comments could not be loaded"
// @Router /api/photos/{id}/open [post]
func (h *ThreadHandler) Open(w http.ResponseWriter, r *http.Request) {
	thread, err := h.app.OpenPhoto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, err, state.MsgCommentsFailed)
		return
	}
	respondJSON(w, http.StatusOK, toThreadResponse(thread))
}

// Close discards the open thread
// @Summary Close the open photo
// @Tags thread
// @Success 204 "Closed"
// @Router /api/thread [delete]
func (h *ThreadHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.app.ClosePhoto()
	w.WriteHeader(http.StatusNoContent)
}

// Comments returns the open thread, loading it if an earlier load failed
// @Summary List comments of the open photo
// @Tags thread
// @Produce json
// @Success 200 {object} models.ThreadResponse
// @Failure 404 {object} models.ErrorResponse "No photo is open"
// @Router /api/thread/comments [get]
func (h *ThreadHandler) Comments(w http.ResponseWriter, r *http.Request) {
	thread, ok := h.thread(w)
	if !ok {
		return
	}
	if err := thread.Load(r.Context()); err != nil {
		respondFailure(w, err, state.MsgCommentsFailed)
		return
	}
	respondJSON(w, http.StatusOK, toThreadResponse(thread))
}

// Submit posts a user comment on the open photo
// @Summary Post a comment
// @Tags thread
// @Accept json
// @Produce json
// @Param request body models.SubmitCommentRequest true "Comment"
// @Success 201 {object} models.CommentResponse
// @Failure 400 {object} models.ErrorResponse "Invalid comment"
// @Failure 404 {object} models.ErrorResponse "No photo is open or it was deleted"
// @Failure 502 {object} models.ErrorResponse "Remote store unavailable"
// @Router /api/thread/comments [post]
func (h *ThreadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	thread, ok := h.thread(w)
	if !ok {
		return
	}

	var req models.SubmitCommentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	comment, err := thread.Submit(r.Context(), req.Text)
	if err != nil {
		respondFailure(w, err, state.MsgCommentFailed)
		return
	}
	respondJSON(w, http.StatusCreated, toCommentResponse(*comment))
}

// Dismiss removes a failed comment from the open thread
// @Summary Dismiss a failed comment
// @Tags thread
// @Param localId path string true "Local comment ID"
// @Success 204 "Dismissed"
// @Failure 404 {object} models.ErrorResponse "No such failed comment"
// @Router /api/thread/comments/{localId} [delete]
func (h *ThreadHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	thread, ok := h.thread(w)
	if !ok {
		return
	}
	if !thread.Dismiss(chi.URLParam(r, "localId")) {
		respondError(w, http.StatusNotFound, "Comment not found.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AIComment asks the AI collaborator for a draft comment on the open photo
// @Summary Draft an AI comment
// @Tags thread
// @Produce json
// @Success 200 {object} models.DraftResponse
// @Failure 404 {object} models.ErrorResponse "No photo is open"
// @Failure 503 {object} models.ErrorResponse "AI unavailable"
// @Router /api/thread/ai-comment [post]
func (h *ThreadHandler) AIComment(w http.ResponseWriter, r *http.Request) {
	thread, ok := h.thread(w)
	if !ok {
		return
	}
	text, err := thread.RequestAIComment(r.Context())
	if err != nil {
		respondFailure(w, err, state.MsgAIFailed)
		return
	}
	respondJSON(w, http.StatusOK, models.DraftResponse{Text: text})
}

func (h *ThreadHandler) thread(w http.ResponseWriter) (*state.CommentThread, bool) {
	thread := h.app.Thread()
	if thread == nil {
		respondError(w, http.StatusNotFound, "No photo is open.")
		return nil, false
	}
	return thread, true
}

func toThreadResponse(thread *state.CommentThread) models.ThreadResponse {
	comments := thread.Comments()
	resp := models.ThreadResponse{
		PhotoID:  thread.PhotoID(),
		Loaded:   thread.Loaded(),
		Comments: make([]models.CommentResponse, 0, len(comments)),
	}
	for _, c := range comments {
		resp.Comments = append(resp.Comments, toCommentResponse(c))
	}
	return resp
}

func toCommentResponse(c state.LocalComment) models.CommentResponse {
	return models.CommentResponse{
		ID:            c.ID,
		LocalID:       c.LocalID,
		Text:          c.Text,
		Username:      c.Username,
		IsUserComment: c.IsUserComment,
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
	}
}
