package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/photodiary/server/internal/models"
)

const multipartOverhead = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondFailure maps err to a status code and a user-facing message.
// fallback is shown for remote store failures; raw errors are never sent.
func respondFailure(w http.ResponseWriter, err error, fallback string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, models.ErrAIUnavailable):
		respondError(w, http.StatusServiceUnavailable, "AI is not available right now.")
	case errors.Is(err, models.ErrParentNotFound):
		respondError(w, http.StatusNotFound, "This photo no longer exists.")
	case errors.Is(err, models.ErrPhotoNotFound):
		respondError(w, http.StatusNotFound, "Photo not found.")
	case errors.Is(err, models.ErrRemoteUnavailable):
		respondError(w, http.StatusBadGateway, fallback)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, fallback)
	default:
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

type upload struct {
	data     []byte
	filename string
	mimeType string
}

// readUpload reads the "file" part of a multipart request, rejecting bodies
// larger than maxBytes plus form overhead.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, models.NewValidationError("file", "File is too large.")
		}
		return nil, models.NewValidationError("file", "Request must be multipart/form-data.")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return &upload{}, nil
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, models.NewValidationError("file", "File is too large.")
	}
	return &upload{
		data:     data,
		filename: header.Filename,
		mimeType: header.Header.Get("Content-Type"),
	}, nil
}
