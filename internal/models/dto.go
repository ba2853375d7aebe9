package models

import "time"

// PhotoGroupResponse is one calendar day of photos
type PhotoGroupResponse struct {
	Date   string  `json:"date"`
	Label  string  `json:"label"`
	Photos []Photo `json:"photos"`
}

// PhotoListResponse is returned when listing photos
type PhotoListResponse struct {
	Status  string               `json:"status"`
	Error   string               `json:"error,omitempty"`
	Groups  []PhotoGroupResponse `json:"groups"`
	Matches int                  `json:"matches"`
	Total   int                  `json:"total"`
}

// ToggleFavoriteResponse reports the flag after a confirmed toggle
type ToggleFavoriteResponse struct {
	ID         string `json:"id"`
	IsFavorite bool   `json:"isFavorite"`
}

// CommentResponse is a comment as shown in an open thread
type CommentResponse struct {
	ID            string    `json:"id,omitempty"`
	LocalID       string    `json:"localId"`
	Text          string    `json:"text"`
	Username      string    `json:"username"`
	IsUserComment bool      `json:"isUserComment"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ThreadResponse is the open comment thread
type ThreadResponse struct {
	PhotoID  string            `json:"photoId"`
	Loaded   bool              `json:"loaded"`
	Comments []CommentResponse `json:"comments"`
}

// SubmitCommentRequest is the request body for posting a comment
type SubmitCommentRequest struct {
	Text string `json:"text"`
}

// DraftResponse carries AI-generated text that the user may edit before posting
type DraftResponse struct {
	Text string `json:"text"`
}

// CaptionResponse is returned by the caption helper of the upload form
type CaptionResponse struct {
	Caption string   `json:"caption"`
	Tags    []string `json:"tags"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	AI        bool      `json:"ai"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
