package models

// NoticeError is the level of every notice raised by a failed operation
const NoticeError = "error"

// Notice is a user-facing message raised by a failed or finished background operation
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	PhotoID string `json:"photoId,omitempty"`
}
