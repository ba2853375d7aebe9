package models

// Errors
type PhotoError struct {
	Message string
}

func (e PhotoError) Error() string {
	return e.Message
}

var (
	ErrRemoteUnavailable = PhotoError{"remote store unavailable"}
	ErrValidation        = PhotoError{"validation failed"}
	ErrParentNotFound    = PhotoError{"parent photo not found"}
	ErrAIUnavailable     = PhotoError{"ai collaborator unavailable"}
	ErrPhotoNotFound     = PhotoError{"photo not found"}
	ErrBlobNotFound      = PhotoError{"blob not found"}
	ErrInvalidExtension  = PhotoError{"file extension not allowed"}
	ErrFileTooLarge      = PhotoError{"file size exceeds maximum allowed"}
	ErrPathTraversal     = PhotoError{"invalid path - path traversal detected"}
)

// ValidationError describes a rejected input field. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
