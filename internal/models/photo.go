package models

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

const (
	// MaxImageBytes is the default upper bound for an uploaded image (10MB)
	MaxImageBytes = 10 * 1024 * 1024
	// MaxTags bounds the number of tags kept on a photo
	MaxTags = 10
	// MaxTextLength bounds comment text and AI captions
	MaxTextLength = 500
)

// Photo is a diary entry as persisted by the document store
type Photo struct {
	ID           string    `json:"id"`
	ImageURL     string    `json:"imageUrl"`
	Description  string    `json:"description"`
	Tags         []string  `json:"tags"`
	IsFavorite   bool      `json:"isFavorite"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Clone returns a copy that shares no memory with p
func (p Photo) Clone() Photo {
	c := p
	c.Tags = append([]string{}, p.Tags...)
	return c
}

// NewPhotoInput carries everything needed to create a photo
type NewPhotoInput struct {
	Image       []byte
	Filename    string
	ContentType string
	Description string
	Tags        []string
}

// Extension returns the lowercased extension of the original filename, without the dot
func (in NewPhotoInput) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(in.Filename)), ".")
}

// Validate checks the input before any remote call is made
func (in NewPhotoInput) Validate(maxBytes int64) error {
	if len(in.Image) == 0 {
		return NewValidationError("file", "Please select a photo to upload.")
	}
	if maxBytes > 0 && int64(len(in.Image)) > maxBytes {
		return NewValidationError("file", "File is too large.")
	}
	if strings.TrimSpace(in.Description) == "" {
		return NewValidationError("description", "Please add a description for your memory.")
	}
	if !slices.Contains(ImageExtensions, in.Extension()) {
		return NewValidationError("file", "Unsupported image type.")
	}
	return nil
}

// ImageExtensions lists the accepted upload extensions, without the dot
var ImageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp", "heic", "heif"}

var tagStrip = regexp.MustCompile(`[^a-z0-9\s-]`)

// NormalizeTags applies the tag rules: comma split, trim, lowercase, strip
// unsupported characters, 2..19 chars, dedupe preserving first occurrence.
func NormalizeTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]bool)
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			tag := strings.TrimSpace(tagStrip.ReplaceAllString(strings.ToLower(strings.TrimSpace(part)), ""))
			if len(tag) < 2 || len(tag) >= 20 || seen[tag] {
				continue
			}
			seen[tag] = true
			tags = append(tags, tag)
			if len(tags) == MaxTags {
				return tags
			}
		}
	}
	return tags
}

// ValidateCommentText trims text and enforces the comment rules
func ValidateCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", NewValidationError("text", "Comment cannot be empty.")
	}
	if len([]rune(text)) > MaxTextLength {
		return "", NewValidationError("text", "Comment is too long.")
	}
	return text, nil
}
