package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/photodiary/server/internal/models"
)

// FileBlobStore keeps blobs on the local filesystem under basePath. Public
// references are publicBaseURL + "/" + key and are served by the HTTP layer.
type FileBlobStore struct {
	basePath          string
	publicBaseURL     string
	allowedExtensions map[string]bool
	maxFileSizeBytes  int64
}

// NewFileBlobStore creates a new FileBlobStore
func NewFileBlobStore(basePath, publicBaseURL string, allowedExtensions []string, maxFileSizeBytes int64) (*FileBlobStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	// Ensure directory exists
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, err
	}

	extSet := make(map[string]bool)
	if len(allowedExtensions) == 0 {
		allowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".heif"}
	}
	for _, ext := range allowedExtensions {
		extSet["."+strings.TrimPrefix(strings.ToLower(ext), ".")] = true
	}

	if maxFileSizeBytes <= 0 {
		maxFileSizeBytes = models.MaxImageBytes
	}

	return &FileBlobStore{
		basePath:          absPath,
		publicBaseURL:     publicBaseURL,
		allowedExtensions: extSet,
		maxFileSizeBytes:  maxFileSizeBytes,
	}, nil
}

// BasePath returns the absolute storage directory
func (s *FileBlobStore) BasePath() string {
	return s.basePath
}

// Put writes r under key. If a file with that name already exists a unique
// suffix is added; the returned reference names the file actually written.
func (s *FileBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if size > s.maxFileSizeBytes {
		return "", models.ErrFileTooLarge
	}

	dir, name := sanitizeKey(key)
	ext := strings.ToLower(filepath.Ext(name))
	if !s.allowedExtensions[ext] {
		return "", models.ErrInvalidExtension
	}

	folder := filepath.Join(s.basePath, dir)
	if !withinBase(s.basePath, folder) {
		return "", models.ErrPathTraversal
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", err
	}

	uniqueName := generateUniqueFilename(name, folder)
	fullPath := filepath.Join(folder, uniqueName)
	if !withinBase(s.basePath, fullPath) {
		return "", models.ErrPathTraversal
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Read one byte past the limit so an understated size is still caught
	written, err := io.Copy(file, io.LimitReader(r, s.maxFileSizeBytes+1))
	if err == nil && written > s.maxFileSizeBytes {
		err = models.ErrFileTooLarge
	}
	if err != nil {
		file.Close()
		os.Remove(fullPath) // Clean up on error
		return "", err
	}

	storedKey := filepath.ToSlash(filepath.Join(dir, uniqueName))
	return publicRef(s.publicBaseURL, storedKey), nil
}

// Open returns the blob behind ref
func (s *FileBlobStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	fullPath, err := s.GetFullPath(keyFromRef(s.publicBaseURL, ref))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", models.ErrBlobNotFound, ref)
	}
	return f, err
}

// Delete removes the blob behind ref. A missing file is not an error.
func (s *FileBlobStore) Delete(ctx context.Context, ref string) error {
	fullPath, err := s.GetFullPath(keyFromRef(s.publicBaseURL, ref))
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// exists checks if a blob exists for the given reference
func (s *FileBlobStore) exists(ref string) bool {
	fullPath, err := s.GetFullPath(keyFromRef(s.publicBaseURL, ref))
	if err != nil {
		return false
	}

	_, err = os.Stat(fullPath)
	return err == nil
}

// GetFullPath returns the absolute path for a storage key
func (s *FileBlobStore) GetFullPath(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key cannot be empty")
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if err != nil {
		return "", err
	}

	if !withinBase(s.basePath, absPath) {
		return "", models.ErrPathTraversal
	}
	return absPath, nil
}

func withinBase(base, path string) bool {
	return path == base || strings.HasPrefix(path, base+string(os.PathSeparator))
}

// sanitizeKey splits a key into a cleaned directory and file name. Every
// segment is sanitized so the result cannot escape the base directory.
func sanitizeKey(key string) (string, string) {
	segments := strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' })

	var clean []string
	for _, seg := range segments {
		seg = sanitizeFilename(seg)
		if seg == "" || seg == "." {
			continue
		}
		clean = append(clean, seg)
	}

	if len(clean) == 0 {
		return "", "blob"
	}
	return filepath.Join(clean[:len(clean)-1]...), clean[len(clean)-1]
}

// sanitizeFilename removes path components and invalid characters
func sanitizeFilename(filename string) string {
	name := filepath.Base(filename)

	replacer := strings.NewReplacer(
		"..", "",
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = replacer.Replace(name)

	const maxLength = 200
	if len(name) > maxLength {
		ext := filepath.Ext(name)
		nameWithoutExt := strings.TrimSuffix(name, ext)
		if len(nameWithoutExt) > maxLength-len(ext) {
			nameWithoutExt = nameWithoutExt[:maxLength-len(ext)]
		}
		name = nameWithoutExt + ext
	}

	return name
}

// generateUniqueFilename creates a unique filename if collision exists
func generateUniqueFilename(filename, folderPath string) string {
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))
	ext := filepath.Ext(filename)
	candidate := filename
	counter := 1

	for {
		if _, err := os.Stat(filepath.Join(folderPath, candidate)); os.IsNotExist(err) {
			break
		}

		candidate = fmt.Sprintf("%s_%03d%s", nameWithoutExt, counter, ext)
		counter++

		if counter > 9999 {
			candidate = fmt.Sprintf("%s_%d%s", nameWithoutExt, time.Now().UnixNano(), ext)
			break
		}
	}

	return candidate
}
