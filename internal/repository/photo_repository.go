package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/observability"
)

// PhotoRepository handles photo and comment persistence for SQLite
type PhotoRepository struct {
	db    *sql.DB
	clock Clock
}

// NewPhotoRepository creates a new PhotoRepository. A nil clock uses the system time.
func NewPhotoRepository(db *sql.DB, clock Clock) *PhotoRepository {
	if clock == nil {
		clock = NewClock(nil)
	}
	return &PhotoRepository{db: db, clock: clock}
}

const sqlitePhotoColumns = `id, image_url, description, tags, is_favorite, comment_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePhoto(row rowScanner) (models.Photo, error) {
	var (
		photo    models.Photo
		tagsJSON sql.NullString
		favorite sql.NullBool
		count    sql.NullInt64
	)
	if err := row.Scan(
		&photo.ID,
		&photo.ImageURL,
		&photo.Description,
		&tagsJSON,
		&favorite,
		&count,
		&photo.CreatedAt,
	); err != nil {
		return models.Photo{}, err
	}

	photo.Tags = []string{}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &photo.Tags); err != nil {
			return models.Photo{}, fmt.Errorf("decoding tags of photo %s: %w", photo.ID, err)
		}
		if photo.Tags == nil {
			photo.Tags = []string{}
		}
	}
	photo.IsFavorite = favorite.Valid && favorite.Bool
	photo.CommentCount = int(count.Int64)
	photo.CreatedAt = photo.CreatedAt.UTC()
	return photo, nil
}

// List returns all photos, newest first. Photos created in the same instant
// come back newest insertion first.
func (r *PhotoRepository) List(ctx context.Context) ([]models.Photo, error) {
	query := `SELECT ` + sqlitePhotoColumns + ` FROM photos ORDER BY created_at DESC, rowid DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []models.Photo{}
	for rows.Next() {
		photo, err := scanSQLitePhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

// GetByID retrieves a photo by its ID
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT ` + sqlitePhotoColumns + ` FROM photos WHERE id = ?`

	photo, err := scanSQLitePhoto(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

// Add inserts a new photo, assigning its ID and creation time
func (r *PhotoRepository) Add(ctx context.Context, photo *models.Photo) error {
	if photo.Tags == nil {
		photo.Tags = []string{}
	}
	tagsJSON, err := json.Marshal(photo.Tags)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	createdAt := r.clock.Now()

	query := `
		INSERT INTO photos (id, image_url, description, tags, is_favorite, comment_count, created_at)
		VALUES (?, ?, ?, ?, 0, 0, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		id,
		photo.ImageURL,
		photo.Description,
		string(tagsJSON),
		createdAt,
	); err != nil {
		return err
	}

	photo.ID = id
	photo.CreatedAt = createdAt
	photo.IsFavorite = false
	photo.CommentCount = 0
	return nil
}

// Delete removes a photo by ID. Its comments go with it.
func (r *PhotoRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SetFavorite updates the favorite flag only
func (r *PhotoRepository) SetFavorite(ctx context.Context, id string, value bool) (bool, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE photos SET is_favorite = ? WHERE id = ?", value, id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListComments returns a photo's comments oldest first
func (r *PhotoRepository) ListComments(ctx context.Context, photoID string) ([]models.Comment, error) {
	query := `
		SELECT id, photo_id, text, username, is_user_comment, created_at
		FROM comments
		WHERE photo_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := r.db.QueryContext(ctx, query, photoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PhotoID, &c.Text, &c.Username, &c.IsUserComment, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// AddComment inserts the comment and bumps the parent's comment count in one
// transaction. Returns models.ErrParentNotFound, with nothing written, when
// the photo is gone.
func (r *PhotoRepository) AddComment(ctx context.Context, comment *models.Comment) (err error) {
	ctx, span := observability.StartDBSpan(ctx, "sqlite", "INSERT", "comments")
	defer func() { observability.EndSpan(span, err) }()

	err = withTxRetry(ctx, r.db, nil, isSQLiteConflict, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx, "SELECT comment_count FROM photos WHERE id = ?", comment.PhotoID).Scan(&count)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrParentNotFound
		}
		if err != nil {
			return err
		}

		id := uuid.NewString()
		createdAt := r.clock.Now()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO comments (id, photo_id, text, username, is_user_comment, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, comment.PhotoID, comment.Text, comment.Username, comment.IsUserComment, createdAt); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "UPDATE photos SET comment_count = ? WHERE id = ?", count+1, comment.PhotoID); err != nil {
			return err
		}

		comment.ID = id
		comment.CreatedAt = createdAt
		comment.ParentCount = count + 1
		return nil
	})
	return err
}
