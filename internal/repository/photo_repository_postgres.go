package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/observability"
)

// PhotoRepositoryPostgres handles photo and comment persistence for PostgreSQL
type PhotoRepositoryPostgres struct {
	db    *sql.DB
	clock Clock
}

// NewPhotoRepositoryPostgres creates a new PhotoRepositoryPostgres
func NewPhotoRepositoryPostgres(db *sql.DB, clock Clock) *PhotoRepositoryPostgres {
	if clock == nil {
		clock = NewClock(nil)
	}
	return &PhotoRepositoryPostgres{db: db, clock: clock}
}

const postgresPhotoColumns = `id, image_url, description, tags, is_favorite, comment_count, created_at`

func scanPostgresPhoto(row rowScanner) (models.Photo, error) {
	var (
		photo    models.Photo
		tags     []string
		favorite sql.NullBool
		count    sql.NullInt64
	)
	if err := row.Scan(
		&photo.ID,
		&photo.ImageURL,
		&photo.Description,
		pq.Array(&tags),
		&favorite,
		&count,
		&photo.CreatedAt,
	); err != nil {
		return models.Photo{}, err
	}

	if tags == nil {
		tags = []string{}
	}
	photo.Tags = tags
	photo.IsFavorite = favorite.Valid && favorite.Bool
	photo.CommentCount = int(count.Int64)
	photo.CreatedAt = photo.CreatedAt.UTC()
	return photo, nil
}

// List returns all photos, newest first, ties broken by insertion order
func (r *PhotoRepositoryPostgres) List(ctx context.Context) ([]models.Photo, error) {
	query := `SELECT ` + postgresPhotoColumns + ` FROM photos ORDER BY created_at DESC, seq DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos := []models.Photo{}
	for rows.Next() {
		photo, err := scanPostgresPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

// GetByID retrieves a photo by its ID
func (r *PhotoRepositoryPostgres) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT ` + postgresPhotoColumns + ` FROM photos WHERE id = $1`

	photo, err := scanPostgresPhoto(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

// Add inserts a new photo, assigning its ID and creation time
func (r *PhotoRepositoryPostgres) Add(ctx context.Context, photo *models.Photo) error {
	if photo.Tags == nil {
		photo.Tags = []string{}
	}

	id := uuid.NewString()
	createdAt := r.clock.Now()

	query := `
		INSERT INTO photos (id, image_url, description, tags, is_favorite, comment_count, created_at)
		VALUES ($1, $2, $3, $4, FALSE, 0, $5)
	`
	if _, err := r.db.ExecContext(ctx, query,
		id,
		photo.ImageURL,
		photo.Description,
		pq.Array(photo.Tags),
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
func (r *PhotoRepositoryPostgres) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM photos WHERE id = $1", id)
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
func (r *PhotoRepositoryPostgres) SetFavorite(ctx context.Context, id string, value bool) (bool, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE photos SET is_favorite = $1 WHERE id = $2", value, id)
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
func (r *PhotoRepositoryPostgres) ListComments(ctx context.Context, photoID string) ([]models.Comment, error) {
	query := `
		SELECT id, photo_id, text, username, is_user_comment, created_at
		FROM comments
		WHERE photo_id = $1
		ORDER BY created_at ASC, seq ASC
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
// serializable transaction, retried on serialization failures.
func (r *PhotoRepositoryPostgres) AddComment(ctx context.Context, comment *models.Comment) (err error) {
	ctx, span := observability.StartDBSpan(ctx, "postgresql", "INSERT", "comments")
	defer func() { observability.EndSpan(span, err) }()

	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	err = withTxRetry(ctx, r.db, opts, isPostgresConflict, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx, "SELECT comment_count FROM photos WHERE id = $1", comment.PhotoID).Scan(&count)
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
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, comment.PhotoID, comment.Text, comment.Username, comment.IsUserComment, createdAt); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "UPDATE photos SET comment_count = $1 WHERE id = $2", count+1, comment.PhotoID); err != nil {
			return err
		}

		comment.ID = id
		comment.CreatedAt = createdAt
		comment.ParentCount = count + 1
		return nil
	})
	return err
}
