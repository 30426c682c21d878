// ===============================
// FILE: internal/repositories/post_repository.go
// ===============================

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wavehub/internal/database"
	"wavehub/internal/models"

	"go.uber.org/zap"
)

// postRepository implements PostRepository over Postgres with keyset
// pagination.
type postRepository struct {
	*BaseRepository
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db *database.Manager, logger *zap.Logger, txMaxRetries int, txRetryBackoff time.Duration) PostRepository {
	return &postRepository{
		BaseRepository: NewBaseRepository(db, logger, txMaxRetries, txRetryBackoff),
	}
}

// postColumns is the shared projection for post reads. The viewer-relative
// is_liked flag comes from the post_likes relation, never from a stored
// boolean.
const postColumns = `
	p.id, p.title, p.description, p.audio_url, p.audio_public_id, p.duration,
	p.author_id, p.author_name, p.author_username, p.author_profile_image_url,
	p.likes_count, p.plays_count, p.comments_count, p.tags, p.created_at,
	(pl.user_id IS NOT NULL) AS is_liked`

const postJoins = `
	FROM posts p
	LEFT JOIN post_likes pl ON pl.post_id = p.id AND pl.user_id = $1`

// Create inserts a post with zeroed counters and fills in the assigned ID
// and creation time.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (
			title, description, audio_url, audio_public_id, duration,
			author_id, author_name, author_username, author_profile_image_url, tags
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := r.QueryRowContext(
		ctx, query,
		post.Title, post.Description, post.AudioURL, post.AudioPublicID,
		post.Duration, post.AuthorID, post.AuthorName, post.AuthorUsername,
		post.AuthorProfileImageURL, post.Tags,
	).Scan(&post.ID, &post.CreatedAt)

	if err != nil {
		r.GetLogger().Error("Failed to create post",
			zap.Error(err),
			zap.String("author_id", post.AuthorID),
			zap.String("title", post.Title),
		)
		return fmt.Errorf("failed to create post: %w", err)
	}

	post.Likes = 0
	post.Plays = 0
	post.Comments = 0

	r.GetLogger().Info("Post created",
		zap.Int64("post_id", post.ID),
		zap.String("author_id", post.AuthorID),
	)

	return nil
}

// GetByID retrieves a post by ID, or nil when absent.
func (r *postRepository) GetByID(ctx context.Context, id int64, viewerID string) (*models.Post, error) {
	query := `SELECT` + postColumns + postJoins + ` WHERE p.id = $2`

	post, err := r.scanPost(r.QueryRowContext(ctx, query, nullString(viewerID), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}
	return post, nil
}

// ListRecent pages posts by creation time descending. The cursor encodes
// the last-seen (created_at, id) sort key, so a post created after the
// cursor was issued can never push rows into the next page.
func (r *postRepository) ListRecent(ctx context.Context, params models.PaginationParams, viewerID string) (*models.PaginatedResponse[*models.Post], error) {
	args := []interface{}{nullString(viewerID)}
	query := `SELECT` + postColumns + postJoins

	if params.Cursor != "" {
		cursor, err := decodeCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		query += ` WHERE (p.created_at, p.id) < ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += fmt.Sprintf(` ORDER BY p.created_at DESC, p.id DESC LIMIT $%d`, len(args)+1)
	args = append(args, params.Limit+1)

	posts, err := r.queryPosts(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent posts: %w", err)
	}

	return paginatePosts(posts, params.Limit), nil
}

// ListTrending returns posts by likes descending, ties broken by creation
// time descending so the order is reproducible.
func (r *postRepository) ListTrending(ctx context.Context, limit int, viewerID string) ([]*models.Post, error) {
	query := `SELECT` + postColumns + postJoins + `
	ORDER BY p.likes_count DESC, p.created_at DESC, p.id DESC
	LIMIT $2`

	posts, err := r.queryPosts(ctx, query, nullString(viewerID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trending posts: %w", err)
	}
	return posts, nil
}

// ListByAuthor pages one author's posts with the ListRecent contract.
func (r *postRepository) ListByAuthor(ctx context.Context, authorID string, params models.PaginationParams, viewerID string) (*models.PaginatedResponse[*models.Post], error) {
	args := []interface{}{nullString(viewerID), authorID}
	query := `SELECT` + postColumns + postJoins + ` WHERE p.author_id = $2`

	if params.Cursor != "" {
		cursor, err := decodeCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		query += ` AND (p.created_at, p.id) < ($3, $4)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += fmt.Sprintf(` ORDER BY p.created_at DESC, p.id DESC LIMIT $%d`, len(args)+1)
	args = append(args, params.Limit+1)

	posts, err := r.queryPosts(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts by author %s: %w", authorID, err)
	}

	return paginatePosts(posts, params.Limit), nil
}

// ===============================
// SCAN HELPERS
// ===============================

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *postRepository) scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID, &post.Title, &post.Description, &post.AudioURL,
		&post.AudioPublicID, &post.Duration,
		&post.AuthorID, &post.AuthorName, &post.AuthorUsername,
		&post.AuthorProfileImageURL,
		&post.Likes, &post.Plays, &post.Comments, &post.Tags, &post.CreatedAt,
		&post.IsLiked,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) queryPosts(ctx context.Context, query string, args ...interface{}) ([]*models.Post, error) {
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := r.scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// paginatePosts trims the limit+1 overfetch into a page and next cursor.
func paginatePosts(posts []*models.Post, limit int) *models.PaginatedResponse[*models.Post] {
	hasNext := len(posts) > limit
	if hasNext {
		posts = posts[:limit]
	}

	meta := models.PaginationMeta{
		ItemsPerPage: limit,
		HasNext:      hasNext,
	}
	if hasNext && len(posts) > 0 {
		last := posts[len(posts)-1]
		meta.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}

	if posts == nil {
		posts = []*models.Post{}
	}
	return &models.PaginatedResponse[*models.Post]{
		Data:       posts,
		Pagination: meta,
	}
}

// nullString maps an empty viewer ID to SQL NULL so the is_liked join
// never matches for anonymous reads.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
