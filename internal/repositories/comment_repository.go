// ===============================
// FILE: internal/repositories/comment_repository.go
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

// commentRepository implements CommentRepository. Comment inserts and the
// parent post's comment aggregate commit in one transaction through the
// engagement repository.
type commentRepository struct {
	*BaseRepository
	engagement EngagementRepository
}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(db *database.Manager, engagement EngagementRepository, logger *zap.Logger, txMaxRetries int, txRetryBackoff time.Duration) CommentRepository {
	return &commentRepository{
		BaseRepository: NewBaseRepository(db, logger, txMaxRetries, txRetryBackoff),
		engagement:     engagement,
	}
}

const commentColumns = `
	c.id, c.post_id, c.text,
	c.author_id, c.author_name, c.author_username, c.author_profile_image_url,
	c.likes_count, c.created_at,
	(cl.user_id IS NOT NULL) AS is_liked`

const commentJoins = `
	FROM comments c
	LEFT JOIN comment_likes cl ON cl.comment_id = c.id AND cl.user_id = $1`

// Create inserts the comment and bumps the parent's comment counter in the
// same transaction, exactly once per comment.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) (*models.PostCounters, error) {
	var counters *models.PostCounters

	err := r.WithContendedTransaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO comments (
				post_id, text, author_id, author_name, author_username,
				author_profile_image_url
			) VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			comment.PostID, comment.Text, comment.AuthorID, comment.AuthorName,
			comment.AuthorUsername, comment.AuthorProfileImageURL,
		).Scan(&comment.ID, &comment.CreatedAt)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to insert comment: %w", err)
		}

		counters, err = r.engagement.IncrementCommentsTx(ctx, tx, comment.PostID)
		return err
	})
	if err != nil {
		return nil, err
	}

	comment.Likes = 0

	r.GetLogger().Info("Comment created",
		zap.Int64("comment_id", comment.ID),
		zap.Int64("post_id", comment.PostID),
		zap.String("author_id", comment.AuthorID),
		zap.Int("post_comments", counters.Comments),
	)

	return counters, nil
}

// GetByID retrieves a comment by ID, or nil when absent.
func (r *commentRepository) GetByID(ctx context.Context, id int64, viewerID string) (*models.Comment, error) {
	query := `SELECT` + commentColumns + commentJoins + ` WHERE c.id = $2`

	comment, err := scanComment(r.QueryRowContext(ctx, query, nullString(viewerID), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get comment %d: %w", id, err)
	}
	return comment, nil
}

// ListByPost pages a post's comments chronologically in either direction.
func (r *commentRepository) ListByPost(ctx context.Context, postID int64, params models.PaginationParams, descending bool, viewerID string) (*models.PaginatedResponse[*models.Comment], error) {
	args := []interface{}{nullString(viewerID), postID}
	query := `SELECT` + commentColumns + commentJoins + ` WHERE c.post_id = $2`

	comparison, order := ">", "ASC"
	if descending {
		comparison, order = "<", "DESC"
	}

	if params.Cursor != "" {
		cursor, err := decodeCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(` AND (c.created_at, c.id) %s ($3, $4)`, comparison)
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += fmt.Sprintf(` ORDER BY c.created_at %s, c.id %s LIMIT $%d`, order, order, len(args)+1)
	args = append(args, params.Limit+1)

	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for post %d: %w", postID, err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasNext := len(comments) > params.Limit
	if hasNext {
		comments = comments[:params.Limit]
	}

	meta := models.PaginationMeta{
		ItemsPerPage: params.Limit,
		HasNext:      hasNext,
	}
	if hasNext && len(comments) > 0 {
		last := comments[len(comments)-1]
		meta.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}

	if comments == nil {
		comments = []*models.Comment{}
	}
	return &models.PaginatedResponse[*models.Comment]{
		Data:       comments,
		Pagination: meta,
	}, nil
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var comment models.Comment
	err := row.Scan(
		&comment.ID, &comment.PostID, &comment.Text,
		&comment.AuthorID, &comment.AuthorName, &comment.AuthorUsername,
		&comment.AuthorProfileImageURL,
		&comment.Likes, &comment.CreatedAt,
		&comment.IsLiked,
	)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}
