// ===============================
// FILE: internal/repositories/engagement_repository.go
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

// engagementRepository implements EngagementRepository. Every aggregate
// counter move is conditioned on a relation-row change inside a
// serializable transaction, so concurrent viewers can never lose an update
// and a retried request can never double-count.
type engagementRepository struct {
	*BaseRepository
}

// NewEngagementRepository creates the counter engine's storage layer.
func NewEngagementRepository(db *database.Manager, logger *zap.Logger, txMaxRetries int, txRetryBackoff time.Duration) EngagementRepository {
	return &engagementRepository{
		BaseRepository: NewBaseRepository(db, logger, txMaxRetries, txRetryBackoff),
	}
}

const postCountersQuery = `
	SELECT likes_count, plays_count, comments_count, counters_version
	FROM posts WHERE id = $1`

// SetPostLike toggles the (post, viewer) like relation to the intended
// state. The aggregate moves only when the relation row actually changed,
// which makes the toggle idempotent per (postID, viewerID, liked).
func (r *engagementRepository) SetPostLike(ctx context.Context, postID int64, viewerID string, liked bool) (*LikeResult, error) {
	var result LikeResult

	err := r.WithContendedTransaction(ctx, func(tx *sql.Tx) error {
		changed, err := r.togglePostLikeRow(ctx, tx, postID, viewerID, liked)
		if err != nil {
			return err
		}

		counters := &models.PostCounters{PostID: postID}
		if changed {
			delta := "likes_count + 1"
			if !liked {
				// Clamp so reordered toggles can never drive the
				// aggregate negative.
				delta = "GREATEST(likes_count - 1, 0)"
			}
			err = tx.QueryRowContext(ctx, fmt.Sprintf(`
				UPDATE posts
				SET likes_count = %s, counters_version = counters_version + 1
				WHERE id = $1
				RETURNING likes_count, plays_count, comments_count, counters_version`, delta), postID,
			).Scan(&counters.Likes, &counters.Plays, &counters.Comments, &counters.Version)
		} else {
			err = tx.QueryRowContext(ctx, postCountersQuery, postID).
				Scan(&counters.Likes, &counters.Plays, &counters.Comments, &counters.Version)
		}
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to update like aggregate: %w", err)
		}

		result = LikeResult{
			Changed:  changed,
			Liked:    liked,
			Likes:    counters.Likes,
			Counters: counters,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.GetLogger().Debug("Post like toggled",
		zap.Int64("post_id", postID),
		zap.String("viewer_id", viewerID),
		zap.Bool("liked", liked),
		zap.Bool("changed", result.Changed),
		zap.Int("likes", result.Likes),
	)
	return &result, nil
}

func (r *engagementRepository) togglePostLikeRow(ctx context.Context, tx *sql.Tx, postID int64, viewerID string, liked bool) (bool, error) {
	var res sql.Result
	var err error
	if liked {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO post_likes (post_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (post_id, user_id) DO NOTHING`, postID, viewerID)
	} else {
		res, err = tx.ExecContext(ctx, `
			DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, viewerID)
	}
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to toggle like relation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

// SetCommentLike is the comment-side twin of SetPostLike, over the
// comment_likes relation and comments.likes_count aggregate.
func (r *engagementRepository) SetCommentLike(ctx context.Context, commentID int64, viewerID string, liked bool) (*LikeResult, error) {
	var result LikeResult

	err := r.WithContendedTransaction(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		if liked {
			res, err = tx.ExecContext(ctx, `
				INSERT INTO comment_likes (comment_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT (comment_id, user_id) DO NOTHING`, commentID, viewerID)
		} else {
			res, err = tx.ExecContext(ctx, `
				DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`, commentID, viewerID)
		}
		if err != nil {
			if IsForeignKeyViolation(err) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to toggle comment like relation: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		changed := affected == 1

		var likes int
		if changed {
			delta := "likes_count + 1"
			if !liked {
				delta = "GREATEST(likes_count - 1, 0)"
			}
			err = tx.QueryRowContext(ctx, fmt.Sprintf(`
				UPDATE comments SET likes_count = %s WHERE id = $1
				RETURNING likes_count`, delta), commentID).Scan(&likes)
		} else {
			err = tx.QueryRowContext(ctx,
				`SELECT likes_count FROM comments WHERE id = $1`, commentID).Scan(&likes)
		}
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to update comment like aggregate: %w", err)
		}

		result = LikeResult{Changed: changed, Liked: liked, Likes: likes}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// IncrementPlays bumps the play counter in a single atomic statement.
// At-least-once: a retried request counts again, which the contract
// tolerates for plays (and only plays).
func (r *engagementRepository) IncrementPlays(ctx context.Context, postID int64) (*models.PostCounters, error) {
	counters := &models.PostCounters{PostID: postID}

	err := r.QueryRowContext(ctx, `
		UPDATE posts
		SET plays_count = plays_count + 1, counters_version = counters_version + 1
		WHERE id = $1
		RETURNING likes_count, plays_count, comments_count, counters_version`, postID,
	).Scan(&counters.Likes, &counters.Plays, &counters.Comments, &counters.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to increment plays for post %d: %w", postID, err)
	}

	return counters, nil
}

// IncrementCommentsTx bumps the comment counter inside the caller's
// transaction. The comment repository calls this next to its insert so the
// comment and its counter commit or roll back together.
func (r *engagementRepository) IncrementCommentsTx(ctx context.Context, tx *sql.Tx, postID int64) (*models.PostCounters, error) {
	counters := &models.PostCounters{PostID: postID}

	err := tx.QueryRowContext(ctx, `
		UPDATE posts
		SET comments_count = comments_count + 1, counters_version = counters_version + 1
		WHERE id = $1
		RETURNING likes_count, plays_count, comments_count, counters_version`, postID,
	).Scan(&counters.Likes, &counters.Plays, &counters.Comments, &counters.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to increment comments for post %d: %w", postID, err)
	}

	return counters, nil
}
