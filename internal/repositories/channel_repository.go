// ===============================
// FILE: internal/repositories/channel_repository.go
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

// channelRepository implements ChannelRepository. Channels are a
// read-mostly catalog seeded at migration time; the only writes are the
// subscription and post-link relations.
type channelRepository struct {
	*BaseRepository
}

// NewChannelRepository creates a new channel repository.
func NewChannelRepository(db *database.Manager, logger *zap.Logger, txMaxRetries int, txRetryBackoff time.Duration) ChannelRepository {
	return &channelRepository{
		BaseRepository: NewBaseRepository(db, logger, txMaxRetries, txRetryBackoff),
	}
}

// List returns the catalog with per-channel aggregate counts and the
// viewer's subscription state.
func (r *channelRepository) List(ctx context.Context, viewerID string) ([]*models.Channel, error) {
	query := `
		SELECT
			ch.id, ch.name, ch.description, ch.icon_name, ch.is_nsfw, ch.created_at,
			COALESCE(cp.posts_count, 0) AS posts_count,
			COALESCE(cs.subscribers_count, 0) AS subscribers_count,
			(vs.user_id IS NOT NULL) AS is_subscribed
		FROM channels ch
		LEFT JOIN (
			SELECT channel_id, COUNT(*) AS posts_count
			FROM channel_posts GROUP BY channel_id
		) cp ON cp.channel_id = ch.id
		LEFT JOIN (
			SELECT channel_id, COUNT(*) AS subscribers_count
			FROM channel_subscribers GROUP BY channel_id
		) cs ON cs.channel_id = ch.id
		LEFT JOIN channel_subscribers vs ON vs.channel_id = ch.id AND vs.user_id = $1
		ORDER BY ch.name ASC`

	rows, err := r.QueryContext(ctx, query, nullString(viewerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.Channel
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(
			&ch.ID, &ch.Name, &ch.Description, &ch.IconName, &ch.IsNSFW, &ch.CreatedAt,
			&ch.PostsCount, &ch.SubscribersCount, &ch.IsSubscribed,
		); err != nil {
			return nil, err
		}
		channels = append(channels, &ch)
	}
	if channels == nil {
		channels = []*models.Channel{}
	}
	return channels, rows.Err()
}

// GetByID returns one channel with its post references, or nil when absent.
func (r *channelRepository) GetByID(ctx context.Context, id int64, viewerID string) (*models.Channel, error) {
	query := `
		SELECT
			ch.id, ch.name, ch.description, ch.icon_name, ch.is_nsfw, ch.created_at,
			COALESCE(cp.posts_count, 0) AS posts_count,
			COALESCE(cs.subscribers_count, 0) AS subscribers_count,
			(vs.user_id IS NOT NULL) AS is_subscribed
		FROM channels ch
		LEFT JOIN (
			SELECT channel_id, COUNT(*) AS posts_count
			FROM channel_posts GROUP BY channel_id
		) cp ON cp.channel_id = ch.id
		LEFT JOIN (
			SELECT channel_id, COUNT(*) AS subscribers_count
			FROM channel_subscribers GROUP BY channel_id
		) cs ON cs.channel_id = ch.id
		LEFT JOIN channel_subscribers vs ON vs.channel_id = ch.id AND vs.user_id = $1
		WHERE ch.id = $2`

	var ch models.Channel
	err := r.QueryRowContext(ctx, query, nullString(viewerID), id).Scan(
		&ch.ID, &ch.Name, &ch.Description, &ch.IconName, &ch.IsNSFW, &ch.CreatedAt,
		&ch.PostsCount, &ch.SubscribersCount, &ch.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel %d: %w", id, err)
	}

	rows, err := r.QueryContext(ctx, `
		SELECT post_id FROM channel_posts WHERE channel_id = $1 ORDER BY post_id DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list channel posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID int64
		if err := rows.Scan(&postID); err != nil {
			return nil, err
		}
		ch.PostIDs = append(ch.PostIDs, postID)
	}
	return &ch, rows.Err()
}

// SetSubscription toggles the (channel, user) subscription relation.
// Idempotent: re-subscribing or re-unsubscribing is a no-op.
func (r *channelRepository) SetSubscription(ctx context.Context, channelID int64, userID string, subscribed bool) (bool, error) {
	var res interface{ RowsAffected() (int64, error) }
	var err error
	if subscribed {
		res, err = r.ExecContext(ctx, `
			INSERT INTO channel_subscribers (channel_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (channel_id, user_id) DO NOTHING`, channelID, userID)
	} else {
		res, err = r.ExecContext(ctx, `
			DELETE FROM channel_subscribers WHERE channel_id = $1 AND user_id = $2`,
			channelID, userID)
	}
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("failed to set channel subscription: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// AttachPost links a post into a channel; duplicate links are no-ops.
func (r *channelRepository) AttachPost(ctx context.Context, channelID, postID int64) error {
	_, err := r.ExecContext(ctx, `
		INSERT INTO channel_posts (channel_id, post_id)
		VALUES ($1, $2)
		ON CONFLICT (channel_id, post_id) DO NOTHING`, channelID, postID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to attach post %d to channel %d: %w", postID, channelID, err)
	}

	r.GetLogger().Debug("Post attached to channel",
		zap.Int64("channel_id", channelID),
		zap.Int64("post_id", postID),
	)
	return nil
}
