package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avolkov/tidechat/internal/domain"
	"github.com/avolkov/tidechat/internal/storage"
)

// CreateChannel inserts one channel row and, when a creator is given,
// adds them as channel admin in the same transaction.
func (s *Store) CreateChannel(ctx context.Context, nc storage.NewChannel) (*domain.Channel, error) {
	name := strings.TrimSpace(nc.Name)
	if name == "" {
		return nil, fmt.Errorf("channel name is required")
	}
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO channels (name, description, is_private, created_at) VALUES (?, ?, ?, ?)`,
		name, nc.Description, nc.IsPrivate, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create channel id: %w", err)
	}

	if nc.CreatorID > 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO channel_members (channel_id, user_id, is_admin, created_at) VALUES (?, ?, 1, ?)`,
			id, nc.CreatorID, toMillis(now)); err != nil {
			return nil, fmt.Errorf("add channel creator: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}

	return &domain.Channel{
		ID:          id,
		Name:        name,
		Description: nc.Description,
		IsPrivate:   nc.IsPrivate,
		CreatedAt:   now.UTC().Truncate(time.Millisecond),
	}, nil
}

// ListChannels returns all public channels, oldest first.
func (s *Store) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, is_private, created_at
		 FROM channels WHERE is_private = 0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []domain.Channel
	for rows.Next() {
		var (
			c       domain.Channel
			created int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.IsPrivate, &created); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		c.CreatedAt = fromMillis(created)
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}
