package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/tidechat/internal/domain"
	"github.com/avolkov/tidechat/internal/storage"
)

func scanReaction(row interface{ Scan(...any) error }) (*domain.Reaction, error) {
	var (
		r         domain.Reaction
		created   int64
		userID    sql.NullInt64
		username  sql.NullString
		avatarURL sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Emoji, &r.MessageID, &r.UserID, &created, &userID, &username, &avatarURL); err != nil {
		return nil, err
	}
	r.CreatedAt = fromMillis(created)
	if userID.Valid {
		r.User = &domain.UserRef{ID: userID.Int64, Username: username.String, AvatarURL: avatarURL.String}
	}
	return &r, nil
}

// InsertReaction persists one reaction and returns it enriched with the
// reacting user. The target message must exist; with the unique
// reactions option enabled a repeated (message, user, emoji) insert
// fails with storage.ErrDuplicate.
func (s *Store) InsertReaction(ctx context.Context, nr storage.NewReaction) (*domain.Reaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("insert reaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM messages WHERE id = ?`, nr.MessageID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("insert reaction: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("message %d: %w", nr.MessageID, storage.ErrNotFound)
	}

	if s.opts.UniqueReactions {
		var dup int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ?`,
			nr.MessageID, nr.UserID, nr.Emoji).Scan(&dup)
		if err != nil {
			return nil, fmt.Errorf("insert reaction: %w", err)
		}
		if dup > 0 {
			return nil, fmt.Errorf("reaction %q on message %d by user %d: %w",
				nr.Emoji, nr.MessageID, nr.UserID, storage.ErrDuplicate)
		}
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO reactions (emoji, message_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		nr.Emoji, nr.MessageID, nr.UserID, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("insert reaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert reaction id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("insert reaction: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT r.id, r.emoji, r.message_id, r.user_id, r.created_at, u.id, u.username, u.avatar_url
		 FROM reactions r
		 LEFT JOIN users u ON u.id = r.user_id
		 WHERE r.id = ?`, id)
	r, err := scanReaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reaction %d: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("get reaction %d: %w", id, err)
	}
	return r, nil
}
