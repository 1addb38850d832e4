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

// InsertMessage persists one message row, writing the attachment row in
// the same transaction when present.
func (s *Store) InsertMessage(ctx context.Context, nm storage.NewMessage) (*domain.Message, error) {
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (content, channel_id, user_id, parent_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nm.Content, nm.ChannelID, nm.UserID, nm.ParentID, toMillis(now), toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert message id: %w", err)
	}

	if nm.Attachment != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO file_attachments (file_name, file_url, file_type, message_id, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			nm.Attachment.FileName, nm.Attachment.FileURL, nm.Attachment.FileType, id, toMillis(now)); err != nil {
			return nil, fmt.Errorf("insert attachment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return &domain.Message{
		ID:        id,
		Content:   nm.Content,
		ChannelID: nm.ChannelID,
		UserID:    nm.UserID,
		ParentID:  nm.ParentID,
		CreatedAt: now.UTC().Truncate(time.Millisecond),
		UpdatedAt: now.UTC().Truncate(time.Millisecond),
	}, nil
}

const messageSelect = `
SELECT m.id, m.content, m.channel_id, m.user_id, m.parent_id, m.created_at, m.updated_at,
       u.id, u.username, u.avatar_url,
       a.id, a.file_name, a.file_url, a.file_type, a.created_at
FROM messages m
LEFT JOIN users u ON u.id = m.user_id
LEFT JOIN file_attachments a ON a.message_id = m.id`

func scanMessage(row interface{ Scan(...any) error }) (*domain.Message, error) {
	var (
		m              domain.Message
		parentID       sql.NullInt64
		created        int64
		updated        int64
		userID         sql.NullInt64
		username       sql.NullString
		avatarURL      sql.NullString
		attachID       sql.NullInt64
		attachName     sql.NullString
		attachURL      sql.NullString
		attachType     sql.NullString
		attachCreated  sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.Content, &m.ChannelID, &m.UserID, &parentID, &created, &updated,
		&userID, &username, &avatarURL,
		&attachID, &attachName, &attachURL, &attachType, &attachCreated)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		m.ParentID = &parentID.Int64
	}
	m.CreatedAt = fromMillis(created)
	m.UpdatedAt = fromMillis(updated)
	if userID.Valid {
		m.User = &domain.UserRef{ID: userID.Int64, Username: username.String, AvatarURL: avatarURL.String}
	}
	if attachID.Valid {
		m.Attachment = &domain.FileAttachment{
			ID:        attachID.Int64,
			FileName:  attachName.String,
			FileURL:   attachURL.String,
			FileType:  attachType.String,
			MessageID: m.ID,
			CreatedAt: fromMillis(attachCreated.Int64),
		}
	}
	return &m, nil
}

// GetMessage returns one message enriched with author identity, the
// linked attachment and its reactions.
func (s *Store) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx, messageSelect+` WHERE m.id = ?`, id)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}

	reactions, err := s.messageReactions(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Reactions = reactions
	return m, nil
}

// ListChannelMessages returns the latest top-level and reply messages in
// a channel, newest first, enriched with author identity.
func (s *Store) ListChannelMessages(ctx context.Context, channelID int64, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		messageSelect+` WHERE m.channel_id = ? ORDER BY m.created_at DESC LIMIT ?`,
		channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("list channel %d messages: %w", channelID, err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list channel %d messages: %w", channelID, err)
	}
	return out, nil
}

func (s *Store) messageReactions(ctx context.Context, messageID int64) ([]domain.Reaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.emoji, r.message_id, r.user_id, r.created_at, u.id, u.username, u.avatar_url
		 FROM reactions r
		 LEFT JOIN users u ON u.id = r.user_id
		 WHERE r.message_id = ? ORDER BY r.created_at ASC`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list message %d reactions: %w", messageID, err)
	}
	defer rows.Close()

	var out []domain.Reaction
	for rows.Next() {
		r, err := scanReaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list message %d reactions: %w", messageID, err)
	}
	return out, nil
}
