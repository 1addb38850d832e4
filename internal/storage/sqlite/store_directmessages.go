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

// InsertDirectMessage persists one direct message and returns it
// enriched with sender and receiver identities. Both parties must
// exist; an unknown receiver fails with storage.ErrNotFound.
func (s *Store) InsertDirectMessage(ctx context.Context, ndm storage.NewDirectMessage) (*domain.DirectMessage, error) {
	var known int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE id IN (?, ?)`,
		ndm.SenderID, ndm.ReceiverID).Scan(&known); err != nil {
		return nil, fmt.Errorf("insert direct message: %w", err)
	}
	want := 2
	if ndm.SenderID == ndm.ReceiverID {
		want = 1
	}
	if known < want {
		return nil, fmt.Errorf("direct message participants %d, %d: %w",
			ndm.SenderID, ndm.ReceiverID, storage.ErrNotFound)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO direct_messages (content, sender_id, receiver_id, created_at) VALUES (?, ?, ?, ?)`,
		ndm.Content, ndm.SenderID, ndm.ReceiverID, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("insert direct message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert direct message id: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT dm.id, dm.content, dm.sender_id, dm.receiver_id, dm.created_at,
		        s.id, s.username, s.avatar_url,
		        r.id, r.username, r.avatar_url
		 FROM direct_messages dm
		 LEFT JOIN users s ON s.id = dm.sender_id
		 LEFT JOIN users r ON r.id = dm.receiver_id
		 WHERE dm.id = ?`, id)

	var (
		dm             domain.DirectMessage
		created        int64
		senderID       sql.NullInt64
		senderName     sql.NullString
		senderAvatar   sql.NullString
		receiverID     sql.NullInt64
		receiverName   sql.NullString
		receiverAvatar sql.NullString
	)
	err = row.Scan(&dm.ID, &dm.Content, &dm.SenderID, &dm.ReceiverID, &created,
		&senderID, &senderName, &senderAvatar,
		&receiverID, &receiverName, &receiverAvatar)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("direct message %d: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("get direct message %d: %w", id, err)
	}
	dm.CreatedAt = fromMillis(created)
	if senderID.Valid {
		dm.Sender = &domain.UserRef{ID: senderID.Int64, Username: senderName.String, AvatarURL: senderAvatar.String}
	}
	if receiverID.Valid {
		dm.Receiver = &domain.UserRef{ID: receiverID.Int64, Username: receiverName.String, AvatarURL: receiverAvatar.String}
	}
	return &dm, nil
}
