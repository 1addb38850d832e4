package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avolkov/tidechat/internal/domain"
	"github.com/avolkov/tidechat/internal/storage"
)

const userColumns = `id, username, avatar_url, status, custom_status, is_guest, last_seen, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u        domain.User
		status   string
		lastSeen int64
		created  int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.AvatarURL, &status, &u.CustomStatus, &u.IsGuest, &lastSeen, &created); err != nil {
		return nil, err
	}
	u.Status = domain.PresenceStatus(status)
	u.LastSeen = fromMillis(lastSeen)
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

// CreateUser inserts one user row.
func (s *Store) CreateUser(ctx context.Context, nu storage.NewUser) (*domain.User, error) {
	username := strings.TrimSpace(nu.Username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, avatar_url, status, is_guest, last_seen, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		username, nu.AvatarURL, string(domain.StatusOffline), nu.IsGuest, toMillis(now), toMillis(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create user %q: %w", username, storage.ErrDuplicate)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create user id: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser returns one user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// UpdateUserStatus sets status and last-seen for one user and returns the
// updated row.
func (s *Store) UpdateUserStatus(ctx context.Context, userID int64, status domain.PresenceStatus, lastSeen time.Time) (*domain.User, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET status = ?, last_seen = ? WHERE id = ?`,
		string(status), toMillis(lastSeen), userID)
	if err != nil {
		return nil, fmt.Errorf("update user %d status: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update user %d status: %w", userID, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, storage.ErrNotFound)
	}
	return s.GetUser(ctx, userID)
}
