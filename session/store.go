// Package session persists login sessions and keeps their activity fields
// fresh. A session row is the only proof that a token is still honoured.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/neighborly/apperr"
	"github.com/kasuganosora/neighborly/model"
	"gorm.io/gorm"
)

// ErrNotFound is returned by FindByToken when no session row matches.
var ErrNotFound = errors.New("session: not found")

// Store is the gorm-backed session table.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Params describes a session to create.
type Params struct {
	UserID    int64
	Token     string
	Device    string
	IP        string
	UserAgent string
	ExpiresAt time.Time
}

// Create inserts a session row.
func (s *Store) Create(ctx context.Context, p Params) (*model.Session, error) {
	sess := &model.Session{
		UserID:    p.UserID,
		Token:     p.Token,
		Device:    p.Device,
		IP:        p.IP,
		UserAgent: p.UserAgent,
		LastSeen:  s.now(),
		ExpiresAt: p.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// FindByToken returns the row for token regardless of expiry.
func (s *Store) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &sess, nil
}

// ListByUser returns the user's live sessions, most recently used first.
func (s *Store) ListByUser(ctx context.Context, userID int64) ([]model.Session, error) {
	var out []model.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, s.now()).
		Order("last_seen DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list sessions: %w", err))
	}
	return out, nil
}

// Revoke deletes session id if it belongs to userID. A session owned by
// someone else is reported exactly like a missing one.
func (s *Store) Revoke(ctx context.Context, userID, id int64) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Session{})
	if res.Error != nil {
		return apperr.Internal(fmt.Errorf("revoke session %d: %w", id, res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("session not found")
	}
	return nil
}

// RevokeOthers deletes every session of userID except keepID.
func (s *Store) RevokeOthers(ctx context.Context, userID, keepID int64) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND id <> ?", userID, keepID).Delete(&model.Session{})
	if res.Error != nil {
		return 0, apperr.Internal(fmt.Errorf("revoke other sessions: %w", res.Error))
	}
	return res.RowsAffected, nil
}

// RevokeAll deletes every session of userID.
func (s *Store) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Session{})
	if res.Error != nil {
		return 0, apperr.Internal(fmt.Errorf("revoke all sessions: %w", res.Error))
	}
	return res.RowsAffected, nil
}

// DeleteExpired removes rows whose expiry has passed.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&model.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
