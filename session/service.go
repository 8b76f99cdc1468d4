package session

import (
	"context"
	"fmt"

	"github.com/kasuganosora/neighborly/account"
	"github.com/kasuganosora/neighborly/apperr"
	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/token"
	"go.uber.org/zap"
)

// Service implements login, logout and session management on top of the
// store, the token signer and the identity store.
type Service struct {
	store    *Store
	tokens   *token.Service
	accounts *account.Service
	hooks    *hook.HookCenter
	logger   *zap.Logger
}

// NewService creates a session Service.
func NewService(store *Store, tokens *token.Service, accounts *account.Service, hooks *hook.HookCenter, logger *zap.Logger) *Service {
	return &Service{store: store, tokens: tokens, accounts: accounts, hooks: hooks, logger: logger}
}

// Store exposes the underlying session table.
func (s *Service) Store() *Store { return s.store }

// Credentials is the login input.
type Credentials struct {
	Email     string
	Password  string
	Device    string
	IP        string
	UserAgent string
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token   string
	Session *model.Session
	User    *model.User
}

// Login verifies credentials, issues a token and records the session.
func (s *Service) Login(ctx context.Context, cred Credentials) (*LoginResult, error) {
	u, err := s.accounts.Authenticate(ctx, cred.Email, cred.Password)
	if err != nil {
		return nil, err
	}
	tok, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("issue token: %w", err))
	}
	sess, err := s.store.Create(ctx, Params{
		UserID:    u.ID,
		Token:     tok,
		Device:    cred.Device,
		IP:        cred.IP,
		UserAgent: cred.UserAgent,
		ExpiresAt: exp,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.accounts.MarkLogin(ctx, u.ID); err != nil {
		s.logger.Warn("mark login failed", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{
		Name:    hook.SessionCreated,
		ActorID: u.ID,
		Detail:  map[string]interface{}{"session_id": sess.ID, "device": cred.Device},
	})
	return &LoginResult{Token: tok, Session: sess, User: u}, nil
}

// Logout revokes the caller's current session.
func (s *Service) Logout(ctx context.Context, current *model.Session) error {
	return s.Revoke(ctx, current.UserID, current.ID)
}

// Revoke deletes one of userID's sessions.
func (s *Service) Revoke(ctx context.Context, userID, sessionID int64) error {
	if err := s.store.Revoke(ctx, userID, sessionID); err != nil {
		return err
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{
		Name:    hook.SessionRevoked,
		ActorID: userID,
		Detail:  map[string]interface{}{"session_id": sessionID},
	})
	return nil
}

// RevokeOthers deletes every session of the caller except the current one.
func (s *Service) RevokeOthers(ctx context.Context, current *model.Session) (int64, error) {
	n, err := s.store.RevokeOthers(ctx, current.UserID, current.ID)
	if err != nil {
		return 0, err
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{
		Name:    hook.SessionRevoked,
		ActorID: current.UserID,
		Detail:  map[string]interface{}{"kept_session_id": current.ID, "revoked": n},
	})
	return n, nil
}

// RevokeAllFor deletes every session of userID on behalf of actorID.
func (s *Service) RevokeAllFor(ctx context.Context, actorID, userID int64) (int64, error) {
	n, err := s.store.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{
		Name:     hook.SessionRevoked,
		ActorID:  actorID,
		TargetID: userID,
		Detail:   map[string]interface{}{"revoked": n},
	})
	return n, nil
}

// List returns userID's live sessions.
func (s *Service) List(ctx context.Context, userID int64) ([]model.Session, error) {
	return s.store.ListByUser(ctx, userID)
}

// Sweep removes expired sessions and logs how many went.
func (s *Service) Sweep(ctx context.Context) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("session sweep done", zap.Int64("deleted", n))
}
