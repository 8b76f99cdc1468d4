// Package account is the identity store: registration, credential checks,
// lookup, and the freeze/reactivate lifecycle.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kasuganosora/neighborly/apperr"
	dbadapter "github.com/kasuganosora/neighborly/db"
	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service reads and writes user accounts.
type Service struct {
	db         *gorm.DB
	hooks      *hook.HookCenter
	bcryptCost int
	now        func() time.Time
}

// New creates an account Service. A bcryptCost outside bcrypt's range falls
// back to bcrypt.DefaultCost.
func New(db *gorm.DB, hooks *hook.HookCenter, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{db: db, hooks: hooks, bcryptCost: bcryptCost, now: time.Now}
}

// FindByID returns the user or a NotFound error.
func (s *Service) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find user %d: %w", id, err))
	}
	return &u, nil
}

// FindByEmail returns the user with the given email or a NotFound error.
func (s *Service) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("find user by email: %w", err))
	}
	return &u, nil
}

// Save persists every column of u.
func (s *Service) Save(ctx context.Context, u *model.User) error {
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		if dbadapter.IsDuplicateKey(err) {
			return apperr.Conflict("email already registered")
		}
		return apperr.Internal(fmt.Errorf("save user %d: %w", u.ID, err))
	}
	return nil
}

// Registration is the input to Register.
type Registration struct {
	Email       string
	Password    string
	DisplayName string
	Phone       string
}

// Register creates an active USER account.
func (s *Service) Register(ctx context.Context, r Registration) (*model.User, error) {
	email := normalizeEmail(r.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.InvalidArgument("invalid email")
	}
	if len(r.Password) < 8 {
		return nil, apperr.InvalidArgument("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.bcryptCost)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}
	u := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(r.DisplayName),
		Role:         model.RoleUser,
		Active:       true,
	}
	if phone := strings.TrimSpace(r.Phone); phone != "" {
		u.Phone = &phone
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if dbadapter.IsDuplicateKey(err) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, apperr.Internal(fmt.Errorf("create user: %w", err))
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{Name: hook.AccountRegistered, ActorID: u.ID})
	return u, nil
}

// Authenticate checks email and password. Unknown email and wrong password
// produce the same error. Frozen accounts authenticate so they can reactivate;
// deactivated ones are refused.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.FindByEmail(ctx, email)
	if apperr.CodeOf(err) == apperr.CodeNotFound {
		return nil, apperr.Unauthenticated("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthenticated("invalid credentials")
	}
	if !u.Active {
		return nil, apperr.Forbidden("account disabled")
	}
	return u, nil
}

// MarkLogin records a successful login.
func (s *Service) MarkLogin(ctx context.Context, userID int64) error {
	now := s.now()
	err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"last_login_at": now, "last_active_at": now}).Error
	if err != nil {
		return apperr.Internal(fmt.Errorf("mark login %d: %w", userID, err))
	}
	return nil
}

// Freeze locks the account. Freezing a frozen account is a no-op.
func (s *Service) Freeze(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Frozen {
		return u, nil
	}
	now := s.now()
	u.Frozen = true
	u.FrozenAt = &now
	if err := s.db.WithContext(ctx).Model(u).
		Updates(map[string]interface{}{"frozen": true, "frozen_at": now}).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("freeze user %d: %w", userID, err))
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{Name: hook.AccountFrozen, ActorID: userID})
	return u, nil
}

// Reactivate clears the frozen flag. Reactivating an unfrozen account is a no-op.
func (s *Service) Reactivate(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Frozen {
		return u, nil
	}
	u.Frozen = false
	u.FrozenAt = nil
	if err := s.db.WithContext(ctx).Model(u).
		Updates(map[string]interface{}{"frozen": false, "frozen_at": nil}).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("reactivate user %d: %w", userID, err))
	}
	_ = s.hooks.Trigger(ctx, &hook.Event{Name: hook.AccountReactivated, ActorID: userID})
	return u, nil
}

// HasAnyRole reports whether u holds one of roles.
func HasAnyRole(u *model.User, roles ...model.Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether u is a moderator or admin.
func IsStaff(u *model.User) bool {
	return HasAnyRole(u, model.RoleModerator, model.RoleAdmin)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
