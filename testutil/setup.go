package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/kasuganosora/neighborly/cache"
	"github.com/kasuganosora/neighborly/config"
	dbadapter "github.com/kasuganosora/neighborly/db"
	"github.com/kasuganosora/neighborly/model"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plaintext password of every user made by CreateUser.
const TestPassword = "pass1234"

// SetupTestDB opens a throwaway SQLite file through the production Open path
// and runs AutoMigrate. Each test gets its own file.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SetupTestCache creates LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := cache.CacheConfig{} // empty RedisAddr → LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// CreateUser inserts an active USER with TestPassword. Use opts to tweak the
// row before insert.
func CreateUser(t *testing.T, db *gorm.DB, email string, opts ...func(*model.User)) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  fmt.Sprintf("user %s", email),
		Role:         model.RoleUser,
		Active:       true,
	}
	for _, o := range opts {
		o(u)
	}
	require.NoError(t, db.Create(u).Error, "CreateUser")
	return u
}

// WithPhone sets the user's phone number.
func WithPhone(phone string) func(*model.User) {
	return func(u *model.User) { u.Phone = &phone }
}

// WithRole sets the user's role.
func WithRole(r model.Role) func(*model.User) {
	return func(u *model.User) { u.Role = r }
}
