package account_test

import (
	"context"
	"sync"
	"testing"

	"github.com/kasuganosora/neighborly/account"
	"github.com/kasuganosora/neighborly/apperr"
	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) (*account.Service, *hook.HookCenter) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	hc := hook.NewHookCenter()
	return account.New(db, hc, bcrypt.MinCost), hc
}

func TestRegister_CreatesActiveUser(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, account.Registration{
		Email: " Alice@Example.com ", Password: "correct-horse", DisplayName: "Alice", Phone: "+1 555 0100",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.Active)
	assert.False(t, u.Frozen)
	assert.Equal(t, model.RoleUser, u.Role)
	require.NotNil(t, u.Phone)
	assert.Equal(t, "+1 555 0100", *u.Phone)

	found, err := svc.FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, account.Registration{Email: "a@b.c", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, account.Registration{Email: "a@b.c", Password: "password2"})
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, account.Registration{Email: "race@x.io", Password: "password1"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
		}
	}
	assert.Equal(t, 1, ok)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, account.Registration{Email: "nope", Password: "password1"})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, err = svc.Register(ctx, account.Registration{Email: "a@b.c", Password: "short"})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestAuthenticate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := account.New(db, nil, bcrypt.MinCost)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "bob@x.io")

	got, err := svc.Authenticate(ctx, "bob@x.io", testutil.TestPassword)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "bob@x.io", "wrong-password")
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))

	_, err = svc.Authenticate(ctx, "nobody@x.io", testutil.TestPassword)
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
}

func TestAuthenticate_InactiveRefusedFrozenAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := account.New(db, nil, bcrypt.MinCost)
	ctx := context.Background()

	inactive := testutil.CreateUser(t, db, "off@x.io")
	require.NoError(t, db.Model(inactive).Update("active", false).Error)
	_, err := svc.Authenticate(ctx, "off@x.io", testutil.TestPassword)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	testutil.CreateUser(t, db, "ice@x.io", func(u *model.User) { u.Frozen = true })
	_, err = svc.Authenticate(ctx, "ice@x.io", testutil.TestPassword)
	assert.NoError(t, err)
}

func TestFreezeAndReactivate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	hc := hook.NewHookCenter()
	var events []string
	hc.RegisterMany(hook.AllEvents, 0, "rec", func(_ context.Context, ev *hook.Event) error {
		events = append(events, ev.Name)
		return nil
	})
	svc := account.New(db, hc, bcrypt.MinCost)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "f@x.io")

	frozen, err := svc.Freeze(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, frozen.Frozen)
	assert.NotNil(t, frozen.FrozenAt)

	_, err = svc.Freeze(ctx, u.ID)
	require.NoError(t, err)

	reloaded, err := svc.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Frozen)

	back, err := svc.Reactivate(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, back.Frozen)
	assert.Nil(t, back.FrozenAt)

	reloaded, err = svc.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Frozen)
	assert.Nil(t, reloaded.FrozenAt)

	assert.Equal(t, []string{hook.AccountFrozen, hook.AccountReactivated}, events)
}

func TestFindByID_NotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.FindByID(context.Background(), 404)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestMarkLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := account.New(db, nil, bcrypt.MinCost)
	u := testutil.CreateUser(t, db, "l@x.io")
	require.NoError(t, svc.MarkLogin(context.Background(), u.ID))

	got, err := svc.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)
	assert.NotNil(t, got.LastActiveAt)
}

func TestHasAnyRole(t *testing.T) {
	admin := &model.User{Role: model.RoleAdmin}
	user := &model.User{Role: model.RoleUser}
	assert.True(t, account.HasAnyRole(admin, model.RoleModerator, model.RoleAdmin))
	assert.False(t, account.HasAnyRole(user, model.RoleModerator, model.RoleAdmin))
	assert.False(t, account.HasAnyRole(nil, model.RoleUser))
	assert.False(t, account.HasAnyRole(user))
	assert.True(t, account.IsStaff(&model.User{Role: model.RoleModerator}))
}
