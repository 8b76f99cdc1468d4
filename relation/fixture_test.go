package relation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/neighborly/cache"
	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/message"
	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/relation"
	"github.com/kasuganosora/neighborly/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cooldown = 720 * time.Hour

type fixture struct {
	db       *gorm.DB
	pubsub   cache.PubSub
	hooks    *hook.HookCenter
	events   *[]string
	friends  *relation.FriendService
	blocks   *relation.BlockService
	contacts *relation.ContactService
	facade   *relation.Facade
	messages *message.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	_, ps := testutil.SetupTestCache(t)
	hc := hook.NewHookCenter()
	events := &[]string{}
	var mu sync.Mutex
	hc.RegisterMany(hook.AllEvents, 0, "recorder", func(_ context.Context, ev *hook.Event) error {
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, ev.Name)
		return nil
	})
	msgs := message.New(db, ps, zap.NewNop())
	return &fixture{
		db:       db,
		pubsub:   ps,
		hooks:    hc,
		events:   events,
		friends:  relation.NewFriendService(db, hc, cooldown),
		blocks:   relation.NewBlockService(db, hc),
		contacts: relation.NewContactService(db, msgs, hc, zap.NewNop()),
		facade:   relation.NewFacade(db),
		messages: msgs,
	}
}

func (f *fixture) user(t *testing.T, email string, opts ...func(*model.User)) *model.User {
	t.Helper()
	return testutil.CreateUser(t, f.db, email, opts...)
}
