package hook

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrInterrupt signals that a handler wants to stop further processing.
var ErrInterrupt = errors.New("hook interrupted")

// Event describes one committed relationship or session change.
type Event struct {
	Name     string
	ActorID  int64
	TargetID int64
	Detail   map[string]interface{}
	Origin   Origin
}

// HookFn is a hook handler. Returning ErrInterrupt stops lower-priority handlers.
type HookFn func(ctx context.Context, ev *Event) error

type hookEntry struct {
	priority int
	fn       HookFn
	name     string
}

// HookCenter manages event hook registrations.
type HookCenter struct {
	mu    sync.RWMutex
	hooks map[string][]*hookEntry
}

// NewHookCenter creates a new HookCenter.
func NewHookCenter() *HookCenter {
	return &HookCenter{hooks: make(map[string][]*hookEntry)}
}

// Register adds fn for event. Lower priority runs first; name is used by Unregister.
func (hc *HookCenter) Register(event string, priority int, name string, fn HookFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	entries := append(hc.hooks[event], &hookEntry{priority: priority, fn: fn, name: name})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	hc.hooks[event] = entries
}

// RegisterMany registers the same handler for several events.
func (hc *HookCenter) RegisterMany(events []string, priority int, name string, fn HookFn) {
	for _, ev := range events {
		hc.Register(ev, priority, name, fn)
	}
}

// Unregister removes all hooks with the given name for the given event.
func (hc *HookCenter) Unregister(event, name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.hooks[event] = without(hc.hooks[event], name)
}

// UnregisterAll removes the named hooks across all events.
func (hc *HookCenter) UnregisterAll(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for event, entries := range hc.hooks {
		hc.hooks[event] = without(entries, name)
	}
}

func without(entries []*hookEntry, name string) []*hookEntry {
	out := make([]*hookEntry, 0, len(entries))
	for _, e := range entries {
		if e.name != name {
			out = append(out, e)
		}
	}
	return out
}

// Trigger runs every handler for ev.Name in priority order. Handler errors
// other than ErrInterrupt do not stop the chain; the first one is returned.
// A nil center is a no-op so services can run without hooks.
func (hc *HookCenter) Trigger(ctx context.Context, ev *Event) error {
	if hc == nil {
		return nil
	}
	if ev.Origin == (Origin{}) {
		ev.Origin = OriginFrom(ctx)
	}
	hc.mu.RLock()
	entries := make([]*hookEntry, len(hc.hooks[ev.Name]))
	copy(entries, hc.hooks[ev.Name])
	hc.mu.RUnlock()

	var first error
	for _, e := range entries {
		err := e.fn(ctx, ev)
		if errors.Is(err, ErrInterrupt) {
			return err
		}
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

const (
	FriendRequestSent      = "friend_request.sent"
	FriendRequestAccepted  = "friend_request.accepted"
	FriendRequestRejected  = "friend_request.rejected"
	FriendRequestCancelled = "friend_request.cancelled"
	FriendRemoved          = "friend.removed"
	BlockCreated           = "block.created"
	BlockRemoved           = "block.removed"
	ContactRequested       = "contact_request.created"
	ContactApproved        = "contact_request.approved"
	ContactRejected        = "contact_request.rejected"
	SessionCreated         = "session.created"
	SessionRevoked         = "session.revoked"
	AccountRegistered      = "account.registered"
	AccountFrozen          = "account.frozen"
	AccountReactivated     = "account.reactivated"
)

// AllEvents lists every event name emitted by the services.
var AllEvents = []string{
	FriendRequestSent, FriendRequestAccepted, FriendRequestRejected, FriendRequestCancelled,
	FriendRemoved, BlockCreated, BlockRemoved, ContactRequested, ContactApproved,
	ContactRejected, SessionCreated, SessionRevoked, AccountRegistered, AccountFrozen,
	AccountReactivated,
}
