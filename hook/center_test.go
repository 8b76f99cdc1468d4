package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigger_NoHandlers(t *testing.T) {
	hc := NewHookCenter()
	require.NoError(t, hc.Trigger(context.Background(), &Event{Name: "noop"}))
}

func TestTrigger_NilCenter(t *testing.T) {
	var hc *HookCenter
	assert.NoError(t, hc.Trigger(context.Background(), &Event{Name: BlockCreated}))
}

func TestTrigger_PriorityOrder(t *testing.T) {
	hc := NewHookCenter()
	var order []string
	hc.Register(BlockCreated, 10, "late", func(context.Context, *Event) error {
		order = append(order, "late")
		return nil
	})
	hc.Register(BlockCreated, 1, "early", func(context.Context, *Event) error {
		order = append(order, "early")
		return nil
	})
	require.NoError(t, hc.Trigger(context.Background(), &Event{Name: BlockCreated}))
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestTrigger_Interrupt(t *testing.T) {
	hc := NewHookCenter()
	secondCalled := false
	hc.Register("ev", 0, "stop", func(context.Context, *Event) error { return ErrInterrupt })
	hc.Register("ev", 1, "after", func(context.Context, *Event) error {
		secondCalled = true
		return nil
	})
	err := hc.Trigger(context.Background(), &Event{Name: "ev"})
	assert.ErrorIs(t, err, ErrInterrupt)
	assert.False(t, secondCalled)
}

func TestTrigger_ErrorDoesNotStopChain(t *testing.T) {
	hc := NewHookCenter()
	boom := errors.New("boom")
	called := false
	hc.Register("ev", 0, "fails", func(context.Context, *Event) error { return boom })
	hc.Register("ev", 1, "runs", func(context.Context, *Event) error {
		called = true
		return nil
	})
	err := hc.Trigger(context.Background(), &Event{Name: "ev"})
	assert.ErrorIs(t, err, boom)
	assert.True(t, called)
}

func TestUnregister(t *testing.T) {
	hc := NewHookCenter()
	count := 0
	fn := func(context.Context, *Event) error { count++; return nil }
	hc.RegisterMany([]string{"a", "b"}, 0, "audit", fn)
	hc.Register("a", 0, "other", fn)

	hc.Unregister("a", "other")
	require.NoError(t, hc.Trigger(context.Background(), &Event{Name: "a"}))
	assert.Equal(t, 1, count)

	hc.UnregisterAll("audit")
	require.NoError(t, hc.Trigger(context.Background(), &Event{Name: "a"}))
	require.NoError(t, hc.Trigger(context.Background(), &Event{Name: "b"}))
	assert.Equal(t, 1, count)
}

func TestTrigger_FillsOriginFromContext(t *testing.T) {
	hc := NewHookCenter()
	var got Origin
	hc.Register("ev", 0, "o", func(_ context.Context, ev *Event) error {
		got = ev.Origin
		return nil
	})
	ctx := WithOrigin(context.Background(), Origin{TraceID: "t-1", IP: "10.0.0.1"})
	require.NoError(t, hc.Trigger(ctx, &Event{Name: "ev"}))
	assert.Equal(t, Origin{TraceID: "t-1", IP: "10.0.0.1"}, got)
}
