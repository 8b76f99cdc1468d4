package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kasuganosora/neighborly/hook"
	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nop() *zap.Logger { return zap.NewNop() }

func TestLog_EnqueuedAndFlushed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	actor, target := int64(1), int64(2)
	svc.Log(Entry{
		TraceID:  "trace-123",
		ActorID:  &actor,
		TargetID: &target,
		Action:   hook.BlockCreated,
		Detail:   map[string]int64{"block_id": 9},
		IP:       "127.0.0.1",
	})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "trace-123", logs[0].TraceID)
	assert.Equal(t, hook.BlockCreated, logs[0].Action)
	assert.Equal(t, "127.0.0.1", logs[0].IP)
	require.NotNil(t, logs[0].ActorID)
	assert.Equal(t, actor, *logs[0].ActorID)

	var detail map[string]int64
	require.NoError(t, json.Unmarshal(logs[0].Detail, &detail))
	assert.Equal(t, int64(9), detail["block_id"])
}

func TestLog_BatchFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	for i := 0; i < 250; i++ {
		svc.Log(Entry{Action: "batch"})
	}
	svc.Stop(context.Background())

	var count int64
	db.Model(&model.AuditLog{}).Count(&count)
	assert.Equal(t, int64(250), count)
}

func TestLog_NilFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	svc.Log(Entry{Action: "bare"})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	db.Find(&logs)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].ActorID)
	assert.Nil(t, logs[0].TargetID)
}

func TestStop_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	svc.Stop(context.Background())
	svc.Stop(context.Background())
}

func TestLog_DropsWhenFull(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	for i := 0; i < queueSize+50; i++ {
		svc.Log(Entry{Action: "flood"})
	}
	svc.Stop(context.Background())
}

func TestSubscribe_RecordsHookEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	hc := hook.NewHookCenter()
	svc.Subscribe(hc)

	ctx := hook.WithOrigin(context.Background(), hook.Origin{TraceID: "tr", IP: "10.1.1.1"})
	require.NoError(t, hc.Trigger(ctx, &hook.Event{Name: hook.FriendRequestSent, ActorID: 3, TargetID: 4}))
	require.NoError(t, hc.Trigger(ctx, &hook.Event{Name: hook.SessionRevoked, ActorID: 3}))
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Order("id").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, hook.FriendRequestSent, logs[0].Action)
	assert.Equal(t, "tr", logs[0].TraceID)
	assert.Equal(t, "10.1.1.1", logs[0].IP)
	require.NotNil(t, logs[0].TargetID)
	assert.Equal(t, int64(4), *logs[0].TargetID)
	assert.Nil(t, logs[1].TargetID)
}
