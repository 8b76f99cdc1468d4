package relation_test

import (
	"context"
	"testing"

	"github.com/kasuganosora/neighborly/model"
	"github.com/kasuganosora/neighborly/relation"
	"github.com/kasuganosora/neighborly/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Progression(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@x.io"), f.user(t, "b@x.io")

	view, err := f.facade.Status(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, relation.StatusNone, view.Status)
	assert.True(t, view.Viewable)

	fr, err := f.friends.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)
	view, _ = f.facade.Status(ctx, a.ID, b.ID)
	assert.Equal(t, relation.StatusRequestSent, view.Status)
	require.NotNil(t, view.RequestID)
	assert.Equal(t, fr.ID, *view.RequestID)
	view, _ = f.facade.Status(ctx, b.ID, a.ID)
	assert.Equal(t, relation.StatusRequestReceived, view.Status)

	_, err = f.friends.Respond(ctx, b.ID, fr.ID, true)
	require.NoError(t, err)
	view, _ = f.facade.Status(ctx, b.ID, a.ID)
	assert.Equal(t, relation.StatusFriends, view.Status)
}

func TestStatus_BlockSymmetricAndMinimal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@x.io"), f.user(t, "b@x.io")
	fr, _ := f.friends.Send(ctx, a.ID, b.ID)
	_, err := f.friends.Respond(ctx, b.ID, fr.ID, true)
	require.NoError(t, err)

	_, err = f.blocks.Block(ctx, a.ID, b.ID)
	require.NoError(t, err)

	for _, pair := range [][2]int64{{a.ID, b.ID}, {b.ID, a.ID}} {
		view, err := f.facade.Status(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.Equal(t, &relation.View{Status: relation.StatusBlocked, Viewable: false}, view)
	}
}

func TestStatus_PendingSurvivesBlockAndUnblock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@x.io"), f.user(t, "b@x.io")

	_, err := f.friends.Send(ctx, a.ID, b.ID)
	require.NoError(t, err)

	blk, err := f.blocks.Block(ctx, b.ID, a.ID)
	require.NoError(t, err)
	view, _ := f.facade.Status(ctx, a.ID, b.ID)
	assert.Equal(t, relation.StatusBlocked, view.Status)
	assert.Nil(t, view.RequestID)

	require.NoError(t, f.blocks.Unblock(ctx, b.ID, blk.ID))
	view, _ = f.facade.Status(ctx, b.ID, a.ID)
	assert.Equal(t, relation.StatusRequestReceived, view.Status)
}

func TestStatus_RejectedIsNone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@x.io"), f.user(t, "b@x.io")
	fr, _ := f.friends.Send(ctx, a.ID, b.ID)
	_, err := f.friends.Respond(ctx, b.ID, fr.ID, false)
	require.NoError(t, err)

	view, _ := f.facade.Status(ctx, a.ID, b.ID)
	assert.Equal(t, relation.StatusNone, view.Status)
}

func TestStatus_Self(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "a@x.io")
	view, err := f.facade.Status(context.Background(), a.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, relation.StatusNone, view.Status)
}

func TestVisible_StaffBypassesBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@x.io"), f.user(t, "b@x.io")
	mod := f.user(t, "mod@x.io", testutil.WithRole(model.RoleModerator))
	_, _ = f.blocks.Block(ctx, b.ID, a.ID)
	_, _ = f.blocks.Block(ctx, b.ID, mod.ID)

	ok, err := f.facade.Visible(ctx, a, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.facade.Visible(ctx, mod, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.facade.Visible(ctx, nil, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
