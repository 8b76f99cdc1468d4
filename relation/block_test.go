package relation_test

import (
	"context"
	"sync"
	"testing"

	"github.com/kasuganosora/neighborly/apperr"
	"github.com/kasuganosora/neighborly/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@x.io"), f.user(t, "b@x.io")

	first, err := f.blocks.Block(ctx, a.ID, b.ID)
	require.NoError(t, err)
	second, err := f.blocks.Block(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	f.db.Model(&model.UserBlock{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestBlock_ConcurrentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@x.io"), f.user(t, "b@x.io")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.blocks.Block(ctx, a.ID, b.ID)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	var count int64
	f.db.Model(&model.UserBlock{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestBlock_InvalidTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "a@x.io")

	_, err := f.blocks.Block(ctx, a.ID, a.ID)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, err = f.blocks.Block(ctx, a.ID, 4242)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestUnblock_OnlyByBlocker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "a@x.io"), f.user(t, "b@x.io")
	blk, err := f.blocks.Block(ctx, a.ID, b.ID)
	require.NoError(t, err)

	errOther := f.blocks.Unblock(ctx, b.ID, blk.ID)
	errMissing := f.blocks.Unblock(ctx, a.ID, 9999)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(errOther))
	assert.Equal(t, errMissing.Error(), errOther.Error())

	require.NoError(t, f.blocks.Unblock(ctx, a.ID, blk.ID))
	blocked, err := f.blocks.IsBlocked(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestIsBlocked_EitherDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "a@x.io"), f.user(t, "b@x.io"), f.user(t, "c@x.io")
	_, err := f.blocks.Block(ctx, a.ID, b.ID)
	require.NoError(t, err)

	for _, pair := range [][2]int64{{a.ID, b.ID}, {b.ID, a.ID}} {
		blocked, err := f.blocks.IsBlocked(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, blocked)
	}
	blocked, err := f.blocks.IsBlocked(ctx, a.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlockList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "a@x.io"), f.user(t, "b@x.io"), f.user(t, "c@x.io")
	_, _ = f.blocks.Block(ctx, a.ID, b.ID)
	_, _ = f.blocks.Block(ctx, a.ID, c.ID)
	_, _ = f.blocks.Block(ctx, c.ID, a.ID)

	list, err := f.blocks.List(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, blk := range list {
		assert.Equal(t, a.ID, blk.BlockerID)
	}
}
