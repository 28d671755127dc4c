package sql

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/ulogger"
)

func newTestStore(t *testing.T) *SQL {
	storeURL, err := url.Parse("sqlitememory:///chaintest")
	require.NoError(t, err)

	store, err := New(ulogger.TestLogger{}, storeURL, settings.NewSettings())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestStoreAndGetHeaders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cb := model.NewChainBuilder()
	cb.Extend(10)

	require.NoError(t, store.StoreHeaders(ctx, cb.Blocks()))

	t.Run("get by hash", func(t *testing.T) {
		want := cb.BlockAt(5)

		got, err := store.GetHeader(ctx, want.Hash())
		require.NoError(t, err)
		assert.True(t, want.Hash().IsEqual(got.Hash()))
		assert.Equal(t, want.Height, got.Height)
	})

	t.Run("get by height", func(t *testing.T) {
		got, err := store.GetHeaderByHeight(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, uint32(7), got.Height)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.GetHeaderByHeight(ctx, 99)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBlockNotFound))
	})

	t.Run("exists", func(t *testing.T) {
		exists, err := store.GetBlockExists(ctx, cb.BlockAt(3).Hash())
		require.NoError(t, err)
		assert.True(t, exists)

		other := model.NewTestCoin(9, 1).ID()
		exists, err = store.GetBlockExists(ctx, &other)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("range query", func(t *testing.T) {
		headers, err := store.GetHeadersFromHeight(ctx, 4, 3)
		require.NoError(t, err)
		require.Len(t, headers, 3)
		assert.Equal(t, uint32(4), headers[0].Height)
		assert.Equal(t, uint32(6), headers[2].Height)
	})
}

func TestStoreHeadersIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cb := model.NewChainBuilder()
	cb.Extend(5)

	require.NoError(t, store.StoreHeaders(ctx, cb.Blocks()))
	require.NoError(t, store.StoreHeaders(ctx, cb.Blocks()))

	headers, err := store.GetHeadersFromHeight(ctx, 0, 100)
	require.NoError(t, err)
	assert.Len(t, headers, 5)
}

func TestStoreHeadersReplacesForkedHeight(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cb1 := model.NewChainBuilder()
	cb1.Extend(5)
	require.NoError(t, store.StoreHeaders(ctx, cb1.Blocks()))

	// A different chain occupying the same heights replaces the old rows.
	cb2 := model.NewChainBuilder()
	cb2.Extend(5)
	require.NoError(t, store.StoreHeaders(ctx, cb2.Blocks()))

	got, err := store.GetHeaderByHeight(ctx, 4)
	require.NoError(t, err)
	assert.True(t, cb2.BlockAt(4).Hash().IsEqual(got.Hash()))

	exists, err := store.GetBlockExists(ctx, cb1.BlockAt(4).Hash())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBestPeak(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	peak, err := store.GetBestPeak(ctx)
	require.NoError(t, err)
	assert.Nil(t, peak, "never-synced wallet has no peak")

	cb := model.NewChainBuilder()
	cb.Extend(3)

	require.NoError(t, store.SetBestPeak(ctx, cb.Peak()))

	peak, err = store.GetBestPeak(ctx)
	require.NoError(t, err)
	require.NotNil(t, peak)
	assert.Equal(t, cb.Tip().Height, peak.Height)
	assert.Equal(t, cb.Tip().Weight, peak.Weight)
	assert.True(t, cb.Tip().Hash().IsEqual(peak.Hash))
}

func TestRollbackToHeight(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cb := model.NewChainBuilder()
	cb.Extend(10)

	require.NoError(t, store.StoreHeaders(ctx, cb.Blocks()))
	require.NoError(t, store.SetBestPeak(ctx, cb.Peak()))

	require.NoError(t, store.RollbackToHeight(ctx, 5))

	_, err := store.GetHeaderByHeight(ctx, 6)
	assert.True(t, errors.Is(err, errors.ErrBlockNotFound))

	peak, err := store.GetBestPeak(ctx)
	require.NoError(t, err)
	require.NotNil(t, peak)
	assert.Equal(t, uint32(5), peak.Height)
	assert.True(t, cb.BlockAt(5).Hash().IsEqual(peak.Hash))
}

func TestSubEpochSummaries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	summaries, err := store.GetSubEpochSummaries(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	cb := model.NewChainBuilder()
	cb.Extend(25)

	want := cb.SubEpochs(10)
	require.NoError(t, store.StoreSubEpochSummaries(ctx, want))

	got, err := store.GetSubEpochSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		assert.True(t, want[i].Hash.IsEqual(got[i].Hash))
		assert.Equal(t, want[i].EndHeight, got[i].EndHeight)
	}
}

func TestHealth(t *testing.T) {
	store := newTestStore(t)

	code, msg, err := store.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", msg)
}
