package memory

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/stores/coin"
	"github.com/verdant-network/walletnode/ulogger"
)

func coinState(seed byte, amount uint64, created uint32, spentAt *uint32) *model.CoinState {
	return &model.CoinState{
		Coin:          model.NewTestCoin(seed, amount),
		CreatedHeight: model.Uint32Ptr(created),
		SpentHeight:   spentAt,
	}
}

func TestMemoryUpsertMergeSemantics(t *testing.T) {
	store := New(ulogger.TestLogger{})
	ctx := context.Background()

	results, err := store.UpsertCoinStates(ctx, []*model.CoinState{coinState(1, 100, 10, nil)})
	require.NoError(t, err)
	assert.Equal(t, coin.UpsertInserted, results[0].Outcome)

	// Spend fills in.
	results, err = store.UpsertCoinStates(ctx, []*model.CoinState{coinState(1, 100, 10, model.Uint32Ptr(20))})
	require.NoError(t, err)
	assert.Equal(t, coin.UpsertMerged, results[0].Outcome)

	// Unspent report does not clear the stored spend.
	results, err = store.UpsertCoinStates(ctx, []*model.CoinState{coinState(1, 100, 10, nil)})
	require.NoError(t, err)
	assert.Equal(t, coin.UpsertUnchanged, results[0].Outcome)

	state, err := store.GetCoinState(ctx, model.NewTestCoin(1, 100).ID())
	require.NoError(t, err)
	require.NotNil(t, state.SpentHeight)
	assert.Equal(t, uint32(20), *state.SpentHeight)

	// Disagreeing spend height is reported, not applied.
	results, err = store.UpsertCoinStates(ctx, []*model.CoinState{coinState(1, 100, 10, model.Uint32Ptr(25))})
	require.NoError(t, err)
	require.Equal(t, coin.UpsertConflict, results[0].Outcome)
	require.NotNil(t, results[0].Existing)
	assert.Equal(t, uint32(20), *results[0].Existing.SpentHeight)

	// Disagreeing created height as well.
	results, err = store.UpsertCoinStates(ctx, []*model.CoinState{coinState(1, 100, 11, nil)})
	require.NoError(t, err)
	assert.Equal(t, coin.UpsertConflict, results[0].Outcome)
}

func TestMemoryQueriesAndRollback(t *testing.T) {
	store := New(ulogger.TestLogger{})
	ctx := context.Background()

	c1 := coinState(1, 100, 5, nil)
	c2 := coinState(2, 200, 5, model.Uint32Ptr(50))
	c3 := coinState(3, 300, 40, nil)

	_, err := store.UpsertCoinStates(ctx, []*model.CoinState{c1, c2, c3})
	require.NoError(t, err)

	unspentCoins, err := store.GetUnspentCoins(ctx)
	require.NoError(t, err)
	assert.Len(t, unspentCoins, 2)

	byPuzzle, err := store.GetCoinStatesByPuzzleHashes(ctx, []chainhash.Hash{*c3.Coin.PuzzleHash})
	require.NoError(t, err)
	require.Len(t, byPuzzle, 1)
	assert.True(t, byPuzzle[0].Equal(c3))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, store.RollbackToHeight(ctx, 10))

	_, err = store.GetCoinState(ctx, c3.Coin.ID())
	assert.True(t, errors.Is(err, errors.ErrCoinNotFound))

	state, err := store.GetCoinState(ctx, c2.Coin.ID())
	require.NoError(t, err)
	assert.Nil(t, state.SpentHeight)
}
