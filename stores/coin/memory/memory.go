// Package memory implements the coin store on an in-process swiss map. Used
// for tests and ephemeral wallets; the merge semantics match the sql backend.
package memory

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/dolthub/swiss"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/stores/coin"
	"github.com/verdant-network/walletnode/ulogger"
)

type Memory struct {
	mu     sync.RWMutex
	coins  *swiss.Map[chainhash.Hash, *model.CoinState]
	logger ulogger.Logger
}

func New(logger ulogger.Logger) *Memory {
	return &Memory{
		coins:  swiss.NewMap[chainhash.Hash, *model.CoinState](1024),
		logger: logger,
	}
}

func (m *Memory) Health(_ context.Context) (int, string, error) {
	return http.StatusOK, "OK", nil
}

func (m *Memory) UpsertCoinStates(_ context.Context, states []*model.CoinState) ([]coin.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]coin.UpsertResult, 0, len(states))

	for _, state := range states {
		if err := state.Validate(); err != nil {
			return nil, err
		}

		coinID := state.Coin.ID()

		existing, ok := m.coins.Get(coinID)
		if !ok {
			m.coins.Put(coinID, cloneState(state))
			results = append(results, coin.UpsertResult{CoinID: coinID, Outcome: coin.UpsertInserted})

			continue
		}

		switch {
		case *existing.CreatedHeight != *state.CreatedHeight:
			results = append(results, coin.UpsertResult{CoinID: coinID, Outcome: coin.UpsertConflict, Existing: cloneState(existing)})

		case state.SpentHeight == nil:
			results = append(results, coin.UpsertResult{CoinID: coinID, Outcome: coin.UpsertUnchanged})

		case existing.SpentHeight == nil:
			existing.SpentHeight = model.Uint32Ptr(*state.SpentHeight)
			results = append(results, coin.UpsertResult{CoinID: coinID, Outcome: coin.UpsertMerged})

		case *existing.SpentHeight != *state.SpentHeight:
			results = append(results, coin.UpsertResult{CoinID: coinID, Outcome: coin.UpsertConflict, Existing: cloneState(existing)})

		default:
			results = append(results, coin.UpsertResult{CoinID: coinID, Outcome: coin.UpsertUnchanged})
		}
	}

	return results, nil
}

func (m *Memory) GetCoinState(_ context.Context, coinID chainhash.Hash) (*model.CoinState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.coins.Get(coinID)
	if !ok {
		return nil, errors.NewCoinNotFoundError("coin %s not found", coinID.String())
	}

	return cloneState(state), nil
}

func (m *Memory) GetCoinStatesByPuzzleHashes(_ context.Context, puzzleHashes []chainhash.Hash) ([]*model.CoinState, error) {
	wanted := make(map[chainhash.Hash]struct{}, len(puzzleHashes))
	for _, ph := range puzzleHashes {
		wanted[ph] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var states []*model.CoinState

	m.coins.Iter(func(_ chainhash.Hash, state *model.CoinState) bool {
		if _, ok := wanted[*state.Coin.PuzzleHash]; ok {
			states = append(states, cloneState(state))
		}

		return false
	})

	sortByCreatedHeight(states)

	return states, nil
}

func (m *Memory) GetUnspentCoins(_ context.Context) ([]*model.CoinState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var states []*model.CoinState

	m.coins.Iter(func(_ chainhash.Hash, state *model.CoinState) bool {
		if state.SpentHeight == nil {
			states = append(states, cloneState(state))
		}

		return false
	})

	sortByCreatedHeight(states)

	return states, nil
}

func (m *Memory) RollbackToHeight(_ context.Context, height uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var toDelete []chainhash.Hash

	m.coins.Iter(func(coinID chainhash.Hash, state *model.CoinState) bool {
		if *state.CreatedHeight > height {
			toDelete = append(toDelete, coinID)
			return false
		}

		if state.SpentHeight != nil && *state.SpentHeight > height {
			state.SpentHeight = nil
		}

		return false
	})

	for _, coinID := range toDelete {
		m.coins.Delete(coinID)
	}

	return nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.coins.Count(), nil
}

func (m *Memory) Close() error {
	return nil
}

func cloneState(state *model.CoinState) *model.CoinState {
	clone := &model.CoinState{
		Coin:          state.Coin,
		CreatedHeight: model.Uint32Ptr(*state.CreatedHeight),
	}

	if state.SpentHeight != nil {
		clone.SpentHeight = model.Uint32Ptr(*state.SpentHeight)
	}

	return clone
}

func sortByCreatedHeight(states []*model.CoinState) {
	sort.Slice(states, func(i, j int) bool {
		return *states[i].CreatedHeight < *states[j].CreatedHeight
	})
}
