// Package coin defines the wallet's persistent coin store. All writes go
// through UpsertCoinStates, whose merge semantics are additive, NULL-filling
// and idempotent: committing the same state twice is a no-op, a spend height
// can be added to an unspent record, and a non-NULL stored height that
// disagrees with a non-NULL incoming height is reported as a conflict rather
// than overwritten.
package coin

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/model"
)

// UpsertOutcome classifies the effect of one row in an upsert batch.
type UpsertOutcome int

const (
	// UpsertInserted means the coin was not stored before.
	UpsertInserted UpsertOutcome = iota

	// UpsertUnchanged means the stored record already covered the incoming
	// state.
	UpsertUnchanged

	// UpsertMerged means the incoming state filled a missing spent height.
	UpsertMerged

	// UpsertConflict means a non-NULL stored height disagrees with a non-NULL
	// incoming height. Nothing was written; the caller re-validates.
	UpsertConflict
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertUnchanged:
		return "unchanged"
	case UpsertMerged:
		return "merged"
	case UpsertConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// UpsertResult is the per-row outcome of an upsert batch.
type UpsertResult struct {
	CoinID   chainhash.Hash
	Outcome  UpsertOutcome
	Existing *model.CoinState // stored state at conflict time, nil otherwise
}

// Store is the coin store interface.
type Store interface {
	// Health reports store health as an HTTP-style status code plus detail.
	Health(ctx context.Context) (int, string, error)

	// UpsertCoinStates applies the batch and returns one result per input, in
	// input order. States must have passed Validate.
	UpsertCoinStates(ctx context.Context, states []*model.CoinState) ([]UpsertResult, error)

	// GetCoinState returns the stored state for the coin, or a CoinNotFound
	// error.
	GetCoinState(ctx context.Context, coinID chainhash.Hash) (*model.CoinState, error)

	// GetCoinStatesByPuzzleHashes returns all stored states whose coin puzzle
	// hash is in the given set.
	GetCoinStatesByPuzzleHashes(ctx context.Context, puzzleHashes []chainhash.Hash) ([]*model.CoinState, error)

	// GetUnspentCoins returns all stored states without a spent height.
	GetUnspentCoins(ctx context.Context) ([]*model.CoinState, error)

	// RollbackToHeight undoes state above the given height: coins created
	// above it are deleted, spends above it are cleared.
	RollbackToHeight(ctx context.Context, height uint32) error

	// Count returns the number of stored coins.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying resources.
	Close() error
}
