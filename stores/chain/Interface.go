// Package chain defines the local header chain store: the validated header
// window, the best peak and the persisted sub-epoch summary list. This is the
// state reorg classification and weight-proof fork-point computation run
// against after a restart.
package chain

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/model"
)

// Store is the header chain store interface.
type Store interface {
	// Health reports store health as an HTTP-style status code plus detail.
	Health(ctx context.Context) (int, string, error)

	// StoreHeaders persists the given headers. Idempotent: re-storing a known
	// header is a no-op. A different header at an already occupied height
	// replaces the old one (the caller has already rolled back past the fork).
	StoreHeaders(ctx context.Context, headers []*model.HeaderBlock) error

	// GetHeader returns the header with the given hash, or a BlockNotFound
	// error.
	GetHeader(ctx context.Context, hash *chainhash.Hash) (*model.HeaderBlock, error)

	// GetHeaderByHeight returns the header at the given height, or a
	// BlockNotFound error.
	GetHeaderByHeight(ctx context.Context, height uint32) (*model.HeaderBlock, error)

	// GetBlockExists reports whether a header with the given hash is stored.
	GetBlockExists(ctx context.Context, hash *chainhash.Hash) (bool, error)

	// GetHeadersFromHeight returns up to limit headers starting at height,
	// ascending.
	GetHeadersFromHeight(ctx context.Context, height uint32, limit int) ([]*model.HeaderBlock, error)

	// GetBestPeak returns the current best peak, or nil when the wallet has
	// never synced.
	GetBestPeak(ctx context.Context) (*model.Peak, error)

	// SetBestPeak records the current best peak.
	SetBestPeak(ctx context.Context, peak *model.Peak) error

	// RollbackToHeight removes all headers above the given height and caps the
	// best peak accordingly.
	RollbackToHeight(ctx context.Context, height uint32) error

	// GetSubEpochSummaries returns the persisted sub-epoch summary list,
	// oldest first. An empty list means none have been stored yet.
	GetSubEpochSummaries(ctx context.Context) ([]*model.SubEpochSummary, error)

	// StoreSubEpochSummaries replaces the persisted sub-epoch summary list.
	StoreSubEpochSummaries(ctx context.Context, summaries []*model.SubEpochSummary) error

	// Close releases the underlying resources.
	Close() error
}
