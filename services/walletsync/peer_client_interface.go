/*
Package walletsync drives the wallet's untrusted light-client sync protocol.

A peak announcement from a peer is classified against the local chain view
(extend, short backtrack, full resync), and the orchestrator then runs the
appropriate sequence: blind replay for trusted peers, or weight-proof
anchored validation of every reported coin state for untrusted ones. The
coin store is the only shared mutable target; all writes funnel through a
single-writer committer whose merges are additive and idempotent, so
re-running a sync is always safe.
*/
package walletsync

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/model"
)

// WalletPeerI is the wallet protocol surface of one remote peer. All
// operations are blocking round trips honoring ctx; implementations convert
// transport failures into network errors and protocol violations into
// malicious-response errors.
type WalletPeerI interface {
	// PeerID identifies the peer on the gossip layer.
	PeerID() string

	// BaseURL is where the peer serves the wallet protocol HTTP endpoints.
	BaseURL() string

	// RequestBlockHeader fetches the header block at the given height.
	RequestBlockHeader(ctx context.Context, height uint32) (*model.HeaderBlock, error)

	// RequestHeaderBlocks fetches the headers in [start, end], ascending.
	RequestHeaderBlocks(ctx context.Context, start, end uint32) ([]*model.HeaderBlock, error)

	// RequestProofOfWeight fetches a weight proof anchored at the given tip.
	RequestProofOfWeight(ctx context.Context, height uint32, hash *chainhash.Hash) (*model.WeightProof, error)

	// RequestSESHashes fetches the peer's sub-epoch summaries covering the
	// height range [start, end].
	RequestSESHashes(ctx context.Context, start, end uint32) ([]*model.SubEpochSummary, error)

	// RegisterInterestInPuzzleHashes subscribes to the given puzzle hashes and
	// returns the peer's current coin states for them from minHeight up.
	RegisterInterestInPuzzleHashes(ctx context.Context, puzzleHashes []chainhash.Hash, minHeight uint32) ([]*model.CoinState, error)

	// RegisterInterestInCoins subscribes to the given coin IDs and returns the
	// peer's current states for them from minHeight up.
	RegisterInterestInCoins(ctx context.Context, coinIDs []chainhash.Hash, minHeight uint32) ([]*model.CoinState, error)

	// RequestAdditions fetches the coins added in the block at height (filtered
	// to puzzleHashes when non-empty) plus inclusion proofs against the block's
	// additions root, keyed by puzzle hash.
	RequestAdditions(ctx context.Context, height uint32, headerHash *chainhash.Hash, puzzleHashes []chainhash.Hash) (*model.CoinProofBatch, error)

	// RequestRemovals fetches the coins removed in the block at height
	// (filtered to coinIDs when non-empty) plus inclusion proofs against the
	// block's removals root, keyed by coin ID.
	RequestRemovals(ctx context.Context, height uint32, headerHash *chainhash.Hash, coinIDs []chainhash.Hash) (*model.CoinProofBatch, error)
}
