package walletsync

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/stores/chain"
	"github.com/verdant-network/walletnode/ulogger"
)

// SyncDecision classifies what an announced peak requires of us.
type SyncDecision int

const (
	// SyncNone means the announcement needs no action.
	SyncNone SyncDecision = iota

	// SyncExtend means the announced block directly extends the local peak.
	SyncExtend

	// SyncShortBacktrack means the announced peak is close enough to walk back
	// to a locally known block and replay forward.
	SyncShortBacktrack

	// SyncFullResync means the local view must be rebuilt from a weight proof.
	SyncFullResync

	// SyncDisconnectPeer means the announcing peer is unreliable or
	// malicious-grade and should be dropped.
	SyncDisconnectPeer
)

func (d SyncDecision) String() string {
	switch d {
	case SyncNone:
		return "none"
	case SyncExtend:
		return "extend"
	case SyncShortBacktrack:
		return "short_backtrack"
	case SyncFullResync:
		return "full_resync"
	case SyncDisconnectPeer:
		return "disconnect_peer"
	default:
		return "unknown"
	}
}

// ReorgDetector classifies announced peaks against the local chain view. It
// only ever consults the local store and the session cache, never the
// network, so classification cannot block on a peer.
type ReorgDetector struct {
	logger     ulogger.Logger
	settings   *settings.Settings
	chainStore chain.Store
}

// NewReorgDetector creates a detector over the local chain store.
func NewReorgDetector(logger ulogger.Logger, tSettings *settings.Settings, chainStore chain.Store) *ReorgDetector {
	return &ReorgDetector{
		logger:     logger,
		settings:   tSettings,
		chainStore: chainStore,
	}
}

// Classify decides what to do about an announced peak. announcedPrev is the
// announced block's previous hash when already known (from gossip or the
// session cache), nil otherwise.
func (r *ReorgDetector) Classify(ctx context.Context, local, announced *model.Peak, announcedPrev *chainhash.Hash) SyncDecision {
	if local == nil {
		return SyncFullResync
	}

	if announced.Hash.IsEqual(local.Hash) {
		return SyncNone
	}

	if announced.Weight <= local.Weight {
		// The remote is behind. Ignore it unless it trails by so much that
		// keeping the connection is pointless.
		if local.Height > announced.Height && local.Height-announced.Height > r.settings.WalletSync.BehindPeerDisconnectGap {
			r.logger.Warnf("peer peak %s at height %d trails local height %d beyond the disconnect gap",
				announced.Hash.String(), announced.Height, local.Height)

			return SyncDisconnectPeer
		}

		return SyncNone
	}

	// Weight increases by at least one per block, so a peak claiming far more
	// height than its weight gain can carry is fabricated.
	if announced.Height > local.Height &&
		uint64(announced.Height-local.Height) > announced.Weight-local.Weight {
		r.logger.Warnf("peer peak %s claims %d blocks over local for only %d weight",
			announced.Hash.String(), announced.Height-local.Height, announced.Weight-local.Weight)

		return SyncDisconnectPeer
	}

	if announcedPrev != nil && announcedPrev.IsEqual(local.Hash) && announced.Height == local.Height+1 {
		return SyncExtend
	}

	if heightGap(local.Height, announced.Height) <= r.settings.WalletSync.ShortSyncThreshold {
		if err := r.checkBacktrackWindow(ctx, local, announced); err != nil {
			// Blocks missing locally: fall back to the full-fidelity path
			// rather than skipping validation.
			r.logger.Infof("short backtrack not possible (%v), falling back to full resync", err)
			return SyncFullResync
		}

		return SyncShortBacktrack
	}

	return SyncFullResync
}

// checkBacktrackWindow verifies the local store holds the headers a short
// backtrack would walk over. A MissingLocalBlocks error means the caller must
// escalate to a full resync.
func (r *ReorgDetector) checkBacktrackWindow(ctx context.Context, local, announced *model.Peak) error {
	backStop := uint32(0)

	lowest := local.Height
	if announced.Height < lowest {
		lowest = announced.Height
	}

	if lowest > r.settings.WalletSync.ShortSyncThreshold {
		backStop = lowest - r.settings.WalletSync.ShortSyncThreshold
	}

	for _, height := range []uint32{backStop, local.Height} {
		if _, err := r.chainStore.GetHeaderByHeight(ctx, height); err != nil {
			if errors.Is(err, errors.ErrBlockNotFound) {
				return errors.NewMissingLocalBlocksError("no local header at height %d", height)
			}

			return err
		}
	}

	return nil
}

func heightGap(a, b uint32) uint32 {
	if a > b {
		return a - b
	}

	return b - a
}
