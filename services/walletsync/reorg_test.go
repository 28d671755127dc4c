package walletsync

import (
	"context"
	"net/url"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/settings"
	chainsql "github.com/verdant-network/walletnode/stores/chain/sql"
	"github.com/verdant-network/walletnode/ulogger"
)

func TestClassify(t *testing.T) {
	ctx := context.Background()
	logger := ulogger.TestLogger{}

	tSettings := settings.NewSettings()
	tSettings.WalletSync.ShortSyncThreshold = 16
	tSettings.WalletSync.BehindPeerDisconnectGap = 10

	storeURL, err := url.Parse("sqlitememory:///reorgtest")
	require.NoError(t, err)

	chainStore, err := chainsql.New(logger, storeURL, tSettings)
	require.NoError(t, err)

	t.Cleanup(func() { _ = chainStore.Close() })

	cb := model.NewChainBuilder()
	cb.Extend(21)

	seedChain(t, chainStore, cb, 20)

	local := cb.Peak()
	detector := NewReorgDetector(logger, tSettings, chainStore)

	peakAt := func(height uint32, weight uint64) *model.Peak {
		hash := chainhash.HashH([]byte{byte(height), byte(weight)})
		return &model.Peak{Hash: &hash, Height: height, Weight: weight}
	}

	t.Run("no local peak needs full resync", func(t *testing.T) {
		require.Equal(t, SyncFullResync, detector.Classify(ctx, nil, peakAt(5, 60), nil))
	})

	t.Run("same peak needs nothing", func(t *testing.T) {
		require.Equal(t, SyncNone, detector.Classify(ctx, local, local, nil))
	})

	t.Run("peer slightly behind is ignored", func(t *testing.T) {
		require.Equal(t, SyncNone, detector.Classify(ctx, local, peakAt(15, 160), nil))
	})

	t.Run("peer far behind is disconnected", func(t *testing.T) {
		require.Equal(t, SyncDisconnectPeer, detector.Classify(ctx, local, peakAt(9, 100), nil))
	})

	t.Run("height gain exceeding weight gain is disconnected", func(t *testing.T) {
		require.Equal(t, SyncDisconnectPeer, detector.Classify(ctx, local, peakAt(40, local.Weight+5), nil))
	})

	t.Run("known previous hash extends", func(t *testing.T) {
		announced := peakAt(21, local.Weight+10)
		require.Equal(t, SyncExtend, detector.Classify(ctx, local, announced, local.Hash))
	})

	t.Run("gap at the threshold backtracks", func(t *testing.T) {
		require.Equal(t, SyncShortBacktrack, detector.Classify(ctx, local, peakAt(36, local.Weight+160), nil))
	})

	t.Run("gap one past the threshold resyncs", func(t *testing.T) {
		require.Equal(t, SyncFullResync, detector.Classify(ctx, local, peakAt(37, local.Weight+170), nil))
	})

	t.Run("missing local headers force a full resync", func(t *testing.T) {
		// A local peak above the stored headers: the backtrack window cannot
		// be walked, so classification falls back to the full path.
		ghostHash := chainhash.HashH([]byte("ghost"))
		ghost := &model.Peak{Hash: &ghostHash, Height: 50, Weight: 600}

		require.Equal(t, SyncFullResync, detector.Classify(ctx, ghost, peakAt(55, 700), nil))
	})
}
