package walletsync

import (
	"context"
	"net/url"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/services/weightproof"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/stores/chain"
	chainsql "github.com/verdant-network/walletnode/stores/chain/sql"
	coinmemory "github.com/verdant-network/walletnode/stores/coin/memory"
	"github.com/verdant-network/walletnode/ulogger"
	"github.com/verdant-network/walletnode/util/merkleproof"
)

func newTestServer(t *testing.T, name string, wpv weightproof.ValidatorI) (*Server, chain.Store, *coinmemory.Memory) {
	logger := ulogger.TestLogger{}

	tSettings := settings.NewSettings()
	tSettings.WalletSync.ShortSyncThreshold = 16
	tSettings.WalletSync.SignatureSpotCheckWindow = 5
	tSettings.WalletSync.SubscriptionBatchSize = 2
	tSettings.WalletSync.RecentWindowSize = 10

	storeURL, err := url.Parse("sqlitememory:///" + name)
	require.NoError(t, err)

	chainStore, err := chainsql.New(logger, storeURL, tSettings)
	require.NoError(t, err)

	t.Cleanup(func() { _ = chainStore.Close() })

	coinStore := coinmemory.New(logger)

	if wpv == nil {
		wpv = weightproof.NewValidator(logger, tSettings)
	}

	s := NewServer(logger, tSettings, chainStore, coinStore, wpv, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s.committer.Start(ctx)

	return s, chainStore, coinStore
}

func seedChain(t *testing.T, store chain.Store, cb *model.ChainBuilder, upTo uint32) {
	ctx := context.Background()

	blocks := cb.Blocks()[:upTo+1]
	require.NoError(t, store.StoreHeaders(ctx, blocks))

	tip := blocks[len(blocks)-1]
	require.NoError(t, store.SetBestPeak(ctx, &model.Peak{Hash: tip.Hash(), Height: tip.Height, Weight: tip.Weight}))
}

func proofBatch(cb *model.ChainBuilder, height uint32, keyedBy chainhash.Hash, proofLeaf chainhash.Hash, removals bool, coins ...*model.Coin) *model.CoinProofBatch {
	var proof *merkleproof.Proof
	if removals {
		proof = cb.RemovalProof(height, proofLeaf)
	} else {
		proof = cb.AdditionProof(height, proofLeaf)
	}

	return &model.CoinProofBatch{
		Coins:  coins,
		Proofs: map[chainhash.Hash]*merkleproof.Proof{keyedBy: proof},
	}
}

func TestSyncExtend(t *testing.T) {
	ctx := context.Background()

	s, chainStore, coinStore := newTestServer(t, "syncextend", nil)

	coinA := model.NewTestCoin(1, 1000)
	leaf := *coinA.PuzzleHash

	cb := model.NewChainBuilder()
	cb.Extend(10)
	cb.AddBlock(model.WithAdditionLeaves(leaf))

	seedChain(t, chainStore, cb, 9)

	s.interests.AddPuzzleHashes([]chainhash.Hash{leaf})

	peer := &MockWalletPeer{}
	peer.On("RequestBlockHeader", mock.Anything, uint32(10)).Return(cb.BlockAt(10), nil)
	peer.On("RequestAdditions", mock.Anything, uint32(10), mock.Anything, mock.Anything).
		Return(proofBatch(cb, 10, leaf, leaf, false, coinA), nil)

	session := NewSyncSession(ctx, peer, false, s.interests)

	require.NoError(t, s.syncToPeer(ctx, session, cb.Peak(), SyncExtend))

	state, err := coinStore.GetCoinState(ctx, coinA.ID())
	require.NoError(t, err)
	require.Equal(t, uint32(10), *state.CreatedHeight)
	require.Nil(t, state.SpentHeight)

	peak, err := chainStore.GetBestPeak(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(10), peak.Height)
}

func TestSyncExtendRejectsTamperedProof(t *testing.T) {
	ctx := context.Background()

	s, chainStore, coinStore := newTestServer(t, "syncextendtamper", nil)

	coinA := model.NewTestCoin(1, 1000)
	leaf := *coinA.PuzzleHash
	otherLeaf := chainhash.HashH([]byte("other"))

	cb := model.NewChainBuilder()
	cb.Extend(10)
	cb.AddBlock(model.WithAdditionLeaves(leaf, otherLeaf))

	seedChain(t, chainStore, cb, 9)

	s.interests.AddPuzzleHashes([]chainhash.Hash{leaf})

	// The proof is for the other leaf, keyed as if it proved ours.
	peer := &MockWalletPeer{}
	peer.On("RequestBlockHeader", mock.Anything, uint32(10)).Return(cb.BlockAt(10), nil)
	peer.On("RequestAdditions", mock.Anything, uint32(10), mock.Anything, mock.Anything).
		Return(proofBatch(cb, 10, leaf, otherLeaf, false, coinA), nil)

	session := NewSyncSession(ctx, peer, false, s.interests)

	err := s.syncToPeer(ctx, session, cb.Peak(), SyncExtend)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInclusionProofFailed))

	// Nothing from the poisoned batch was committed.
	count, err := coinStore.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	peak, err := chainStore.GetBestPeak(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(9), peak.Height)
}

func TestSyncShortBacktrack(t *testing.T) {
	ctx := context.Background()

	s, chainStore, coinStore := newTestServer(t, "syncbacktrack", nil)

	coinA := model.NewTestCoin(1, 500)
	leaf := *coinA.PuzzleHash
	coinID := coinA.ID()

	cb := model.NewChainBuilder()
	cb.Extend(10)
	cb.AddBlock(model.WithAdditionLeaves(leaf))
	cb.AddBlock(model.WithRemovalLeaves(coinID))

	// Local view stops at height 8; the peer announces height 11.
	seedChain(t, chainStore, cb, 8)

	s.interests.AddPuzzleHashes([]chainhash.Hash{leaf})
	s.interests.AddCoinIDs([]chainhash.Hash{coinID})

	peer := &MockWalletPeer{}
	peer.On("RequestBlockHeader", mock.Anything, uint32(11)).Return(cb.BlockAt(11), nil)
	peer.On("RequestBlockHeader", mock.Anything, uint32(10)).Return(cb.BlockAt(10), nil)
	peer.On("RequestBlockHeader", mock.Anything, uint32(9)).Return(cb.BlockAt(9), nil)
	peer.On("RequestAdditions", mock.Anything, uint32(10), mock.Anything, mock.Anything).
		Return(proofBatch(cb, 10, leaf, leaf, false, coinA), nil)
	peer.On("RequestRemovals", mock.Anything, uint32(10), mock.Anything, mock.Anything).
		Return(&model.CoinProofBatch{}, nil)
	peer.On("RequestAdditions", mock.Anything, uint32(11), mock.Anything, mock.Anything).
		Return(&model.CoinProofBatch{}, nil)
	peer.On("RequestRemovals", mock.Anything, uint32(11), mock.Anything, mock.Anything).
		Return(proofBatch(cb, 11, coinID, coinID, true, coinA), nil)

	session := NewSyncSession(ctx, peer, false, s.interests)

	require.NoError(t, s.syncToPeer(ctx, session, cb.Peak(), SyncShortBacktrack))

	state, err := coinStore.GetCoinState(ctx, coinID)
	require.NoError(t, err)
	require.Equal(t, uint32(10), *state.CreatedHeight)
	require.NotNil(t, state.SpentHeight)
	require.Equal(t, uint32(11), *state.SpentHeight)

	peak, err := chainStore.GetBestPeak(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(11), peak.Height)
}

func TestSyncFullResync(t *testing.T) {
	ctx := context.Background()

	s, chainStore, coinStore := newTestServer(t, "syncfull", nil)

	coinA := model.NewTestCoin(1, 2500)
	leaf := *coinA.PuzzleHash

	cb := model.NewChainBuilder()
	cb.Extend(29)
	cb.AddBlock(model.WithAdditionLeaves(leaf))

	wp := cb.WeightProof(10, 10)

	s.interests.AddPuzzleHashes([]chainhash.Hash{leaf})

	peer := &MockWalletPeer{}
	peer.On("RequestProofOfWeight", mock.Anything, uint32(29), mock.Anything).Return(wp, nil)
	peer.On("RegisterInterestInPuzzleHashes", mock.Anything, mock.Anything, uint32(0)).
		Return([]*model.CoinState{{Coin: coinA, CreatedHeight: model.Uint32Ptr(29)}}, nil)
	peer.On("RegisterInterestInCoins", mock.Anything, mock.Anything, uint32(0)).
		Return([]*model.CoinState{}, nil)
	peer.On("RequestAdditions", mock.Anything, uint32(29), mock.Anything, mock.Anything).
		Return(proofBatch(cb, 29, leaf, leaf, false, coinA), nil)

	session := NewSyncSession(ctx, peer, false, s.interests)

	require.NoError(t, s.syncToPeer(ctx, session, cb.Peak(), SyncFullResync))

	state, err := coinStore.GetCoinState(ctx, coinA.ID())
	require.NoError(t, err)
	require.Equal(t, uint32(29), *state.CreatedHeight)

	peak, err := chainStore.GetBestPeak(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(29), peak.Height)
	require.True(t, peak.Hash.IsEqual(cb.Tip().Hash()))

	summaries, err := chainStore.GetSubEpochSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	// The proof's window headers were persisted.
	_, err = chainStore.GetHeaderByHeight(ctx, 25)
	require.NoError(t, err)
}

func TestSyncFullResyncTrustedPeer(t *testing.T) {
	ctx := context.Background()

	s, chainStore, coinStore := newTestServer(t, "syncfulltrusted", nil)

	coinA := model.NewTestCoin(1, 2500)
	leaf := *coinA.PuzzleHash

	cb := model.NewChainBuilder()
	cb.Extend(29)
	cb.AddBlock(model.WithAdditionLeaves(leaf))

	s.interests.AddPuzzleHashes([]chainhash.Hash{leaf})

	// No proof-of-weight, additions or header expectations: a trusted peer
	// must not be asked for any of them, and the mock panics if it is.
	peer := &MockWalletPeer{}
	peer.On("RegisterInterestInPuzzleHashes", mock.Anything, mock.Anything, uint32(0)).
		Return([]*model.CoinState{{Coin: coinA, CreatedHeight: model.Uint32Ptr(29)}}, nil)
	peer.On("RegisterInterestInCoins", mock.Anything, mock.Anything, uint32(0)).
		Return([]*model.CoinState{}, nil)

	session := NewSyncSession(ctx, peer, true, s.interests)

	require.NoError(t, s.syncToPeer(ctx, session, cb.Peak(), SyncFullResync))

	// Same coin state as the untrusted path would produce.
	state, err := coinStore.GetCoinState(ctx, coinA.ID())
	require.NoError(t, err)
	require.Equal(t, uint32(29), *state.CreatedHeight)

	peak, err := chainStore.GetBestPeak(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(29), peak.Height)
}

func TestSyncFullResyncRejectsTamperedInclusionProof(t *testing.T) {
	ctx := context.Background()

	s, _, coinStore := newTestServer(t, "syncfulltamper", nil)

	coinA := model.NewTestCoin(1, 2500)
	leaf := *coinA.PuzzleHash
	otherLeaf := chainhash.HashH([]byte("decoy"))

	cb := model.NewChainBuilder()
	cb.Extend(29)
	cb.AddBlock(model.WithAdditionLeaves(leaf, otherLeaf))

	wp := cb.WeightProof(10, 10)

	s.interests.AddPuzzleHashes([]chainhash.Hash{leaf})

	peer := &MockWalletPeer{}
	peer.On("RequestProofOfWeight", mock.Anything, uint32(29), mock.Anything).Return(wp, nil)
	peer.On("RegisterInterestInPuzzleHashes", mock.Anything, mock.Anything, uint32(0)).
		Return([]*model.CoinState{{Coin: coinA, CreatedHeight: model.Uint32Ptr(29)}}, nil)
	peer.On("RegisterInterestInCoins", mock.Anything, mock.Anything, uint32(0)).
		Return([]*model.CoinState{}, nil)
	peer.On("RequestAdditions", mock.Anything, uint32(29), mock.Anything, mock.Anything).
		Return(proofBatch(cb, 29, leaf, otherLeaf, false, coinA), nil)

	session := NewSyncSession(ctx, peer, false, s.interests)

	err := s.syncToPeer(ctx, session, cb.Peak(), SyncFullResync)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInclusionProofFailed))

	count, err := coinStore.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestSyncFullResyncReentry(t *testing.T) {
	ctx := context.Background()

	coinA := model.NewTestCoin(1, 2500)
	leaf := *coinA.PuzzleHash

	cb := model.NewChainBuilder()
	cb.Extend(29)
	cb.AddBlock(model.WithAdditionLeaves(leaf))

	wp := cb.WeightProof(10, 10)

	// The proof must be validated exactly once: the second run hits the
	// content-addressed proof cache.
	wpv := &weightproof.Mock{}
	wpv.On("ValidateWeightProof", mock.Anything, mock.Anything, mock.Anything).
		Return(&weightproof.ValidationResult{
			Valid:         true,
			ForkPoint:     0,
			SubEpochs:     wp.SubEpochs,
			RecentHeaders: wp.RecentHeaders,
			TipHeight:     wp.TipHeight,
			TipWeight:     wp.TotalWeight,
		}, nil).
		Once()

	s, _, coinStore := newTestServer(t, "syncreentry", wpv)

	s.interests.AddPuzzleHashes([]chainhash.Hash{leaf})

	peer := &MockWalletPeer{}
	peer.On("RequestProofOfWeight", mock.Anything, uint32(29), mock.Anything).Return(wp, nil)
	peer.On("RegisterInterestInPuzzleHashes", mock.Anything, mock.Anything, uint32(0)).
		Return([]*model.CoinState{{Coin: coinA, CreatedHeight: model.Uint32Ptr(29)}}, nil)
	peer.On("RegisterInterestInCoins", mock.Anything, mock.Anything, uint32(0)).
		Return([]*model.CoinState{}, nil)

	// The re-entered sync hits the proof cache and must subscribe from the
	// recomputed fork point, which by then is the committed tip's sub-epoch
	// end, not the stale zero of the first validation.
	peer.On("RegisterInterestInPuzzleHashes", mock.Anything, mock.Anything, uint32(29)).
		Return([]*model.CoinState{{Coin: coinA, CreatedHeight: model.Uint32Ptr(29)}}, nil)
	peer.On("RegisterInterestInCoins", mock.Anything, mock.Anything, uint32(29)).
		Return([]*model.CoinState{}, nil)

	// The creation proof is fetched exactly once; on re-entry the stored
	// record short-circuits validation with no network traffic.
	peer.On("RequestAdditions", mock.Anything, uint32(29), mock.Anything, mock.Anything).
		Return(proofBatch(cb, 29, leaf, leaf, false, coinA), nil).
		Once()

	session := NewSyncSession(ctx, peer, false, s.interests)
	require.NoError(t, s.syncToPeer(ctx, session, cb.Peak(), SyncFullResync))

	// Simulate an interrupted sync being re-entered with a fresh session.
	session2 := NewSyncSession(ctx, peer, false, s.interests)
	require.NoError(t, s.syncToPeer(ctx, session2, cb.Peak(), SyncFullResync))

	count, err := coinStore.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	wpv.AssertExpectations(t)
	peer.AssertExpectations(t)
}

func TestSyncSubscriptionBatching(t *testing.T) {
	ctx := context.Background()

	s, _, _ := newTestServer(t, "syncsubbatch", nil)

	// Five watched puzzle hashes with a batch size of two: exactly three
	// registration requests, then the loop reaches its fixed point.
	hashes := make([]chainhash.Hash, 5)
	for i := range hashes {
		hashes[i] = chainhash.HashH([]byte{byte(i)})
	}

	s.interests.AddPuzzleHashes(hashes)

	cb := model.NewChainBuilder()
	cb.Extend(3)

	peer := &MockWalletPeer{}
	peer.On("RegisterInterestInPuzzleHashes", mock.Anything, mock.Anything, uint32(0)).
		Return([]*model.CoinState{}, nil).
		Times(3)

	session := NewSyncSession(ctx, peer, true, s.interests)

	require.NoError(t, s.syncToPeer(ctx, session, cb.Peak(), SyncFullResync))

	peer.AssertExpectations(t)
}
