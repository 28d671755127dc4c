package walletsync

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/mock"
	"github.com/verdant-network/walletnode/model"
)

// MockWalletPeer is a testify mock of WalletPeerI.
type MockWalletPeer struct {
	mock.Mock

	ID  string
	URL string
}

func (m *MockWalletPeer) PeerID() string {
	if m.ID != "" {
		return m.ID
	}

	return "mock-peer"
}

func (m *MockWalletPeer) BaseURL() string {
	if m.URL != "" {
		return m.URL
	}

	return "http://mock-peer"
}

func (m *MockWalletPeer) RequestBlockHeader(ctx context.Context, height uint32) (*model.HeaderBlock, error) {
	args := m.Called(ctx, height)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.HeaderBlock), args.Error(1)
}

func (m *MockWalletPeer) RequestHeaderBlocks(ctx context.Context, start, end uint32) ([]*model.HeaderBlock, error) {
	args := m.Called(ctx, start, end)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*model.HeaderBlock), args.Error(1)
}

func (m *MockWalletPeer) RequestProofOfWeight(ctx context.Context, height uint32, hash *chainhash.Hash) (*model.WeightProof, error) {
	args := m.Called(ctx, height, hash)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.WeightProof), args.Error(1)
}

func (m *MockWalletPeer) RequestSESHashes(ctx context.Context, start, end uint32) ([]*model.SubEpochSummary, error) {
	args := m.Called(ctx, start, end)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*model.SubEpochSummary), args.Error(1)
}

func (m *MockWalletPeer) RegisterInterestInPuzzleHashes(ctx context.Context, puzzleHashes []chainhash.Hash, minHeight uint32) ([]*model.CoinState, error) {
	args := m.Called(ctx, puzzleHashes, minHeight)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*model.CoinState), args.Error(1)
}

func (m *MockWalletPeer) RegisterInterestInCoins(ctx context.Context, coinIDs []chainhash.Hash, minHeight uint32) ([]*model.CoinState, error) {
	args := m.Called(ctx, coinIDs, minHeight)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*model.CoinState), args.Error(1)
}

func (m *MockWalletPeer) RequestAdditions(ctx context.Context, height uint32, headerHash *chainhash.Hash, puzzleHashes []chainhash.Hash) (*model.CoinProofBatch, error) {
	args := m.Called(ctx, height, headerHash, puzzleHashes)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.CoinProofBatch), args.Error(1)
}

func (m *MockWalletPeer) RequestRemovals(ctx context.Context, height uint32, headerHash *chainhash.Hash, coinIDs []chainhash.Hash) (*model.CoinProofBatch, error) {
	args := m.Called(ctx, height, headerHash, coinIDs)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*model.CoinProofBatch), args.Error(1)
}
