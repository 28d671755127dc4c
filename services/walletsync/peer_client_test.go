package walletsync

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/ulogger"
)

const testPeerURL = "http://peer1.test:8090"

func newTestPeerClient(t *testing.T) *PeerClient {
	t.Helper()

	tSettings := settings.NewSettings()
	tSettings.WalletSync.BreakerFailureThreshold = 3
	tSettings.WalletSync.BreakerResetTimeout = time.Minute
	tSettings.WalletSync.RequestTimeout = 5 * time.Second

	return NewPeerClient(ulogger.TestLogger{}, tSettings, "peer1", testPeerURL)
}

func TestPeerClientRequestBlockHeader(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	cb := model.NewChainBuilder()
	cb.Extend(6)
	want := cb.BlockAt(5)

	httpmock.RegisterResponder(http.MethodGet, testPeerURL+"/block_header/5",
		httpmock.NewBytesResponder(http.StatusOK, want.Bytes()))

	client := newTestPeerClient(t)

	hb, err := client.RequestBlockHeader(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, want.Hash().IsEqual(hb.Hash()))
	assert.Equal(t, uint32(5), hb.Height)
}

func TestPeerClientRequestBlockHeaderUnparseable(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, testPeerURL+"/block_header/5",
		httpmock.NewBytesResponder(http.StatusOK, []byte("junk")))

	client := newTestPeerClient(t)

	_, err := client.RequestBlockHeader(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNetworkInvalidResp))
}

func TestDecodeHeaderBatchRejectsForgedCount(t *testing.T) {
	// A count far beyond what the body could hold must be rejected before
	// any allocation sized by it.
	b := binary.LittleEndian.AppendUint32(nil, 1<<30)

	_, err := decodeHeaderBatch(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestPeerClientRequestHeaderBlocks(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	cb := model.NewChainBuilder()
	cb.Extend(10)
	blocks := cb.Blocks()[3:8]

	httpmock.RegisterResponder(http.MethodGet, testPeerURL+"/header_blocks/3/7",
		httpmock.NewBytesResponder(http.StatusOK, EncodeHeaderBatch(blocks)))

	client := newTestPeerClient(t)

	headers, err := client.RequestHeaderBlocks(context.Background(), 3, 7)
	require.NoError(t, err)
	require.Len(t, headers, 5)

	for i, hb := range headers {
		assert.True(t, blocks[i].Hash().IsEqual(hb.Hash()))
	}

	t.Run("inverted range never hits the network", func(t *testing.T) {
		before := httpmock.GetTotalCallCount()

		_, err := client.RequestHeaderBlocks(context.Background(), 7, 3)
		require.Error(t, err)
		assert.Equal(t, before, httpmock.GetTotalCallCount())
	})
}

func TestPeerClientRegisterInterest(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	coin := model.NewTestCoin(1, 1000)
	created := uint32(42)
	want := []*model.CoinState{{Coin: coin, CreatedHeight: &created}}

	httpmock.RegisterResponder(http.MethodPost, testPeerURL+"/register_interest/puzzle_hashes",
		func(req *http.Request) (*http.Response, error) {
			var body registerInterestRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}

			require.Equal(t, uint32(10), body.MinHeight)
			require.Len(t, body.Hashes, 1)
			require.Equal(t, coin.PuzzleHash.String(), body.Hashes[0])

			return httpmock.NewJsonResponse(http.StatusOK, want)
		})

	client := newTestPeerClient(t)

	states, err := client.RegisterInterestInPuzzleHashes(context.Background(), []chainhash.Hash{*coin.PuzzleHash}, 10)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.True(t, want[0].Equal(states[0]))
}

func TestPeerClientNotFound(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, testPeerURL+"/block_header/999",
		httpmock.NewStringResponder(http.StatusNotFound, "no such height"))

	client := newTestPeerClient(t)

	_, err := client.RequestBlockHeader(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestPeerClientCircuitBreakerOpens(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, testPeerURL+"/block_header/1",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	client := newTestPeerClient(t)

	for i := 0; i < 3; i++ {
		_, err := client.RequestBlockHeader(context.Background(), 1)
		require.Error(t, err, fmt.Sprintf("request %d should fail", i))
	}

	callsAtOpen := httpmock.GetTotalCallCount()

	// breaker is now open, requests are refused locally
	_, err := client.RequestBlockHeader(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
	assert.Equal(t, callsAtOpen, httpmock.GetTotalCallCount())
}
