package walletapi

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/services/p2p"
	"github.com/verdant-network/walletnode/services/walletsync"
	"github.com/verdant-network/walletnode/services/weightproof"
	"github.com/verdant-network/walletnode/settings"
	chainsql "github.com/verdant-network/walletnode/stores/chain/sql"
	coinmemory "github.com/verdant-network/walletnode/stores/coin/memory"
	"github.com/verdant-network/walletnode/ulogger"
)

type apiHarness struct {
	server     *Server
	syncServer *walletsync.Server
	chainStore *chainsql.SQL
	coinStore  *coinmemory.Memory
	settings   *settings.Settings
}

func newAPIHarness(t *testing.T, name string, peers PeerProvider) *apiHarness {
	t.Helper()

	logger := ulogger.TestLogger{}
	tSettings := settings.NewSettings()

	storeURL, err := url.Parse("sqlitememory:///" + name)
	require.NoError(t, err)

	chainStore, err := chainsql.New(logger, storeURL, tSettings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = chainStore.Close() })

	coinStore := coinmemory.New(logger)

	wpv := weightproof.NewValidator(logger, tSettings)
	syncServer := walletsync.NewServer(logger, tSettings, chainStore, coinStore, wpv, nil, nil)

	server := NewServer(logger, tSettings, syncServer, chainStore, coinStore, peers)

	return &apiHarness{
		server:     server,
		syncServer: syncServer,
		chainStore: chainStore,
		coinStore:  coinStore,
		settings:   tSettings,
	}
}

func (h *apiHarness) do(method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echoHeaderContentType, "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rec := httptest.NewRecorder()
	h.server.e.ServeHTTP(rec, req)

	return rec
}

const echoHeaderContentType = "Content-Type"

func testHash(seed byte) *chainhash.Hash {
	var h chainhash.Hash
	for i := range h {
		h[i] = seed
	}

	return &h
}

func uint32Ptr(v uint32) *uint32 { return &v }

func seedCoin(t *testing.T, h *apiHarness, seed byte, created uint32, spent *uint32) *model.CoinState {
	t.Helper()

	state := &model.CoinState{
		Coin: &model.Coin{
			ParentCoinID: testHash(seed),
			PuzzleHash:   testHash(seed + 1),
			Amount:       1000,
		},
		CreatedHeight: uint32Ptr(created),
		SpentHeight:   spent,
	}

	_, err := h.coinStore.UpsertCoinStates(context.Background(), []*model.CoinState{state})
	require.NoError(t, err)

	return state
}

func TestAlive(t *testing.T) {
	h := newAPIHarness(t, "apialive", nil)

	rec := h.do(http.MethodGet, "/alive", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestHealth(t *testing.T) {
	h := newAPIHarness(t, "apihealth", nil)

	rec := h.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetPeak(t *testing.T) {
	h := newAPIHarness(t, "apipeak", nil)

	t.Run("before first sync", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/v1/peak", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("after sync", func(t *testing.T) {
		peak := &model.Peak{Hash: testHash(7), Height: 42, Weight: 420}
		require.NoError(t, h.chainStore.SetBestPeak(context.Background(), peak))

		rec := h.do(http.MethodGet, "/api/v1/peak", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got peakJSON
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, peak.Hash.String(), got.Hash)
		assert.Equal(t, uint32(42), got.Height)
		assert.Equal(t, uint64(420), got.Weight)
	})
}

func TestGetSyncStatus(t *testing.T) {
	h := newAPIHarness(t, "apistatus", nil)

	rec := h.do(http.MethodGet, "/api/v1/sync/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status walletsync.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "IDLE", status.State)
	assert.Zero(t, status.ActiveSessions)
}

func TestTriggerResync(t *testing.T) {
	h := newAPIHarness(t, "apiresync", nil)

	rec := h.do(http.MethodPost, "/api/v1/resync", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "scheduled")
}

func TestGetCoins(t *testing.T) {
	h := newAPIHarness(t, "apicoins", nil)

	unspentState := seedCoin(t, h, 10, 100, nil)
	spentState := seedCoin(t, h, 20, 100, uint32Ptr(110))

	t.Run("by puzzle hash", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/v1/coins?puzzle_hash="+unspentState.Coin.PuzzleHash.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp coinsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Count)
		assert.True(t, unspentState.Equal(resp.Coins[0]))
	})

	t.Run("unspent only", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/v1/coins?unspent=true", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp coinsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Count)
		assert.Nil(t, resp.Coins[0].SpentHeight)
	})

	t.Run("spent coin excluded by puzzle hash filter with unspent", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/v1/coins?puzzle_hash="+spentState.Coin.PuzzleHash.String()+"&unspent=true", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp coinsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Zero(t, resp.Count)
	})

	t.Run("bad puzzle hash", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/v1/coins?puzzle_hash=zzz", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetCoin(t *testing.T) {
	h := newAPIHarness(t, "apicoin", nil)

	state := seedCoin(t, h, 30, 200, nil)
	coinID := state.Coin.ID()

	t.Run("found", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/v1/coin/"+coinID.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got model.CoinState
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.True(t, state.Equal(&got))
	})

	t.Run("not found", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/v1/coin/"+testHash(99).String(), "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/v1/coin/nothex", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetCoinsCSV(t *testing.T) {
	h := newAPIHarness(t, "apicsv", nil)

	state := seedCoin(t, h, 40, 300, uint32Ptr(310))
	coinID := state.Coin.ID()

	rec := h.do(http.MethodGet, "/api/v1/coins/csv?puzzle_hash="+state.Coin.PuzzleHash.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "coin_id")
	assert.Contains(t, body, coinID.String())
	assert.Contains(t, body, "300")
	assert.Contains(t, body, "310")
}

func TestInterests(t *testing.T) {
	h := newAPIHarness(t, "apiinterests", nil)

	ph := testHash(50).String()
	coinID := testHash(51).String()

	body := fmt.Sprintf(`{"puzzle_hashes":[%q],"coin_ids":[%q]}`, ph, coinID)

	rec := h.do(http.MethodPost, "/api/v1/interests", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var added map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.Equal(t, 1, added["added_puzzle_hashes"])
	assert.Equal(t, 1, added["added_coin_ids"])

	// re-registering the same interest is a no-op
	rec = h.do(http.MethodPost, "/api/v1/interests", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.Zero(t, added["added_puzzle_hashes"])

	rec = h.do(http.MethodGet, "/api/v1/interests", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got interestsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, got.PuzzleHashes, ph)
	assert.Contains(t, got.CoinIDs, coinID)

	t.Run("bad hash rejected", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/api/v1/interests", `{"puzzle_hashes":["xyz"]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

type fakePeerProvider struct {
	peers  []p2p.PeerInfo
	banned map[string]time.Time
}

func (f *fakePeerProvider) Peers() []p2p.PeerInfo             { return f.peers }
func (f *fakePeerProvider) BannedPeers() map[string]time.Time { return f.banned }
func (f *fakePeerProvider) NodeID() string                    { return "12D3KooWTest" }

func TestGetPeers(t *testing.T) {
	t.Run("without gossip service", func(t *testing.T) {
		h := newAPIHarness(t, "apipeersnil", nil)

		rec := h.do(http.MethodGet, "/api/v1/peers", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp peersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Peers)
	})

	t.Run("with peers", func(t *testing.T) {
		provider := &fakePeerProvider{
			peers:  []p2p.PeerInfo{{ID: "peer1", DataHubURL: "http://peer1:8090"}},
			banned: map[string]time.Time{"liar": time.Now().Add(time.Hour)},
		}

		h := newAPIHarness(t, "apipeers", provider)

		rec := h.do(http.MethodGet, "/api/v1/peers", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp peersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Peers, 1)
		assert.Equal(t, "peer1", resp.Peers[0].ID)
		assert.Equal(t, "12D3KooWTest", resp.NodeID)

		rec = h.do(http.MethodGet, "/api/v1/peers/banned", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var banned map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &banned))
		assert.Contains(t, banned, "liar")
	})
}

func TestSignedResponses(t *testing.T) {
	logger := ulogger.TestLogger{}
	tSettings := settings.NewSettings()

	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}

	privKey := ed25519.NewKeyFromSeed(seed)
	tSettings.API.PrivateKey = hex.EncodeToString(privKey)

	storeURL, err := url.Parse("sqlitememory:///apisigned")
	require.NoError(t, err)

	chainStore, err := chainsql.New(logger, storeURL, tSettings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = chainStore.Close() })

	coinStore := coinmemory.New(logger)
	wpv := weightproof.NewValidator(logger, tSettings)
	syncServer := walletsync.NewServer(logger, tSettings, chainStore, coinStore, wpv, nil, nil)

	server := NewServer(logger, tSettings, syncServer, chainStore, coinStore, nil)
	require.NotNil(t, server.privKey)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	rec := httptest.NewRecorder()
	server.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	sigHex := rec.Header().Get("X-Signature")
	require.NotEmpty(t, sigHex)

	signature, err := hex.DecodeString(sigHex)
	require.NoError(t, err)

	hash := sha256.Sum256(rec.Body.Bytes())
	assert.True(t, ed25519.Verify(privKey.Public().(ed25519.PublicKey), hash[:], signature))
}
