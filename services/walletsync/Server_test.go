package walletsync

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/model"
)

type fakeBanHandler struct {
	mu          sync.Mutex
	scores      map[string]int
	disconnects []string
}

func newFakeBanHandler() *fakeBanHandler {
	return &fakeBanHandler{scores: make(map[string]int)}
}

func (f *fakeBanHandler) AddBanScore(peerID, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scores[peerID]++
}

func (f *fakeBanHandler) DisconnectPeer(peerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnects = append(f.disconnects, peerID)
}

func (f *fakeBanHandler) scoreFor(peerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.scores[peerID]
}

func (f *fakeBanHandler) disconnected(peerID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range f.disconnects {
		if id == peerID {
			return true
		}
	}

	return false
}

func startServer(t *testing.T, s *Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	readyCh := make(chan struct{})

	go func() {
		_ = s.Start(ctx, readyCh)
	}()

	select {
	case <-readyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("service did not become ready")
	}
}

func TestServerInitRejectsZeroThreshold(t *testing.T) {
	s, _, _ := newTestServer(t, "serverinit", nil)

	require.NoError(t, s.Init(context.Background()))

	s.settings.WalletSync.ShortSyncThreshold = 0
	require.Error(t, s.Init(context.Background()))
}

func TestServerStatusAndHealth(t *testing.T) {
	ctx := context.Background()

	s, _, _ := newTestServer(t, "serverstatus", nil)
	startServer(t, s)

	code, _, err := s.Health(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	code, _, err = s.Health(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	status, err := s.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, FSMStateIdle, status.State)
	assert.Nil(t, status.BestPeak)
	assert.Zero(t, status.ActiveSessions)
}

func TestServerBansMalformedAnnouncement(t *testing.T) {
	s, _, _ := newTestServer(t, "servermalformed", nil)

	fb := newFakeBanHandler()
	s.banHandler = fb

	startServer(t, s)

	s.OnNewPeak(&model.PeakAnnouncement{
		Hash:       "not a block hash",
		Height:     10,
		Weight:     100,
		PeerID:     "liar",
		DataHubURL: "http://liar",
	})

	require.Eventually(t, func() bool {
		return fb.scoreFor("liar") > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerDisconnectsFabricatedPeak(t *testing.T) {
	s, chainStore, _ := newTestServer(t, "serverfabricated", nil)

	fb := newFakeBanHandler()
	s.banHandler = fb

	cb := model.NewChainBuilder()
	cb.Extend(21)
	seedChain(t, chainStore, cb, 20)

	startServer(t, s)

	// Forty blocks of claimed height gain over five of weight cannot exist.
	s.OnNewPeak(&model.PeakAnnouncement{
		Hash:       chainhashString(t),
		Height:     60,
		Weight:     cb.Tip().Weight + 5,
		PeerID:     "fabricator",
		DataHubURL: "http://fabricator",
	})

	require.Eventually(t, func() bool {
		return fb.disconnected("fabricator")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerDedupesAnnouncements(t *testing.T) {
	s, chainStore, _ := newTestServer(t, "serverdedupe", nil)

	cb := model.NewChainBuilder()
	cb.Extend(21)
	seedChain(t, chainStore, cb, 20)

	startServer(t, s)

	// Announcing the local peak is a no-op; repeating it hits the dedup
	// cache before classification.
	pa := &model.PeakAnnouncement{
		Hash:       cb.Tip().Hash().String(),
		Height:     cb.Tip().Height,
		Weight:     cb.Tip().Weight,
		PeerID:     "steady",
		DataHubURL: "http://steady",
	}

	s.OnNewPeak(pa)
	s.OnNewPeak(pa)

	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, s.Sessions())
	assert.Equal(t, FSMStateIdle, s.FSMState())
}

func chainhashString(t *testing.T) string {
	t.Helper()

	cb := model.NewChainBuilder()
	cb.Extend(1)

	return cb.Tip().Hash().String()
}
