package walletsync

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"
	"github.com/looplab/fsm"
	"github.com/ordishs/gocore"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/services/weightproof"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/stores/chain"
	"github.com/verdant-network/walletnode/stores/coin"
	"github.com/verdant-network/walletnode/ulogger"
	"github.com/verdant-network/walletnode/util/tracing"
)

// FSM states and events of the sync service.
const (
	FSMStateIdle     = "IDLE"
	FSMStateSyncing  = "SYNCING"
	FSMStateTracking = "TRACKING"

	fsmEventSync  = "sync"
	fsmEventTrack = "track"
	fsmEventReset = "reset"
)

// PeerBanHandlerI is the slice of the p2p ban manager the sync service needs:
// scoring misbehavior and forcing disconnects.
type PeerBanHandlerI interface {
	AddBanScore(peerID, reason string)
	DisconnectPeer(peerID string)
}

// PeerFactory creates a wallet protocol client for an announced peer.
type PeerFactory func(peerID, baseURL string) WalletPeerI

// Server is the sync orchestrator service: it consumes peak announcements and
// disconnect notifications, owns the per-peer sessions, and drives
// syncToPeer.
type Server struct {
	logger      ulogger.Logger
	settings    *settings.Settings
	chainStore  chain.Store
	coinStore   coin.Store
	wpValidator weightproof.ValidatorI
	banHandler  PeerBanHandlerI

	committer   *Committer
	reorg       *ReorgDetector
	csValidator *CoinStateValidator
	interests   *InterestRegistry

	newPeerFn PeerFactory

	peakCh       chan *model.PeakAnnouncement
	disconnectCh chan string

	sessionsMu sync.RWMutex
	sessions   map[string]*SyncSession

	peakDedup  *ttlcache.Cache[string, bool]
	proofCache *ttlcache.Cache[chainhash.Hash, *weightproof.ValidationResult]

	forceFullResync atomic.Bool

	fsmMu sync.Mutex
	fsm   *fsm.FSM

	stats *gocore.Stat
}

// NewServer wires the sync service. banHandler may be nil (standalone mode),
// kafkaCh may be nil (event publishing disabled).
func NewServer(logger ulogger.Logger, tSettings *settings.Settings, chainStore chain.Store, coinStore coin.Store,
	wpValidator weightproof.ValidatorI, banHandler PeerBanHandlerI, kafkaCh chan []byte) *Server {
	initPrometheusMetrics()

	proofTTL := tSettings.WalletSync.ProofCacheTTL
	if proofTTL <= 0 {
		proofTTL = 10 * time.Minute
	}

	s := &Server{
		logger:       logger,
		settings:     tSettings,
		chainStore:   chainStore,
		coinStore:    coinStore,
		wpValidator:  wpValidator,
		banHandler:   banHandler,
		committer:    NewCommitter(logger, tSettings, coinStore, kafkaCh),
		reorg:        NewReorgDetector(logger, tSettings, chainStore),
		csValidator:  NewCoinStateValidator(logger, tSettings, coinStore),
		interests:    NewInterestRegistry(),
		peakCh:       make(chan *model.PeakAnnouncement, 64),
		disconnectCh: make(chan string, 16),
		sessions:     make(map[string]*SyncSession),
		peakDedup: ttlcache.New[string, bool](
			ttlcache.WithTTL[string, bool](time.Minute),
		),
		proofCache: ttlcache.New[chainhash.Hash, *weightproof.ValidationResult](
			ttlcache.WithTTL[chainhash.Hash, *weightproof.ValidationResult](proofTTL),
		),
		stats: gocore.NewStat("walletsync"),
	}

	s.newPeerFn = func(peerID, baseURL string) WalletPeerI {
		return NewPeerClient(logger, tSettings, peerID, baseURL)
	}

	s.fsm = fsm.NewFSM(
		FSMStateIdle,
		fsm.Events{
			{Name: fsmEventSync, Src: []string{FSMStateIdle, FSMStateTracking}, Dst: FSMStateSyncing},
			{Name: fsmEventTrack, Src: []string{FSMStateSyncing}, Dst: FSMStateTracking},
			{Name: fsmEventReset, Src: []string{FSMStateIdle, FSMStateSyncing, FSMStateTracking}, Dst: FSMStateIdle},
		},
		fsm.Callbacks{},
	)

	return s
}

// SetPeerFactory overrides how peer clients are constructed. Used by tests
// and by deployments that front peers with something other than plain HTTP.
func (s *Server) SetPeerFactory(fn PeerFactory) {
	s.newPeerFn = fn
}

// SetBanHandler installs the ban handler after construction. The gossip
// service is built after the sync service and wires itself in through this.
func (s *Server) SetBanHandler(h PeerBanHandlerI) {
	s.banHandler = h
}

// Interests exposes the wallet's interest registry, seeded by the API.
func (s *Server) Interests() *InterestRegistry {
	return s.interests
}

// Health aggregates store health. With checkLiveness the stores are skipped
// and only process liveness is reported.
func (s *Server) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	if code, msg, err := s.chainStore.Health(ctx); err != nil {
		return code, msg, err
	}

	return s.coinStore.Health(ctx)
}

// Init validates configuration ahead of Start.
func (s *Server) Init(_ context.Context) error {
	if s.settings.WalletSync.ShortSyncThreshold == 0 {
		return errors.NewConfigurationError("walletsync requires a non-zero short sync threshold")
	}

	return nil
}

// Start runs the service loops until ctx is canceled. readyCh is closed once
// the service is consuming announcements.
func (s *Server) Start(ctx context.Context, readyCh chan<- struct{}) error {
	s.committer.Start(ctx)

	go s.peakDedup.Start()
	go s.proofCache.Start()
	go s.revalidateConflicts(ctx)

	close(readyCh)

	for {
		select {
		case <-ctx.Done():
			return nil

		case pa := <-s.peakCh:
			s.handlePeakAnnouncement(ctx, pa)

		case peerID := <-s.disconnectCh:
			s.teardownSession(peerID)
		}
	}
}

// Stop tears down all sessions.
func (s *Server) Stop(_ context.Context) error {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	for peerID, session := range s.sessions {
		session.Teardown()
		delete(s.sessions, peerID)
	}

	s.peakDedup.Stop()
	s.proofCache.Stop()

	return nil
}

// OnNewPeak is the entry point for peak announcements from gossip, the REST
// surface and tests. Non-blocking; a full queue drops the announcement (the
// next one re-triggers sync).
func (s *Server) OnNewPeak(pa *model.PeakAnnouncement) {
	select {
	case s.peakCh <- pa:
	default:
		s.logger.Warnf("peak queue full, dropping announcement %s from %s", pa.Hash, pa.PeerID)
	}
}

// OnPeerDisconnect tears down the peer's session at the next loop iteration.
func (s *Server) OnPeerDisconnect(peerID string) {
	select {
	case s.disconnectCh <- peerID:
	default:
		s.teardownSession(peerID)
	}
}

// ForceFullResync makes the next announcement classify as a full resync
// regardless of proximity. Exposed through the REST surface.
func (s *Server) ForceFullResync() {
	s.forceFullResync.Store(true)
}

// FSMState returns the current service state.
func (s *Server) FSMState() string {
	s.fsmMu.Lock()
	defer s.fsmMu.Unlock()

	return s.fsm.Current()
}

func (s *Server) fsmEvent(event string) {
	s.fsmMu.Lock()
	defer s.fsmMu.Unlock()

	if err := s.fsm.Event(context.Background(), event); err != nil {
		// Transitions rejected mid-overlap (two peers syncing) are expected.
		s.logger.Debugf("fsm event %s ignored: %v", event, err)
	}
}

// Status is the REST-facing snapshot of the sync service.
type Status struct {
	State          string      `json:"state"`
	BestPeak       *model.Peak `json:"best_peak,omitempty"`
	ActiveSessions int         `json:"active_sessions"`
	PuzzleHashes   int         `json:"puzzle_hashes"`
	CoinIDs        int         `json:"coin_ids"`
}

// GetStatus returns the current sync status.
func (s *Server) GetStatus(ctx context.Context) (*Status, error) {
	peak, err := s.chainStore.GetBestPeak(ctx)
	if err != nil {
		return nil, err
	}

	s.sessionsMu.RLock()
	active := 0

	for _, session := range s.sessions {
		if session.Syncing() {
			active++
		}
	}
	s.sessionsMu.RUnlock()

	puzzleHashes, coinIDs := s.interests.Size()

	return &Status{
		State:          s.FSMState(),
		BestPeak:       peak,
		ActiveSessions: active,
		PuzzleHashes:   puzzleHashes,
		CoinIDs:        coinIDs,
	}, nil
}

// Sessions returns a snapshot of the current session peer IDs.
func (s *Server) Sessions() []string {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	peers := make([]string, 0, len(s.sessions))
	for peerID := range s.sessions {
		peers = append(peers, peerID)
	}

	return peers
}

func (s *Server) handlePeakAnnouncement(ctx context.Context, pa *model.PeakAnnouncement) {
	ctx, _, deferFn := tracing.Tracer("walletsync").Start(ctx, "handlePeakAnnouncement",
		tracing.WithParentStat(s.stats),
	)
	defer deferFn()

	dedupKey := pa.PeerID + ":" + pa.Hash
	if s.peakDedup.Get(dedupKey) != nil {
		return
	}

	s.peakDedup.Set(dedupKey, true, ttlcache.DefaultTTL)

	announced, err := pa.Peak()
	if err != nil {
		s.logger.Warnf("dropping malformed peak announcement from %s: %v", pa.PeerID, err)
		s.reportMisbehavior(pa.PeerID, "malformed peak announcement")

		return
	}

	local, err := s.chainStore.GetBestPeak(ctx)
	if err != nil {
		s.logger.Errorf("failed to load local peak: %v", err)
		return
	}

	decision := s.reorg.Classify(ctx, local, announced, nil)

	if s.forceFullResync.CompareAndSwap(true, false) && decision != SyncNone && decision != SyncDisconnectPeer {
		decision = SyncFullResync
	}

	prometheusPeakAnnouncements.WithLabelValues(decision.String()).Inc()

	switch decision {
	case SyncNone:
		return

	case SyncDisconnectPeer:
		s.logger.Warnf("disconnecting unreliable peer %s", pa.PeerID)
		s.disconnect(pa.PeerID)

		return
	}

	session := s.getOrCreateSession(ctx, pa)

	if !session.TryBeginSync() {
		// A sync against this peer is already running; the merge semantics
		// make re-entry on the next announcement safe, so just drop this one.
		s.logger.Debugf("sync already in flight for peer %s, dropping announcement", pa.PeerID)
		return
	}

	go func() {
		defer session.EndSync()

		s.fsmEvent(fsmEventSync)

		if err := s.syncToPeer(session.Context(), session, announced, decision); err != nil {
			s.handleSyncError(session, err)
			return
		}

		s.fsmEvent(fsmEventTrack)
	}()
}

// handleSyncError converts a failed sync attempt into the right peer
// consequence: malicious-grade failures ban and disconnect, missing local
// blocks escalate on the next round, timeouts rely on idempotent re-entry.
func (s *Server) handleSyncError(session *SyncSession, err error) {
	peerID := session.Peer.PeerID()

	switch {
	case errors.Is(err, errors.ErrProofInvalid),
		errors.Is(err, errors.ErrInclusionProofFailed),
		errors.IsMaliciousResponseError(err):
		s.logger.Errorf("peer %s supplied provably bad data: %v", peerID, err)
		s.reportMisbehavior(peerID, err.Error())
		s.disconnect(peerID)
		s.teardownSession(peerID)

	case errors.Is(err, errors.ErrMissingLocalBlocks):
		s.logger.Infof("sync with %s needs a full resync: %v", peerID, err)
		s.ForceFullResync()

	case errors.IsContextError(err):
		s.logger.Debugf("sync with %s canceled", peerID)

	default:
		// Timeouts and transient network failures: abandon silently, the
		// next announcement re-enters the sync idempotently.
		s.logger.Warnf("sync with %s ended early: %v", peerID, err)
	}
}

func (s *Server) getOrCreateSession(ctx context.Context, pa *model.PeakAnnouncement) *SyncSession {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if session, ok := s.sessions[pa.PeerID]; ok {
		return session
	}

	peer := s.newPeerFn(pa.PeerID, pa.DataHubURL)
	session := NewSyncSession(ctx, peer, s.isTrustedPeer(pa.PeerID), s.interests)
	s.sessions[pa.PeerID] = session

	s.logger.Infof("session %s created for peer %s (trusted=%v)", session.ID, pa.PeerID, session.Trusted)

	return session
}

func (s *Server) teardownSession(peerID string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if session, ok := s.sessions[peerID]; ok {
		session.Teardown()
		delete(s.sessions, peerID)
		s.logger.Infof("session %s for peer %s torn down", session.ID, peerID)
	}
}

// isTrustedPeer reports whether the peer is in the configured trusted list.
// Trust is anchored by the operator's vetted configuration, not re-derived
// here.
func (s *Server) isTrustedPeer(peerID string) bool {
	for _, trusted := range s.settings.WalletSync.TrustedPeers {
		if trusted == peerID {
			return true
		}
	}

	return false
}

func (s *Server) reportMisbehavior(peerID, reason string) {
	if s.banHandler != nil {
		s.banHandler.AddBanScore(peerID, reason)
	}
}

func (s *Server) disconnect(peerID string) {
	if s.banHandler != nil {
		s.banHandler.DisconnectPeer(peerID)
	}
}

// revalidateConflicts consumes conflict batches from the committer and
// re-validates them against the best available session instead of blindly
// overwriting stored state.
func (s *Server) revalidateConflicts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case states := <-s.committer.Conflicts():
			session := s.anyValidatedSession()
			if session == nil {
				s.logger.Warnf("no session with a validated proof for %d conflicted states, deferring", len(states))
				continue
			}

			results, err := s.csValidator.ValidateStates(ctx, session, states)
			if err != nil {
				s.handleSyncError(session, err)
				continue
			}

			// Latency does not matter here, so re-validated states go through
			// the coalescing batcher instead of a synchronous commit.
			for _, state := range AcceptedStates(results) {
				s.committer.Put(state)
			}
		}
	}
}

func (s *Server) anyValidatedSession() *SyncSession {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	for _, session := range s.sessions {
		if _, result := session.Proof(); result != nil && result.Valid {
			return session
		}
	}

	return nil
}
