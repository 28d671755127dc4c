package walletsync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/services/weightproof"
)

// SyncSession is the per-peer, per-sync-attempt aggregate: the request cache,
// the weight proof under validation and the interest watermarks. It is created
// when a peer's announced peak triggers a sync and torn down at completion or
// peer disconnect. Nothing in it is shared across peers.
type SyncSession struct {
	ID      uuid.UUID
	Peer    WalletPeerI
	Trusted bool

	Cache     *PeerRequestCache
	Interests *InterestRegistry

	mu          sync.RWMutex
	proof       *model.WeightProof
	proofResult *weightproof.ValidationResult
	startedAt   time.Time

	// registered-interest watermarks into the registry's monotone lists
	puzzleWatermark int
	coinWatermark   int

	syncing atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSyncSession creates a session for one sync attempt against one peer. The
// interest registry is shared wallet state; everything else is session-owned.
func NewSyncSession(parent context.Context, peer WalletPeerI, trusted bool, interests *InterestRegistry) *SyncSession {
	ctx, cancel := context.WithCancel(parent)

	return &SyncSession{
		ID:        uuid.New(),
		Peer:      peer,
		Trusted:   trusted,
		Cache:     NewPeerRequestCache(),
		Interests: interests,
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Context returns the session context, canceled on teardown.
func (s *SyncSession) Context() context.Context {
	return s.ctx
}

// SetProof records the weight proof and its validation result for this
// session.
func (s *SyncSession) SetProof(proof *model.WeightProof, result *weightproof.ValidationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.proof = proof
	s.proofResult = result
}

// Proof returns the session's validated weight proof and result, or nils.
func (s *SyncSession) Proof() (*model.WeightProof, *weightproof.ValidationResult) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.proof, s.proofResult
}

// Watermarks returns how many puzzle hashes and coin IDs of the registry
// have already been registered with this session's peer.
func (s *SyncSession) Watermarks() (puzzleHashes, coinIDs int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.puzzleWatermark, s.coinWatermark
}

// SetWatermarks advances the registered-interest watermarks.
func (s *SyncSession) SetWatermarks(puzzleHashes, coinIDs int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.puzzleWatermark = puzzleHashes
	s.coinWatermark = coinIDs
}

// Age returns how long the session has existed.
func (s *SyncSession) Age() time.Duration {
	return time.Since(s.startedAt)
}

// TryBeginSync marks the session as running a sync attempt. Returns false
// when one is already in flight; the caller then drops the announcement and
// relies on idempotent re-entry at the next one.
func (s *SyncSession) TryBeginSync() bool {
	return s.syncing.CompareAndSwap(false, true)
}

// EndSync clears the in-flight marker.
func (s *SyncSession) EndSync() {
	s.syncing.Store(false)
}

// Syncing reports whether a sync attempt is in flight.
func (s *SyncSession) Syncing() bool {
	return s.syncing.Load()
}

// Teardown cancels the session context. Any in-flight round trip aborts at
// its next suspension point; already committed coin states stay committed.
func (s *SyncSession) Teardown() {
	s.cancel()
}
