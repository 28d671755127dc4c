package p2p

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/verdant-network/walletnode/settings"
)

// BanReason categorizes why a peer received ban score points.
type BanReason int

const (
	ReasonUnknown BanReason = iota
	ReasonMalformedAnnouncement
	ReasonInvalidProof
	ReasonProtocolViolation
	ReasonSpam
)

func (r BanReason) String() string {
	switch r {
	case ReasonMalformedAnnouncement:
		return "malformed_announcement"
	case ReasonInvalidProof:
		return "invalid_proof"
	case ReasonProtocolViolation:
		return "protocol_violation"
	case ReasonSpam:
		return "spam"
	default:
		return "unknown"
	}
}

// banReasonFromText maps a free-form misbehavior description from the sync
// service onto a scored category. Provable lies score highest.
func banReasonFromText(reason string) BanReason {
	lower := strings.ToLower(reason)

	switch {
	case strings.Contains(lower, "proof"):
		return ReasonInvalidProof
	case strings.Contains(lower, "malformed"):
		return ReasonMalformedAnnouncement
	case strings.Contains(lower, "spam"):
		return ReasonSpam
	default:
		return ReasonProtocolViolation
	}
}

// BanScore holds the accumulated score and ban status for one peer. Scores
// decay over time so a peer can recover from transient problems; a provable
// lie puts it over the threshold in one step.
type BanScore struct {
	Score      int
	Banned     bool
	BanUntil   time.Time
	LastUpdate time.Time
	Reasons    []string
}

// BanEventHandler is notified when a peer crosses the ban threshold.
type BanEventHandler interface {
	OnPeerBanned(peerID string, until time.Time, reason string)
}

// PeerBanManager tracks ban scores for all known peers.
type PeerBanManager struct {
	ctx           context.Context
	mu            sync.RWMutex
	peerBanScores map[string]*BanScore
	reasonPoints  map[BanReason]int
	banThreshold  int
	banDuration   time.Duration
	decayInterval time.Duration
	decayAmount   int
	handler       BanEventHandler
}

// NewPeerBanManager creates the manager and starts its decay loop.
func NewPeerBanManager(ctx context.Context, handler BanEventHandler, tSettings *settings.Settings) *PeerBanManager {
	initPrometheusMetrics()

	m := &PeerBanManager{
		ctx:           ctx,
		peerBanScores: make(map[string]*BanScore),
		reasonPoints: map[BanReason]int{
			ReasonMalformedAnnouncement: 10,
			ReasonProtocolViolation:     20,
			ReasonSpam:                  50,
			// One provable lie is enough to ban with the default threshold.
			ReasonInvalidProof: 100,
		},
		banThreshold:  tSettings.P2P.BanThreshold,
		banDuration:   tSettings.P2P.BanDuration,
		decayInterval: time.Minute,
		decayAmount:   1,
		handler:       handler,
	}

	go func() {
		ticker := time.NewTicker(m.decayInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.cleanupBanScores()
			case <-m.ctx.Done():
				return
			}
		}
	}()

	return m
}

// AddScore applies decay, adds the penalty for the reason and bans the peer
// when the threshold is crossed. Returns the resulting score and ban status.
func (m *PeerBanManager) AddScore(peerID string, reason BanReason) (score int, banned bool) {
	m.mu.Lock()

	now := time.Now()

	entry, ok := m.peerBanScores[peerID]
	if !ok {
		entry = &BanScore{LastUpdate: now}
		m.peerBanScores[peerID] = entry
	}

	decaySteps := int(now.Sub(entry.LastUpdate) / m.decayInterval)
	if decaySteps > 0 {
		entry.Score -= decaySteps * m.decayAmount
		if entry.Score < 0 {
			entry.Score = 0
		}
	}

	entry.Score += m.reasonPoints[reason]
	entry.LastUpdate = now
	entry.Reasons = append(entry.Reasons, reason.String())

	newlyBanned := false

	if entry.Score >= m.banThreshold && !entry.Banned {
		entry.Banned = true
		entry.BanUntil = now.Add(m.banDuration)
		newlyBanned = true
	}

	score = entry.Score
	banned = entry.Banned
	until := entry.BanUntil

	m.mu.Unlock()

	if newlyBanned {
		prometheusP2PBansTotal.WithLabelValues(reason.String()).Inc()

		if m.handler != nil {
			m.handler.OnPeerBanned(peerID, until, reason.String())
		}
	}

	return score, banned
}

// IsBanned reports whether the peer is currently banned. An expired ban is
// cleared on the way out.
func (m *PeerBanManager) IsBanned(peerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.peerBanScores[peerID]
	if !ok || !entry.Banned {
		return false
	}

	if time.Now().After(entry.BanUntil) {
		entry.Banned = false
		entry.Score = 0

		return false
	}

	return true
}

// GetBanScore returns the current score and ban status for a peer.
func (m *PeerBanManager) GetBanScore(peerID string) (score int, banned bool, banUntil time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.peerBanScores[peerID]
	if !ok {
		return 0, false, time.Time{}
	}

	return entry.Score, entry.Banned, entry.BanUntil
}

// BannedPeers returns the peers currently banned and when each ban expires.
func (m *PeerBanManager) BannedPeers() map[string]time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	out := make(map[string]time.Time)

	for peerID, entry := range m.peerBanScores {
		if entry.Banned && entry.BanUntil.After(now) {
			out[peerID] = entry.BanUntil
		}
	}

	return out
}

// cleanupBanScores decays all scores and drops entries that reached zero with
// no active ban.
func (m *PeerBanManager) cleanupBanScores() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	for peerID, entry := range m.peerBanScores {
		decaySteps := int(now.Sub(entry.LastUpdate) / m.decayInterval)
		if decaySteps > 0 {
			entry.Score -= decaySteps * m.decayAmount
			if entry.Score < 0 {
				entry.Score = 0
			}

			entry.LastUpdate = now
		}

		if entry.Banned && now.After(entry.BanUntil) {
			entry.Banned = false
		}

		if entry.Score == 0 && !entry.Banned {
			delete(m.peerBanScores, peerID)
		}
	}
}
