package p2p

import (
	"sort"
	"sync"
	"time"
)

// PeerInfo is what the daemon knows about one gossip peer.
type PeerInfo struct {
	ID               string    `json:"id"`
	DataHubURL       string    `json:"data_hub_url,omitempty"`
	ConnectedAt      time.Time `json:"connected_at"`
	LastAnnouncement time.Time `json:"last_announcement"`
	Announcements    int       `json:"announcements"`
}

// PeerRegistry is the bookkeeping map of peers seen on the peaks topic. Pure
// data, no policy; the ban manager decides consequences.
type PeerRegistry struct {
	mu        sync.RWMutex
	peers     map[string]*PeerInfo
	sizeLimit int
}

// NewPeerRegistry creates a registry bounded to sizeLimit entries.
func NewPeerRegistry(sizeLimit int) *PeerRegistry {
	if sizeLimit <= 0 {
		sizeLimit = 1024
	}

	return &PeerRegistry{
		peers:     make(map[string]*PeerInfo),
		sizeLimit: sizeLimit,
	}
}

// Touch records an announcement from the peer, creating it when new. When the
// registry is full the stalest peer is evicted.
func (pr *PeerRegistry) Touch(peerID, dataHubURL string) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	now := time.Now()

	info, ok := pr.peers[peerID]
	if !ok {
		if len(pr.peers) >= pr.sizeLimit {
			pr.evictStalest()
		}

		info = &PeerInfo{ID: peerID, ConnectedAt: now}
		pr.peers[peerID] = info
	}

	if dataHubURL != "" {
		info.DataHubURL = dataHubURL
	}

	info.LastAnnouncement = now
	info.Announcements++
}

// Remove drops the peer from the registry.
func (pr *PeerRegistry) Remove(peerID string) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	delete(pr.peers, peerID)
}

// Get returns a copy of the peer's info.
func (pr *PeerRegistry) Get(peerID string) (PeerInfo, bool) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	info, ok := pr.peers[peerID]
	if !ok {
		return PeerInfo{}, false
	}

	return *info, true
}

// List returns all known peers, most recently announcing first.
func (pr *PeerRegistry) List() []PeerInfo {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	out := make([]PeerInfo, 0, len(pr.peers))
	for _, info := range pr.peers {
		out = append(out, *info)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAnnouncement.After(out[j].LastAnnouncement)
	})

	return out
}

// Len returns the number of known peers.
func (pr *PeerRegistry) Len() int {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	return len(pr.peers)
}

func (pr *PeerRegistry) evictStalest() {
	var (
		stalest     string
		stalestTime time.Time
		first       = true
	)

	for peerID, info := range pr.peers {
		if first || info.LastAnnouncement.Before(stalestTime) {
			stalest = peerID
			stalestTime = info.LastAnnouncement
			first = false
		}
	}

	if stalest != "" {
		delete(pr.peers, stalest)
	}
}
