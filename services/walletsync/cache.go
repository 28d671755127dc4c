package walletsync

import (
	"encoding/binary"
	"sync"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/cespare/xxhash"
	"github.com/verdant-network/walletnode/model"
)

// PeerRequestCache memoizes responses within one sync session against one
// peer. It is owned exclusively by that session and discarded with it, so a
// lying peer can only ever poison its own cache. Headers are only admitted
// after they passed chain validation.
type PeerRequestCache struct {
	mu sync.RWMutex

	headers         map[uint32]*model.HeaderBlock
	sesResponses    map[uint64][]*model.SubEpochSummary
	headerBatches   map[uint64][]*model.HeaderBlock
	statesValidated map[chainhash.Hash]struct{}

	hits   uint64
	misses uint64
}

// NewPeerRequestCache creates an empty per-session cache.
func NewPeerRequestCache() *PeerRequestCache {
	return &PeerRequestCache{
		headers:         make(map[uint32]*model.HeaderBlock),
		sesResponses:    make(map[uint64][]*model.SubEpochSummary),
		headerBatches:   make(map[uint64][]*model.HeaderBlock),
		statesValidated: make(map[chainhash.Hash]struct{}),
	}
}

// rangeKey hashes a request identified by an operation tag and a height range.
func rangeKey(op string, start, end uint32) uint64 {
	buf := make([]byte, 0, len(op)+8)
	buf = append(buf, []byte(op)...)
	buf = binary.LittleEndian.AppendUint32(buf, start)
	buf = binary.LittleEndian.AppendUint32(buf, end)

	return xxhash.Sum64(buf)
}

// Header returns the chain-validated header at the given height, if cached.
func (c *PeerRequestCache) Header(height uint32) (*model.HeaderBlock, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hb, ok := c.headers[height]
	c.record(ok)

	return hb, ok
}

// SetHeader caches a header that has passed chain validation.
func (c *PeerRequestCache) SetHeader(hb *model.HeaderBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.headers[hb.Height] = hb
}

// SESResponse returns the cached sub-epoch response for the height range.
func (c *PeerRequestCache) SESResponse(start, end uint32) ([]*model.SubEpochSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, ok := c.sesResponses[rangeKey("ses", start, end)]
	c.record(ok)

	return resp, ok
}

// SetSESResponse caches a sub-epoch response.
func (c *PeerRequestCache) SetSESResponse(start, end uint32, resp []*model.SubEpochSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sesResponses[rangeKey("ses", start, end)] = resp
}

// HeaderBatch returns the cached header batch for the height range.
func (c *PeerRequestCache) HeaderBatch(start, end uint32) ([]*model.HeaderBlock, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch, ok := c.headerBatches[rangeKey("headers", start, end)]
	c.record(ok)

	return batch, ok
}

// SetHeaderBatch caches a header batch response.
func (c *PeerRequestCache) SetHeaderBatch(start, end uint32, batch []*model.HeaderBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.headerBatches[rangeKey("headers", start, end)] = batch
}

// StateValidated reports whether this coin state hash has already been proven
// in this session.
func (c *PeerRequestCache) StateValidated(stateHash chainhash.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.statesValidated[stateHash]
	c.record(ok)

	return ok
}

// MarkStateValidated records a proven coin state hash.
func (c *PeerRequestCache) MarkStateValidated(stateHash chainhash.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statesValidated[stateHash] = struct{}{}
}

// Stats returns the cache hit and miss counts.
func (c *PeerRequestCache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.hits, c.misses
}

func (c *PeerRequestCache) record(hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}
