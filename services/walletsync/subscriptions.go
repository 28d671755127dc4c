package walletsync

import (
	"sync"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/model"
)

// DeriverFn derives further puzzle hashes to watch, given the number already
// known. It must be bounded: returning nothing ends derivation. Hooked up by
// the wallet owner (key derivation stays outside this daemon).
type DeriverFn func(known int) []chainhash.Hash

// InterestRegistry is the wallet's set of watched puzzle hashes and coin IDs.
// Growth is monotone: entries are only ever added, which is what makes the
// subscription fixed-point loop terminate. Shared across sessions; sessions
// record their own registration watermarks.
type InterestRegistry struct {
	mu           sync.RWMutex
	puzzleHashes []chainhash.Hash
	puzzleSet    map[chainhash.Hash]struct{}
	coinIDs      []chainhash.Hash
	coinSet      map[chainhash.Hash]struct{}
	deriver      DeriverFn
}

// NewInterestRegistry creates an empty registry.
func NewInterestRegistry() *InterestRegistry {
	return &InterestRegistry{
		puzzleSet: make(map[chainhash.Hash]struct{}),
		coinSet:   make(map[chainhash.Hash]struct{}),
	}
}

// SetDeriver installs the optional puzzle hash deriver.
func (r *InterestRegistry) SetDeriver(fn DeriverFn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deriver = fn
}

// AddPuzzleHashes adds the given puzzle hashes and returns how many were new.
func (r *InterestRegistry) AddPuzzleHashes(hashes []chainhash.Hash) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0

	for _, ph := range hashes {
		if _, ok := r.puzzleSet[ph]; ok {
			continue
		}

		r.puzzleSet[ph] = struct{}{}
		r.puzzleHashes = append(r.puzzleHashes, ph)
		added++
	}

	return added
}

// AddCoinIDs adds the given coin IDs and returns how many were new.
func (r *InterestRegistry) AddCoinIDs(coinIDs []chainhash.Hash) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0

	for _, id := range coinIDs {
		if _, ok := r.coinSet[id]; ok {
			continue
		}

		r.coinSet[id] = struct{}{}
		r.coinIDs = append(r.coinIDs, id)
		added++
	}

	return added
}

// ObserveStates registers interest arising from received coin states: every
// reported coin ID is watched from now on, and the deriver (when installed)
// may extend the puzzle hash list. Returns how many new entries appeared.
func (r *InterestRegistry) ObserveStates(states []*model.CoinState) int {
	coinIDs := make([]chainhash.Hash, 0, len(states))
	for _, state := range states {
		coinIDs = append(coinIDs, state.Coin.ID())
	}

	added := r.AddCoinIDs(coinIDs)

	r.mu.RLock()
	deriver := r.deriver
	known := len(r.puzzleHashes)
	r.mu.RUnlock()

	if deriver != nil {
		if derived := deriver(known); len(derived) > 0 {
			added += r.AddPuzzleHashes(derived)
		}
	}

	return added
}

// PuzzleHashes returns a snapshot of the watched puzzle hashes, in insertion
// order.
func (r *InterestRegistry) PuzzleHashes() []chainhash.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]chainhash.Hash, len(r.puzzleHashes))
	copy(out, r.puzzleHashes)

	return out
}

// CoinIDs returns a snapshot of the watched coin IDs, in insertion order.
func (r *InterestRegistry) CoinIDs() []chainhash.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]chainhash.Hash, len(r.coinIDs))
	copy(out, r.coinIDs)

	return out
}

// WatchesPuzzleHash reports whether the puzzle hash is tracked.
func (r *InterestRegistry) WatchesPuzzleHash(ph chainhash.Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.puzzleSet[ph]

	return ok
}

// Size returns the number of watched puzzle hashes and coin IDs.
func (r *InterestRegistry) Size() (puzzleHashes, coinIDs int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.puzzleHashes), len(r.coinIDs)
}
