package model

import (
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/errors"
)

// CoinState is a peer's claim about a coin: the height it was created at and,
// optionally, the height it was spent at. Both heights nil is a contract
// violation, as is a spend before creation.
type CoinState struct {
	Coin          *Coin
	CreatedHeight *uint32
	SpentHeight   *uint32
}

// Validate enforces the CoinState invariants. A state with neither height is
// invalid, as is a state that is spent but never created, or spent before it
// was created. These are contract violations by the sender, not proofs of
// dishonesty; provable lies are detected later against the chain.
func (cs *CoinState) Validate() error {
	if cs.Coin == nil {
		return errors.NewInvalidArgumentError("coin state has no coin")
	}

	if cs.CreatedHeight == nil && cs.SpentHeight == nil {
		return errors.NewInvalidArgumentError("coin state %s has neither created nor spent height", cs.Coin.ID().String())
	}

	if cs.CreatedHeight == nil {
		return errors.NewInvalidArgumentError("coin state %s reports spent height without created height", cs.Coin.ID().String())
	}

	if cs.SpentHeight != nil && *cs.CreatedHeight > *cs.SpentHeight {
		return errors.NewInvalidArgumentError("coin state %s created at %d after spent at %d", cs.Coin.ID().String(), *cs.CreatedHeight, *cs.SpentHeight)
	}

	return nil
}

// Hash is the content hash of the coin state, used for per-session
// validated-state dedup.
func (cs *CoinState) Hash() chainhash.Hash {
	buf := make([]byte, 0, 42)

	coinID := cs.Coin.ID()
	buf = append(buf, coinID.CloneBytes()...)

	buf = appendOptionalHeight(buf, cs.CreatedHeight)
	buf = appendOptionalHeight(buf, cs.SpentHeight)

	return chainhash.HashH(buf)
}

// Equal reports whether the two states describe the same coin with identical
// created and spent heights.
func (cs *CoinState) Equal(other *CoinState) bool {
	if other == nil {
		return false
	}

	if cs.Coin.ID() != other.Coin.ID() {
		return false
	}

	return heightsEqual(cs.CreatedHeight, other.CreatedHeight) && heightsEqual(cs.SpentHeight, other.SpentHeight)
}

type coinStateJSON struct {
	Coin          *Coin   `json:"coin"`
	CreatedHeight *uint32 `json:"created_height"`
	SpentHeight   *uint32 `json:"spent_height"`
}

func (cs *CoinState) MarshalJSON() ([]byte, error) {
	return json.Marshal(&coinStateJSON{
		Coin:          cs.Coin,
		CreatedHeight: cs.CreatedHeight,
		SpentHeight:   cs.SpentHeight,
	})
}

func (cs *CoinState) UnmarshalJSON(b []byte) error {
	var cj coinStateJSON
	if err := json.Unmarshal(b, &cj); err != nil {
		return errors.NewInvalidArgumentError("failed to unmarshal coin state", err)
	}

	cs.Coin = cj.Coin
	cs.CreatedHeight = cj.CreatedHeight
	cs.SpentHeight = cj.SpentHeight

	return nil
}

func appendOptionalHeight(buf []byte, height *uint32) []byte {
	if height == nil {
		return append(buf, 0)
	}

	h := make([]byte, 4)
	binary.LittleEndian.PutUint32(h, *height)

	return append(append(buf, 1), h...)
}

func heightsEqual(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

// Uint32Ptr returns a pointer to h. Heights are optional in most of the coin
// state model, so this shows up everywhere.
func Uint32Ptr(h uint32) *uint32 {
	return &h
}
