// Package model defines the wire and persistence types for the Verdant wallet
// node: coins and their reported states, proof-of-space header blocks,
// sub-epoch summaries and weight proofs.
package model

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	jsoniter "github.com/json-iterator/go"
	"github.com/verdant-network/walletnode/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Coin is a single UTXO-style coin. Its identity is derived from the parent
// coin, the puzzle hash controlling it and its amount, so a coin ID commits to
// the full coin.
type Coin struct {
	ParentCoinID *chainhash.Hash
	PuzzleHash   *chainhash.Hash
	Amount       uint64
}

// ID returns the coin identity hash: HashH(parent || puzzle || amount_le8).
func (c *Coin) ID() chainhash.Hash {
	buf := make([]byte, 0, 72)
	buf = append(buf, c.ParentCoinID.CloneBytes()...)
	buf = append(buf, c.PuzzleHash.CloneBytes()...)

	amount := make([]byte, 8)
	binary.LittleEndian.PutUint64(amount, c.Amount)
	buf = append(buf, amount...)

	return chainhash.HashH(buf)
}

type coinJSON struct {
	ParentCoinID string `json:"parent_coin_id"`
	PuzzleHash   string `json:"puzzle_hash"`
	Amount       uint64 `json:"amount"`
}

func (c *Coin) MarshalJSON() ([]byte, error) {
	return json.Marshal(&coinJSON{
		ParentCoinID: c.ParentCoinID.String(),
		PuzzleHash:   c.PuzzleHash.String(),
		Amount:       c.Amount,
	})
}

func (c *Coin) UnmarshalJSON(b []byte) error {
	var cj coinJSON
	if err := json.Unmarshal(b, &cj); err != nil {
		return errors.NewInvalidArgumentError("failed to unmarshal coin", err)
	}

	parent, err := chainhash.NewHashFromStr(cj.ParentCoinID)
	if err != nil {
		return errors.NewInvalidArgumentError("invalid parent coin id %q", cj.ParentCoinID, err)
	}

	puzzle, err := chainhash.NewHashFromStr(cj.PuzzleHash)
	if err != nil {
		return errors.NewInvalidArgumentError("invalid puzzle hash %q", cj.PuzzleHash, err)
	}

	c.ParentCoinID = parent
	c.PuzzleHash = puzzle
	c.Amount = cj.Amount

	return nil
}

// NewHashFromHex is a convenience wrapper used throughout the API layer where
// hashes arrive as hex strings.
func NewHashFromHex(s string) (*chainhash.Hash, error) {
	if _, err := hex.DecodeString(s); err != nil {
		return nil, errors.NewInvalidArgumentError("invalid hash hex %q", s, err)
	}

	return chainhash.NewHashFromStr(s)
}
