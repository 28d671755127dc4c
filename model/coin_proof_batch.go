package model

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/util/merkleproof"
)

// CoinProofBatch is the response to an additions or removals request: the
// coins matching the filter plus one inclusion proof per coin ID against the
// block's additions or removals root.
type CoinProofBatch struct {
	Coins  []*Coin                               `json:"coins"`
	Proofs map[chainhash.Hash]*merkleproof.Proof `json:"-"`
}

type coinProofBatchJSON struct {
	Coins  []*Coin                       `json:"coins"`
	Proofs map[string]*merkleproof.Proof `json:"proofs"`
}

func (b *CoinProofBatch) MarshalJSON() ([]byte, error) {
	cj := &coinProofBatchJSON{
		Coins:  b.Coins,
		Proofs: make(map[string]*merkleproof.Proof, len(b.Proofs)),
	}

	for coinID, proof := range b.Proofs {
		cj.Proofs[coinID.String()] = proof
	}

	return json.Marshal(cj)
}

func (b *CoinProofBatch) UnmarshalJSON(data []byte) error {
	var cj coinProofBatchJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}

	b.Coins = cj.Coins
	b.Proofs = make(map[chainhash.Hash]*merkleproof.Proof, len(cj.Proofs))

	for idStr, proof := range cj.Proofs {
		coinID, err := chainhash.NewHashFromStr(idStr)
		if err != nil {
			return err
		}

		b.Proofs[*coinID] = proof
	}

	return nil
}

// ProofFor returns the inclusion proof for the given coin ID, or nil.
func (b *CoinProofBatch) ProofFor(coinID chainhash.Hash) *merkleproof.Proof {
	return b.Proofs[coinID]
}
