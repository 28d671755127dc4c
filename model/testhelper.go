package model

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/verdant-network/walletnode/util/merkleproof"
)

// ChainBuilder constructs valid header block chains for tests: correct
// prev-hash linkage, sub-slot challenge chains, signed foliage and
// additions/removals roots built from real leaf sets so inclusion proofs
// verify. Production code never touches this.
type ChainBuilder struct {
	FarmerKey crypto.PrivKey
	blocks    []*HeaderBlock
	additions map[uint32][]chainhash.Hash
	removals  map[uint32][]chainhash.Hash
}

// NewChainBuilder creates a builder with a fresh farmer key.
func NewChainBuilder() *ChainBuilder {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		panic(err)
	}

	return &ChainBuilder{
		FarmerKey: priv,
		additions: make(map[uint32][]chainhash.Hash),
		removals:  make(map[uint32][]chainhash.Hash),
	}
}

// BlockOption customizes a block added by AddBlock.
type BlockOption func(*blockParams)

type blockParams struct {
	additions       []chainhash.Hash
	removals        []chainhash.Hash
	slots           int
	weightIncrement uint64
}

func WithAdditionLeaves(leaves ...chainhash.Hash) BlockOption {
	return func(p *blockParams) { p.additions = leaves }
}

func WithRemovalLeaves(leaves ...chainhash.Hash) BlockOption {
	return func(p *blockParams) { p.removals = leaves }
}

func WithFinishedSlots(n int) BlockOption {
	return func(p *blockParams) { p.slots = n }
}

func WithWeightIncrement(w uint64) BlockOption {
	return func(p *blockParams) { p.weightIncrement = w }
}

// AddBlock appends one block to the chain and returns it.
func (cb *ChainBuilder) AddBlock(opts ...BlockOption) *HeaderBlock {
	params := &blockParams{weightIncrement: 10}
	for _, opt := range opts {
		opt(params)
	}

	height := uint32(len(cb.blocks))

	prevHash := &chainhash.Hash{}
	prevReward := chainhash.Hash{}
	weight := params.weightIncrement

	if height > 0 {
		prev := cb.blocks[height-1]
		prevHash = prev.Hash()
		prevReward = *prev.RewardChainHash
		weight = prev.Weight + params.weightIncrement
	}

	slots := make([]EndOfSlot, params.slots)
	challenge := prevReward

	for i := range slots {
		slots[i].Challenge = challenge
		slots[i].Hash = deriveHash("slot", height, uint32(i))
		challenge = slots[i].Hash
	}

	infusion := challenge
	additionsRoot := merkleproof.BuildMerkleRoot(params.additions)
	removalsRoot := merkleproof.BuildMerkleRoot(params.removals)
	rewardChainHash := deriveHash("reward", height, 0)

	hb := &HeaderBlock{
		Version:            1,
		Height:             height,
		Weight:             weight,
		PrevHash:           prevHash,
		InfusionChallenge:  &infusion,
		RewardChainHash:    &rewardChainHash,
		FinishedSlots:      slots,
		AdditionsRoot:      &additionsRoot,
		RemovalsRoot:       &removalsRoot,
		Timestamp:          1700000000 + height*60,
		IsTransactionBlock: len(params.additions) > 0 || len(params.removals) > 0,
	}

	if err := hb.SignFoliage(cb.FarmerKey); err != nil {
		panic(err)
	}

	cb.blocks = append(cb.blocks, hb)
	cb.additions[height] = params.additions
	cb.removals[height] = params.removals

	return hb
}

// Extend adds n blocks with default parameters.
func (cb *ChainBuilder) Extend(n int) {
	for i := 0; i < n; i++ {
		cb.AddBlock()
	}
}

func (cb *ChainBuilder) Blocks() []*HeaderBlock {
	return cb.blocks
}

func (cb *ChainBuilder) BlockAt(height uint32) *HeaderBlock {
	return cb.blocks[height]
}

func (cb *ChainBuilder) Tip() *HeaderBlock {
	return cb.blocks[len(cb.blocks)-1]
}

func (cb *ChainBuilder) Peak() *Peak {
	tip := cb.Tip()
	return &Peak{Hash: tip.Hash(), Height: tip.Height, Weight: tip.Weight}
}

// AdditionLeaves returns the addition leaf set used for the block at height.
func (cb *ChainBuilder) AdditionLeaves(height uint32) []chainhash.Hash {
	return cb.additions[height]
}

// RemovalLeaves returns the removal leaf set used for the block at height.
func (cb *ChainBuilder) RemovalLeaves(height uint32) []chainhash.Hash {
	return cb.removals[height]
}

// AdditionProof builds the inclusion proof for a leaf in the block at height.
func (cb *ChainBuilder) AdditionProof(height uint32, leaf chainhash.Hash) *merkleproof.Proof {
	return leafProof(cb.additions[height], leaf)
}

// RemovalProof builds the inclusion proof for a leaf in the removals of the
// block at height.
func (cb *ChainBuilder) RemovalProof(height uint32, leaf chainhash.Hash) *merkleproof.Proof {
	return leafProof(cb.removals[height], leaf)
}

// SubEpochs partitions the chain into sub-epochs of sesLength blocks and
// returns the chained summary list.
func (cb *ChainBuilder) SubEpochs(sesLength uint32) []*SubEpochSummary {
	var summaries []*SubEpochSummary

	prevHash := &chainhash.Hash{}

	for start := uint32(0); start < uint32(len(cb.blocks)); start += sesLength {
		end := start + sesLength - 1
		if end >= uint32(len(cb.blocks)) {
			end = uint32(len(cb.blocks) - 1)
		}

		ses := &SubEpochSummary{
			PrevHash:      prevHash,
			LastBlockHash: cb.blocks[end].Hash(),
			StartHeight:   start,
			EndHeight:     end,
			Weight:        cb.blocks[end].Weight,
		}

		hash := ses.ContentHash()
		ses.Hash = &hash
		prevHash = ses.Hash

		summaries = append(summaries, ses)
	}

	return summaries
}

// WeightProof builds a weight proof for the current tip with the last
// windowSize blocks as the recent header window.
func (cb *ChainBuilder) WeightProof(sesLength uint32, windowSize int) *WeightProof {
	tip := cb.Tip()

	start := 0
	if len(cb.blocks) > windowSize {
		start = len(cb.blocks) - windowSize
	}

	return &WeightProof{
		TipHash:       tip.Hash(),
		TipHeight:     tip.Height,
		TotalWeight:   tip.Weight,
		SubEpochs:     cb.SubEpochs(sesLength),
		RecentHeaders: cb.blocks[start:],
	}
}

// NewTestCoin derives a deterministic coin from a seed byte.
func NewTestCoin(seed byte, amount uint64) *Coin {
	parent := chainhash.HashH([]byte{0x01, seed})
	puzzle := chainhash.HashH([]byte{0x02, seed})

	return &Coin{
		ParentCoinID: &parent,
		PuzzleHash:   &puzzle,
		Amount:       amount,
	}
}

func leafProof(leaves []chainhash.Hash, leaf chainhash.Hash) *merkleproof.Proof {
	for i, l := range leaves {
		if l.IsEqual(&leaf) {
			proof, err := merkleproof.GenerateProof(leaves, i)
			if err != nil {
				panic(err)
			}

			return proof
		}
	}

	return nil
}

func deriveHash(tag string, a, b uint32) chainhash.Hash {
	buf := make([]byte, 0, len(tag)+8)
	buf = append(buf, []byte(tag)...)
	buf = binary.LittleEndian.AppendUint32(buf, a)
	buf = binary.LittleEndian.AppendUint32(buf, b)

	return chainhash.HashH(buf)
}
