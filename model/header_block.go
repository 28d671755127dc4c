package model

import (
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/verdant-network/walletnode/errors"
)

const (
	// FarmerPublicKeySize is the length of an ed25519 public key.
	FarmerPublicKeySize = 32

	// FoliageSignatureSize is the length of an ed25519 signature.
	FoliageSignatureSize = 64

	// HeaderBlockBaseSize is the serialized size of a header block with no
	// finished sub-slots.
	HeaderBlockBaseSize = 4 + 4 + 8 + 32 + 32 + 32 + 2 + 32 + 32 + 4 + 1 + FarmerPublicKeySize + FoliageSignatureSize
)

// EndOfSlot is the end-of-sub-slot record between two infusions. The challenge
// chains from the previous slot (or the previous block's reward chain hash)
// and the hash seeds the next link.
type EndOfSlot struct {
	Challenge chainhash.Hash
	Hash      chainhash.Hash
}

// HeaderBlock is the light-client view of a block: the chain linkage values, the
// additions/removals commitment roots and the farmer's foliage signature.
type HeaderBlock struct {
	Version            uint32
	Height             uint32
	Weight             uint64 // cumulative chain weight up to and including this block
	PrevHash           *chainhash.Hash
	InfusionChallenge  *chainhash.Hash
	RewardChainHash    *chainhash.Hash
	FinishedSlots      []EndOfSlot
	AdditionsRoot      *chainhash.Hash
	RemovalsRoot       *chainhash.Hash
	Timestamp          uint32
	IsTransactionBlock bool
	FarmerPublicKey    []byte
	FoliageSignature   []byte
}

// Bytes serializes the header block. The layout is fixed-width fields with a
// uint16 sub-slot count, signature last so FoliageHash can reuse the prefix.
func (hb *HeaderBlock) Bytes() []byte {
	buf := hb.bytesWithoutSignature()
	buf = append(buf, hb.FoliageSignature...)

	return buf
}

func (hb *HeaderBlock) bytesWithoutSignature() []byte {
	buf := make([]byte, 0, HeaderBlockBaseSize+len(hb.FinishedSlots)*64)

	buf = binary.LittleEndian.AppendUint32(buf, hb.Version)
	buf = binary.LittleEndian.AppendUint32(buf, hb.Height)
	buf = binary.LittleEndian.AppendUint64(buf, hb.Weight)
	buf = append(buf, hb.PrevHash.CloneBytes()...)
	buf = append(buf, hb.InfusionChallenge.CloneBytes()...)
	buf = append(buf, hb.RewardChainHash.CloneBytes()...)

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(hb.FinishedSlots)))
	for _, slot := range hb.FinishedSlots {
		buf = append(buf, slot.Challenge.CloneBytes()...)
		buf = append(buf, slot.Hash.CloneBytes()...)
	}

	buf = append(buf, hb.AdditionsRoot.CloneBytes()...)
	buf = append(buf, hb.RemovalsRoot.CloneBytes()...)
	buf = binary.LittleEndian.AppendUint32(buf, hb.Timestamp)

	if hb.IsTransactionBlock {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	buf = append(buf, hb.FarmerPublicKey...)

	return buf
}

// NewHeaderBlockFromBytes deserializes a header block produced by Bytes.
func NewHeaderBlockFromBytes(b []byte) (*HeaderBlock, error) {
	if len(b) < HeaderBlockBaseSize {
		return nil, errors.NewInvalidArgumentError("header block too short: %d bytes", len(b))
	}

	hb := &HeaderBlock{}
	offset := 0

	hb.Version = binary.LittleEndian.Uint32(b[offset:])
	offset += 4
	hb.Height = binary.LittleEndian.Uint32(b[offset:])
	offset += 4
	hb.Weight = binary.LittleEndian.Uint64(b[offset:])
	offset += 8

	var err error

	if hb.PrevHash, err = chainhash.NewHash(b[offset : offset+32]); err != nil {
		return nil, errors.NewInvalidArgumentError("invalid prev hash", err)
	}

	offset += 32

	if hb.InfusionChallenge, err = chainhash.NewHash(b[offset : offset+32]); err != nil {
		return nil, errors.NewInvalidArgumentError("invalid infusion challenge", err)
	}

	offset += 32

	if hb.RewardChainHash, err = chainhash.NewHash(b[offset : offset+32]); err != nil {
		return nil, errors.NewInvalidArgumentError("invalid reward chain hash", err)
	}

	offset += 32

	slotCount := int(binary.LittleEndian.Uint16(b[offset:]))
	offset += 2

	if len(b) != HeaderBlockBaseSize+slotCount*64 {
		return nil, errors.NewInvalidArgumentError("header block length %d does not match %d sub-slots", len(b), slotCount)
	}

	hb.FinishedSlots = make([]EndOfSlot, slotCount)
	for i := 0; i < slotCount; i++ {
		copy(hb.FinishedSlots[i].Challenge[:], b[offset:offset+32])
		copy(hb.FinishedSlots[i].Hash[:], b[offset+32:offset+64])
		offset += 64
	}

	if hb.AdditionsRoot, err = chainhash.NewHash(b[offset : offset+32]); err != nil {
		return nil, errors.NewInvalidArgumentError("invalid additions root", err)
	}

	offset += 32

	if hb.RemovalsRoot, err = chainhash.NewHash(b[offset : offset+32]); err != nil {
		return nil, errors.NewInvalidArgumentError("invalid removals root", err)
	}

	offset += 32

	hb.Timestamp = binary.LittleEndian.Uint32(b[offset:])
	offset += 4

	hb.IsTransactionBlock = b[offset] == 1
	offset++

	hb.FarmerPublicKey = append([]byte{}, b[offset:offset+FarmerPublicKeySize]...)
	offset += FarmerPublicKeySize

	hb.FoliageSignature = append([]byte{}, b[offset:offset+FoliageSignatureSize]...)

	return hb, nil
}

// Hash returns the header block hash over the full serialization.
func (hb *HeaderBlock) Hash() *chainhash.Hash {
	hash := chainhash.HashH(hb.Bytes())
	return &hash
}

// FoliageHash is the message the farmer signs: the serialization without the
// signature itself.
func (hb *HeaderBlock) FoliageHash() chainhash.Hash {
	return chainhash.HashH(hb.bytesWithoutSignature())
}

// SignFoliage signs the foliage hash with the given ed25519 key and stores the
// farmer public key and signature on the block.
func (hb *HeaderBlock) SignFoliage(privKey crypto.PrivKey) error {
	pubBytes, err := privKey.GetPublic().Raw()
	if err != nil {
		return errors.NewProcessingError("failed to extract farmer public key", err)
	}

	hb.FarmerPublicKey = pubBytes

	foliageHash := hb.FoliageHash()

	sig, err := privKey.Sign(foliageHash.CloneBytes())
	if err != nil {
		return errors.NewProcessingError("failed to sign foliage hash", err)
	}

	hb.FoliageSignature = sig

	return nil
}

// VerifyFoliageSignature checks the farmer signature over the foliage hash.
func (hb *HeaderBlock) VerifyFoliageSignature() error {
	if len(hb.FarmerPublicKey) != FarmerPublicKeySize {
		return errors.NewBlockInvalidError("block %s has invalid farmer public key length %d", hb.Hash().String(), len(hb.FarmerPublicKey))
	}

	if len(hb.FoliageSignature) != FoliageSignatureSize {
		return errors.NewBlockInvalidError("block %s has invalid foliage signature length %d", hb.Hash().String(), len(hb.FoliageSignature))
	}

	pubKey, err := crypto.UnmarshalEd25519PublicKey(hb.FarmerPublicKey)
	if err != nil {
		return errors.NewBlockInvalidError("block %s has unparseable farmer public key", hb.Hash().String(), err)
	}

	foliageHash := hb.FoliageHash()

	ok, err := pubKey.Verify(foliageHash.CloneBytes(), hb.FoliageSignature)
	if err != nil {
		return errors.NewBlockInvalidError("block %s foliage signature verification errored", hb.Hash().String(), err)
	}

	if !ok {
		return errors.NewBlockInvalidError("block %s foliage signature does not verify", hb.Hash().String())
	}

	return nil
}

// CheckChainLink verifies that hb correctly extends prev: previous-hash
// linkage, height and weight monotonicity, and the sub-slot challenge chain.
// The first finished slot must chain from prev's reward chain hash, each
// following slot from the previous slot's hash, and the infusion challenge
// from the last slot (or directly from prev's reward chain hash when the
// block is slotless).
func (hb *HeaderBlock) CheckChainLink(prev *HeaderBlock) error {
	if !hb.PrevHash.IsEqual(prev.Hash()) {
		return errors.NewBlockInvalidError("block %s at height %d does not link to previous block %s", hb.Hash().String(), hb.Height, prev.Hash().String())
	}

	if hb.Height != prev.Height+1 {
		return errors.NewBlockInvalidError("block %s at height %d follows height %d", hb.Hash().String(), hb.Height, prev.Height)
	}

	if hb.Weight <= prev.Weight {
		return errors.NewBlockInvalidError("block %s weight %d does not exceed previous weight %d", hb.Hash().String(), hb.Weight, prev.Weight)
	}

	expectedChallenge := *prev.RewardChainHash

	for i, slot := range hb.FinishedSlots {
		if !slot.Challenge.IsEqual(&expectedChallenge) {
			return errors.NewBlockInvalidError("block %s sub-slot %d challenge does not chain", hb.Hash().String(), i)
		}

		expectedChallenge = slot.Hash
	}

	if !hb.InfusionChallenge.IsEqual(&expectedChallenge) {
		return errors.NewBlockInvalidError("block %s infusion challenge does not chain from sub-slots", hb.Hash().String())
	}

	return nil
}
