package model

import (
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/errors"
)

const subEpochSummarySize = 32 + 32 + 32 + 4 + 4 + 8

// SubEpochSummary is a checkpoint record summarizing a contiguous chain
// segment. Summaries chain through PrevHash and commit to the segment's last
// block, and are used to narrow weight proof verification and to locate the
// sub-epoch containing a claimed block.
type SubEpochSummary struct {
	Hash          *chainhash.Hash
	PrevHash      *chainhash.Hash
	LastBlockHash *chainhash.Hash // hash of the block at EndHeight
	StartHeight   uint32
	EndHeight     uint32
	Weight        uint64 // cumulative weight at EndHeight
}

func (ses *SubEpochSummary) Bytes() []byte {
	buf := make([]byte, 0, subEpochSummarySize)

	buf = append(buf, ses.Hash.CloneBytes()...)
	buf = append(buf, ses.PrevHash.CloneBytes()...)
	buf = append(buf, ses.LastBlockHash.CloneBytes()...)
	buf = binary.LittleEndian.AppendUint32(buf, ses.StartHeight)
	buf = binary.LittleEndian.AppendUint32(buf, ses.EndHeight)
	buf = binary.LittleEndian.AppendUint64(buf, ses.Weight)

	return buf
}

func NewSubEpochSummaryFromBytes(b []byte) (*SubEpochSummary, error) {
	if len(b) != subEpochSummarySize {
		return nil, errors.NewInvalidArgumentError("sub-epoch summary should be %d bytes, got %d", subEpochSummarySize, len(b))
	}

	hash, err := chainhash.NewHash(b[:32])
	if err != nil {
		return nil, errors.NewInvalidArgumentError("invalid sub-epoch hash", err)
	}

	prevHash, err := chainhash.NewHash(b[32:64])
	if err != nil {
		return nil, errors.NewInvalidArgumentError("invalid sub-epoch prev hash", err)
	}

	lastBlockHash, err := chainhash.NewHash(b[64:96])
	if err != nil {
		return nil, errors.NewInvalidArgumentError("invalid sub-epoch last block hash", err)
	}

	return &SubEpochSummary{
		Hash:          hash,
		PrevHash:      prevHash,
		LastBlockHash: lastBlockHash,
		StartHeight:   binary.LittleEndian.Uint32(b[96:]),
		EndHeight:     binary.LittleEndian.Uint32(b[100:]),
		Weight:        binary.LittleEndian.Uint64(b[104:]),
	}, nil
}

// ContentHash recomputes the summary hash from its content: the previous
// summary hash, the last block of the segment, the height range and the
// cumulative weight. A valid summary carries Hash == ContentHash(), which is
// what chains the SES list. Committing to the last block hash makes two
// chains with identical weight schedules but different blocks produce
// different summary chains.
func (ses *SubEpochSummary) ContentHash() chainhash.Hash {
	buf := make([]byte, 0, 80)
	buf = append(buf, ses.PrevHash.CloneBytes()...)
	buf = append(buf, ses.LastBlockHash.CloneBytes()...)
	buf = binary.LittleEndian.AppendUint32(buf, ses.StartHeight)
	buf = binary.LittleEndian.AppendUint32(buf, ses.EndHeight)
	buf = binary.LittleEndian.AppendUint64(buf, ses.Weight)

	return chainhash.HashH(buf)
}

// Contains reports whether the given height falls inside this sub-epoch.
func (ses *SubEpochSummary) Contains(height uint32) bool {
	return height >= ses.StartHeight && height <= ses.EndHeight
}
