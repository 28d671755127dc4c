package model

import (
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/errors"
)

// WeightProof is a peer-supplied, cryptographically checkable summary of
// cumulative chain weight up to a tip: the sub-epoch summary chain plus a
// recent window of full header blocks ending at the tip. The proof is opaque
// to everything except the weight proof validator; once validated it is cached
// content-addressed by Hash.
type WeightProof struct {
	TipHash       *chainhash.Hash
	TipHeight     uint32
	TotalWeight   uint64
	SubEpochs     []*SubEpochSummary
	RecentHeaders []*HeaderBlock
}

func (wp *WeightProof) Bytes() []byte {
	buf := make([]byte, 0, 44+len(wp.SubEpochs)*subEpochSummarySize)

	buf = append(buf, wp.TipHash.CloneBytes()...)
	buf = binary.LittleEndian.AppendUint32(buf, wp.TipHeight)
	buf = binary.LittleEndian.AppendUint64(buf, wp.TotalWeight)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(wp.SubEpochs)))
	for _, ses := range wp.SubEpochs {
		buf = append(buf, ses.Bytes()...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(wp.RecentHeaders)))

	for _, hb := range wp.RecentHeaders {
		headerBytes := hb.Bytes()
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(headerBytes)))
		buf = append(buf, headerBytes...)
	}

	return buf
}

func NewWeightProofFromBytes(b []byte) (*WeightProof, error) {
	if len(b) < 52 {
		return nil, errors.NewInvalidArgumentError("weight proof too short: %d bytes", len(b))
	}

	tipHash, err := chainhash.NewHash(b[:32])
	if err != nil {
		return nil, errors.NewInvalidArgumentError("invalid weight proof tip hash", err)
	}

	wp := &WeightProof{
		TipHash:     tipHash,
		TipHeight:   binary.LittleEndian.Uint32(b[32:]),
		TotalWeight: binary.LittleEndian.Uint64(b[36:]),
	}

	offset := 44

	sesCount := int(binary.LittleEndian.Uint32(b[offset:]))
	offset += 4

	if len(b) < offset+sesCount*subEpochSummarySize+4 {
		return nil, errors.NewInvalidArgumentError("weight proof truncated in sub-epoch list")
	}

	wp.SubEpochs = make([]*SubEpochSummary, sesCount)
	for i := 0; i < sesCount; i++ {
		if wp.SubEpochs[i], err = NewSubEpochSummaryFromBytes(b[offset : offset+subEpochSummarySize]); err != nil {
			return nil, err
		}

		offset += subEpochSummarySize
	}

	headerCount := int(binary.LittleEndian.Uint32(b[offset:]))
	offset += 4

	// Every window entry carries a length prefix and at least a base-size
	// header, which bounds how many can fit in the remaining bytes.
	if headerCount > (len(b)-offset)/(4+HeaderBlockBaseSize) {
		return nil, errors.NewInvalidArgumentError("weight proof claims %d headers in %d bytes", headerCount, len(b)-offset)
	}

	wp.RecentHeaders = make([]*HeaderBlock, headerCount)

	for i := 0; i < headerCount; i++ {
		if len(b) < offset+4 {
			return nil, errors.NewInvalidArgumentError("weight proof truncated in header window")
		}

		headerLen := int(binary.LittleEndian.Uint32(b[offset:]))
		offset += 4

		if len(b) < offset+headerLen {
			return nil, errors.NewInvalidArgumentError("weight proof truncated in header %d", i)
		}

		if wp.RecentHeaders[i], err = NewHeaderBlockFromBytes(b[offset : offset+headerLen]); err != nil {
			return nil, err
		}

		offset += headerLen
	}

	return wp, nil
}

// Hash is the content hash of the proof, used as the key for the validated
// proof cache.
func (wp *WeightProof) Hash() chainhash.Hash {
	return chainhash.HashH(wp.Bytes())
}

// WindowStartHeight returns the height of the first header in the recent
// window, or the tip height when the window is empty.
func (wp *WeightProof) WindowStartHeight() uint32 {
	if len(wp.RecentHeaders) == 0 {
		return wp.TipHeight
	}

	return wp.RecentHeaders[0].Height
}

// HeaderAtHeight returns the recent-window header at the given height, or nil
// when the height falls outside the window.
func (wp *WeightProof) HeaderAtHeight(height uint32) *HeaderBlock {
	if len(wp.RecentHeaders) == 0 {
		return nil
	}

	start := wp.RecentHeaders[0].Height
	if height < start {
		return nil
	}

	idx := int(height - start)
	if idx >= len(wp.RecentHeaders) {
		return nil
	}

	return wp.RecentHeaders[idx]
}
