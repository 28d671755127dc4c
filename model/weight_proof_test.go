package model

import (
	"encoding/binary"
	"testing"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/errors"
)

func TestWeightProofRoundTrip(t *testing.T) {
	cb := NewChainBuilder()
	cb.Extend(30)

	wp := cb.WeightProof(10, 5)

	decoded, err := NewWeightProofFromBytes(wp.Bytes())
	require.NoError(t, err)

	assert.Equal(t, wp.TipHeight, decoded.TipHeight)
	assert.Equal(t, wp.TotalWeight, decoded.TotalWeight)
	assert.True(t, wp.TipHash.IsEqual(decoded.TipHash))
	assert.Len(t, decoded.SubEpochs, len(wp.SubEpochs))
	assert.Len(t, decoded.RecentHeaders, 5)
	assert.Equal(t, wp.Hash(), decoded.Hash())
}

func TestWeightProofHashIsContentAddressed(t *testing.T) {
	cb := NewChainBuilder()
	cb.Extend(10)

	wp1 := cb.WeightProof(5, 3)
	wp2 := cb.WeightProof(5, 3)
	assert.Equal(t, wp1.Hash(), wp2.Hash())

	cb.Extend(1)
	wp3 := cb.WeightProof(5, 3)
	assert.NotEqual(t, wp1.Hash(), wp3.Hash())
}

func TestWeightProofHeaderAtHeight(t *testing.T) {
	cb := NewChainBuilder()
	cb.Extend(20)

	wp := cb.WeightProof(10, 5)

	assert.Equal(t, uint32(15), wp.WindowStartHeight())
	assert.Nil(t, wp.HeaderAtHeight(14), "below window")
	assert.Nil(t, wp.HeaderAtHeight(20), "above tip")

	hb := wp.HeaderAtHeight(17)
	require.NotNil(t, hb)
	assert.Equal(t, uint32(17), hb.Height)
}

func TestWeightProofRejectsForgedHeaderCount(t *testing.T) {
	tip := chainhash.HashH([]byte("tip"))

	// A minimal body whose window count claims far more headers than the
	// remaining bytes could hold.
	b := append([]byte{}, tip[:]...)
	b = binary.LittleEndian.AppendUint32(b, 100)     // tip height
	b = binary.LittleEndian.AppendUint64(b, 1000)    // total weight
	b = binary.LittleEndian.AppendUint32(b, 0)       // sub-epoch count
	b = binary.LittleEndian.AppendUint32(b, 1<<28)   // window count

	_, err := NewWeightProofFromBytes(b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestSubEpochSummaryChain(t *testing.T) {
	cb := NewChainBuilder()
	cb.Extend(25)

	summaries := cb.SubEpochs(10)
	require.Len(t, summaries, 3)

	prevHash := summaries[0].PrevHash
	for _, ses := range summaries {
		assert.True(t, ses.PrevHash.IsEqual(prevHash))
		assert.Equal(t, *ses.Hash, ses.ContentHash())
		prevHash = ses.Hash
	}

	roundTripped, err := NewSubEpochSummaryFromBytes(summaries[1].Bytes())
	require.NoError(t, err)
	assert.Equal(t, summaries[1].StartHeight, roundTripped.StartHeight)
	assert.True(t, summaries[1].Hash.IsEqual(roundTripped.Hash))
	assert.True(t, summaries[1].LastBlockHash.IsEqual(roundTripped.LastBlockHash))
	assert.True(t, roundTripped.Contains(15))
	assert.False(t, roundTripped.Contains(25))
}

func TestSubEpochSummaryBindsBlockContent(t *testing.T) {
	// Two chains with identical heights and weight schedules but different
	// blocks must not produce interchangeable summary chains.
	cb1 := NewChainBuilder()
	cb1.Extend(20)

	cb2 := NewChainBuilder()
	cb2.Extend(20)

	ses1 := cb1.SubEpochs(10)
	ses2 := cb2.SubEpochs(10)
	require.Len(t, ses1, 2)
	require.Len(t, ses2, 2)

	for i := range ses1 {
		assert.Equal(t, ses1[i].StartHeight, ses2[i].StartHeight)
		assert.Equal(t, ses1[i].Weight, ses2[i].Weight)
		assert.False(t, ses1[i].Hash.IsEqual(ses2[i].Hash), "summary %d must differ between chains", i)
	}
}
