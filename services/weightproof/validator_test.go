package weightproof

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/ulogger"
)

func newTestValidator(windowSize int) *Validator {
	tSettings := settings.NewSettings()
	tSettings.WalletSync.RecentWindowSize = windowSize

	return NewValidator(ulogger.TestLogger{}, tSettings)
}

func TestValidateWeightProof(t *testing.T) {
	v := newTestValidator(10)
	ctx := context.Background()

	cb := model.NewChainBuilder()
	cb.Extend(30)

	proof := cb.WeightProof(10, 10)

	result, err := v.ValidateWeightProof(ctx, proof, nil)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, uint32(0), result.ForkPoint, "nothing stored locally")
	assert.Equal(t, proof.TipHeight, result.TipHeight)
	assert.Equal(t, proof.TotalWeight, result.TipWeight)
	assert.Len(t, result.SubEpochs, 3)
	assert.Len(t, result.RecentHeaders, 10)
}

func TestValidateWeightProofForkPoint(t *testing.T) {
	v := newTestValidator(10)
	ctx := context.Background()

	cb := model.NewChainBuilder()
	cb.Extend(30)

	proof := cb.WeightProof(10, 10)

	t.Run("local prefix agrees", func(t *testing.T) {
		local := proof.SubEpochs[:2]

		result, err := v.ValidateWeightProof(ctx, proof, local)
		require.NoError(t, err)
		assert.Equal(t, local[1].EndHeight, result.ForkPoint)
	})

	t.Run("divergence after the first summary", func(t *testing.T) {
		other := model.NewChainBuilder()
		other.Extend(30)

		// Splice: first summary from the real chain, rest from a stranger.
		local := append([]*model.SubEpochSummary{proof.SubEpochs[0]}, other.SubEpochs(10)[1:]...)

		result, err := v.ValidateWeightProof(ctx, proof, local)
		require.NoError(t, err)
		assert.Equal(t, proof.SubEpochs[0].EndHeight, result.ForkPoint)
	})

	t.Run("total divergence", func(t *testing.T) {
		other := model.NewChainBuilder()
		other.Extend(30)

		result, err := v.ValidateWeightProof(ctx, proof, other.SubEpochs(10))
		require.NoError(t, err)
		assert.Equal(t, uint32(0), result.ForkPoint)
	})
}

func TestValidateWeightProofRejections(t *testing.T) {
	v := newTestValidator(10)
	ctx := context.Background()

	cb := model.NewChainBuilder()
	cb.Extend(30)

	requireProofInvalid := func(t *testing.T, proof *model.WeightProof) {
		t.Helper()

		result, err := v.ValidateWeightProof(ctx, proof, nil)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, errors.ErrProofInvalid))
	}

	t.Run("nil proof", func(t *testing.T) {
		requireProofInvalid(t, nil)
	})

	t.Run("empty header window", func(t *testing.T) {
		proof := cb.WeightProof(10, 10)
		proof.RecentHeaders = nil
		requireProofInvalid(t, proof)
	})

	t.Run("window below required size", func(t *testing.T) {
		requireProofInvalid(t, cb.WeightProof(10, 5))
	})

	t.Run("tampered sub-epoch hash", func(t *testing.T) {
		proof := cb.WeightProof(10, 10)
		bad := *proof.SubEpochs[1]
		badHash := *bad.Hash
		badHash[0] ^= 0xff
		bad.Hash = &badHash
		proof.SubEpochs[1] = &bad
		requireProofInvalid(t, proof)
	})

	t.Run("inflated sub-epoch weight", func(t *testing.T) {
		proof := cb.WeightProof(10, 10)
		bad := *proof.SubEpochs[2]
		bad.Weight = proof.TotalWeight + 1
		hash := bad.ContentHash()
		bad.Hash = &hash
		proof.SubEpochs[2] = &bad
		requireProofInvalid(t, proof)
	})

	t.Run("broken window link", func(t *testing.T) {
		other := model.NewChainBuilder()
		other.Extend(30)

		proof := cb.WeightProof(10, 10)
		proof.RecentHeaders[5] = other.BlockAt(25)
		requireProofInvalid(t, proof)
	})

	t.Run("tip hash mismatch", func(t *testing.T) {
		proof := cb.WeightProof(10, 10)
		wrong := model.NewTestCoin(1, 1).ID()
		proof.TipHash = &wrong
		requireProofInvalid(t, proof)
	})

	t.Run("tampered foliage signature", func(t *testing.T) {
		proof := cb.WeightProof(10, 10)

		tip := *proof.RecentHeaders[len(proof.RecentHeaders)-1]
		tip.FoliageSignature = append([]byte{}, tip.FoliageSignature...)
		tip.FoliageSignature[0] ^= 0xff
		proof.RecentHeaders[len(proof.RecentHeaders)-1] = &tip
		proof.TipHash = tip.Hash()
		requireProofInvalid(t, proof)
	})
}

func TestValidateWeightProofShortChain(t *testing.T) {
	// A chain shorter than the configured window is acceptable when the
	// window covers it entirely.
	v := newTestValidator(500)
	ctx := context.Background()

	cb := model.NewChainBuilder()
	cb.Extend(8)

	result, err := v.ValidateWeightProof(ctx, cb.WeightProof(10, 8), nil)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
