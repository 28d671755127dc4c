package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderBlockSerializeRoundTrip(t *testing.T) {
	cb := NewChainBuilder()
	cb.AddBlock()
	hb := cb.AddBlock(WithFinishedSlots(2), WithAdditionLeaves(NewTestCoin(1, 10).ID()))

	b := hb.Bytes()

	decoded, err := NewHeaderBlockFromBytes(b)
	require.NoError(t, err)

	assert.Equal(t, hb.Height, decoded.Height)
	assert.Equal(t, hb.Weight, decoded.Weight)
	assert.Equal(t, hb.FinishedSlots, decoded.FinishedSlots)
	assert.True(t, hb.Hash().IsEqual(decoded.Hash()))
	assert.True(t, hb.AdditionsRoot.IsEqual(decoded.AdditionsRoot))
	assert.True(t, decoded.IsTransactionBlock)
	require.NoError(t, decoded.VerifyFoliageSignature())
}

func TestNewHeaderBlockFromBytesErrors(t *testing.T) {
	_, err := NewHeaderBlockFromBytes([]byte{1, 2, 3})
	require.Error(t, err)

	cb := NewChainBuilder()
	hb := cb.AddBlock(WithFinishedSlots(1))

	// Truncating the slot section makes the declared count inconsistent.
	b := hb.Bytes()
	_, err = NewHeaderBlockFromBytes(b[:len(b)-10])
	require.Error(t, err)
}

func TestCheckChainLink(t *testing.T) {
	cb := NewChainBuilder()
	prev := cb.AddBlock()
	slotless := cb.AddBlock()
	slotted := cb.AddBlock(WithFinishedSlots(3))

	t.Run("valid slotless link", func(t *testing.T) {
		require.NoError(t, slotless.CheckChainLink(prev))
	})

	t.Run("valid slotted link", func(t *testing.T) {
		require.NoError(t, slotted.CheckChainLink(slotless))
	})

	t.Run("broken prev hash", func(t *testing.T) {
		require.Error(t, slotted.CheckChainLink(prev))
	})

	t.Run("tampered infusion challenge", func(t *testing.T) {
		bad, err := NewHeaderBlockFromBytes(slotless.Bytes())
		require.NoError(t, err)

		bad.InfusionChallenge[0] ^= 0x01
		require.Error(t, bad.CheckChainLink(prev))
	})

	t.Run("tampered sub-slot chain", func(t *testing.T) {
		bad, err := NewHeaderBlockFromBytes(slotted.Bytes())
		require.NoError(t, err)

		bad.FinishedSlots[1].Challenge[0] ^= 0x01
		require.Error(t, bad.CheckChainLink(slotless))
	})

	t.Run("non-monotone weight", func(t *testing.T) {
		bad, err := NewHeaderBlockFromBytes(slotless.Bytes())
		require.NoError(t, err)

		bad.Weight = prev.Weight
		require.Error(t, bad.CheckChainLink(prev))
	})
}

func TestVerifyFoliageSignature(t *testing.T) {
	cb := NewChainBuilder()
	hb := cb.AddBlock()

	require.NoError(t, hb.VerifyFoliageSignature())

	t.Run("tampered signature", func(t *testing.T) {
		bad, err := NewHeaderBlockFromBytes(hb.Bytes())
		require.NoError(t, err)

		bad.FoliageSignature[0] ^= 0x01
		require.Error(t, bad.VerifyFoliageSignature())
	})

	t.Run("tampered content", func(t *testing.T) {
		bad, err := NewHeaderBlockFromBytes(hb.Bytes())
		require.NoError(t, err)

		bad.Timestamp++
		require.Error(t, bad.VerifyFoliageSignature())
	})

	t.Run("bad key length", func(t *testing.T) {
		bad, err := NewHeaderBlockFromBytes(hb.Bytes())
		require.NoError(t, err)

		bad.FarmerPublicKey = bad.FarmerPublicKey[:16]
		require.Error(t, bad.VerifyFoliageSignature())
	})
}
