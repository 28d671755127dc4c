package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/errors"
)

func TestCoinID(t *testing.T) {
	coin := NewTestCoin(1, 1000)

	id1 := coin.ID()
	id2 := coin.ID()
	assert.Equal(t, id1, id2, "coin ID must be deterministic")

	other := NewTestCoin(2, 1000)
	assert.NotEqual(t, id1, other.ID())

	changedAmount := &Coin{ParentCoinID: coin.ParentCoinID, PuzzleHash: coin.PuzzleHash, Amount: 1001}
	assert.NotEqual(t, id1, changedAmount.ID(), "amount must be part of the coin identity")
}

func TestCoinStateValidate(t *testing.T) {
	coin := NewTestCoin(1, 1000)

	tests := []struct {
		name    string
		created *uint32
		spent   *uint32
		wantErr bool
	}{
		{"created only", Uint32Ptr(50), nil, false},
		{"created and spent", Uint32Ptr(50), Uint32Ptr(55), false},
		{"created equals spent", Uint32Ptr(50), Uint32Ptr(50), false},
		{"both nil", nil, nil, true},
		{"spent without created", nil, Uint32Ptr(55), true},
		{"spent before created", Uint32Ptr(56), Uint32Ptr(55), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := &CoinState{Coin: coin, CreatedHeight: tt.created, SpentHeight: tt.spent}
			err := cs.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCoinStateHash(t *testing.T) {
	coin := NewTestCoin(1, 1000)

	created := &CoinState{Coin: coin, CreatedHeight: Uint32Ptr(50)}
	spent := &CoinState{Coin: coin, CreatedHeight: Uint32Ptr(50), SpentHeight: Uint32Ptr(55)}

	assert.NotEqual(t, created.Hash(), spent.Hash(), "spend must change the state hash")
	assert.Equal(t, created.Hash(), (&CoinState{Coin: coin, CreatedHeight: Uint32Ptr(50)}).Hash())
}

func TestCoinStateEqual(t *testing.T) {
	coin := NewTestCoin(1, 1000)

	a := &CoinState{Coin: coin, CreatedHeight: Uint32Ptr(50), SpentHeight: Uint32Ptr(55)}
	b := &CoinState{Coin: coin, CreatedHeight: Uint32Ptr(50), SpentHeight: Uint32Ptr(55)}
	c := &CoinState{Coin: coin, CreatedHeight: Uint32Ptr(50)}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))

	otherCoin := &CoinState{Coin: NewTestCoin(2, 1000), CreatedHeight: Uint32Ptr(50), SpentHeight: Uint32Ptr(55)}
	assert.False(t, a.Equal(otherCoin), "same heights on a different coin")
}

func TestCoinStateJSONRoundTrip(t *testing.T) {
	cs := &CoinState{Coin: NewTestCoin(7, 123), CreatedHeight: Uint32Ptr(50), SpentHeight: Uint32Ptr(55)}

	b, err := cs.MarshalJSON()
	require.NoError(t, err)

	var decoded CoinState
	require.NoError(t, decoded.UnmarshalJSON(b))

	assert.True(t, cs.Equal(&decoded))
	assert.Equal(t, cs.Coin.Amount, decoded.Coin.Amount)
}
