package errors

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// CoinConflictErrData describes a coin state upsert that contradicts the state
// already recorded for the same coin.
type CoinConflictErrData struct {
	CoinID              chainhash.Hash
	ExistingSpentHeight uint32
	IncomingSpentHeight uint32
	Time                time.Time
}

func (e *CoinConflictErrData) Error() string {
	return fmt.Sprintf("coin %s already recorded with spent height %d, incoming state has spent height %d at %s",
		e.CoinID, e.ExistingSpentHeight, e.IncomingSpentHeight, e.Time)
}

func (e *CoinConflictErrData) EncodeErrorData() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte{}
	}

	return data
}

func (e *CoinConflictErrData) GetData(key string) interface{} {
	switch key {
	case "coinId":
		return e.CoinID
	case "existingSpentHeight":
		return e.ExistingSpentHeight
	case "incomingSpentHeight":
		return e.IncomingSpentHeight
	case "time":
		return e.Time
	}

	return nil
}

func (e *CoinConflictErrData) SetData(key string, value interface{}) {
	switch key {
	case "coinId":
		if v, ok := value.(chainhash.Hash); ok {
			e.CoinID = v
		}
	case "existingSpentHeight":
		if v, ok := value.(uint32); ok {
			e.ExistingSpentHeight = v
		}
	case "incomingSpentHeight":
		if v, ok := value.(uint32); ok {
			e.IncomingSpentHeight = v
		}
	case "time":
		if v, ok := value.(time.Time); ok {
			e.Time = v
		}
	}
}

func NewCoinConflictErr(coinID chainhash.Hash, existingSpentHeight, incomingSpentHeight uint32, err error) error {
	coinConflictErrStruct := &CoinConflictErrData{
		CoinID:              coinID,
		ExistingSpentHeight: existingSpentHeight,
		IncomingSpentHeight: incomingSpentHeight,
		Time:                time.Now(),
	}

	var e *Error
	if err != nil {
		e = New(ERR_COIN_CONFLICT, "conflicting coin state", err)
	} else {
		e = New(ERR_COIN_CONFLICT, "conflicting coin state")
	}

	e.data = coinConflictErrStruct

	return e
}
