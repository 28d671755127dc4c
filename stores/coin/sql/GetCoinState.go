package sql

import (
	"context"
	stdsql "database/sql"
	"strconv"
	"strings"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
)

func (s *SQL) GetCoinState(ctx context.Context, coinID chainhash.Hash) (*model.CoinState, error) {
	q := `
		SELECT parent_id, puzzle_hash, amount, created_height, spent_height
		FROM coins WHERE coin_id = $1
	`

	state, err := scanCoinState(s.db.QueryRowContext(ctx, q, coinID.CloneBytes()))
	if err != nil {
		if errors.Is(err, errors.ErrCoinNotFound) {
			return nil, errors.NewCoinNotFoundError("coin %s not found", coinID.String())
		}

		return nil, err
	}

	return state, nil
}

func (s *SQL) GetCoinStatesByPuzzleHashes(ctx context.Context, puzzleHashes []chainhash.Hash) ([]*model.CoinState, error) {
	if len(puzzleHashes) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(puzzleHashes))
	args := make([]interface{}, len(puzzleHashes))

	for i, ph := range puzzleHashes {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = ph.CloneBytes()
	}

	q := `
		SELECT parent_id, puzzle_hash, amount, created_height, spent_height
		FROM coins WHERE puzzle_hash IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY created_height ASC
	`

	return s.queryCoinStates(ctx, q, args...)
}

func (s *SQL) GetUnspentCoins(ctx context.Context) ([]*model.CoinState, error) {
	q := `
		SELECT parent_id, puzzle_hash, amount, created_height, spent_height
		FROM coins WHERE spent_height IS NULL
		ORDER BY created_height ASC
	`

	return s.queryCoinStates(ctx, q)
}

func (s *SQL) Count(ctx context.Context) (int, error) {
	var count int

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM coins`).Scan(&count); err != nil {
		return 0, errors.NewStorageError("failed to count coins", err)
	}

	return count, nil
}

func (s *SQL) queryCoinStates(ctx context.Context, q string, args ...interface{}) ([]*model.CoinState, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.NewStorageError("failed to query coin states", err)
	}
	defer rows.Close()

	var states []*model.CoinState

	for rows.Next() {
		var (
			parentBytes   []byte
			puzzleBytes   []byte
			amount        int64
			createdHeight uint32
			spentHeight   stdsql.NullInt64
		)

		if err = rows.Scan(&parentBytes, &puzzleBytes, &amount, &createdHeight, &spentHeight); err != nil {
			return nil, errors.NewStorageError("failed to scan coin row", err)
		}

		state, err := buildCoinState(parentBytes, puzzleBytes, amount, createdHeight, spentHeight)
		if err != nil {
			return nil, err
		}

		states = append(states, state)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed iterating coin rows", err)
	}

	return states, nil
}

func buildCoinState(parentBytes, puzzleBytes []byte, amount int64, createdHeight uint32, spentHeight stdsql.NullInt64) (*model.CoinState, error) {
	parent, err := chainhash.NewHash(parentBytes)
	if err != nil {
		return nil, errors.NewStorageError("invalid parent coin id in store", err)
	}

	puzzle, err := chainhash.NewHash(puzzleBytes)
	if err != nil {
		return nil, errors.NewStorageError("invalid puzzle hash in store", err)
	}

	state := &model.CoinState{
		Coin: &model.Coin{
			ParentCoinID: parent,
			PuzzleHash:   puzzle,
			Amount:       uint64(amount),
		},
		CreatedHeight: model.Uint32Ptr(createdHeight),
	}

	if spentHeight.Valid {
		spent, err := safeconversion.Uint64ToUint32(uint64(spentHeight.Int64))
		if err != nil {
			return nil, errors.NewStorageError("invalid spent height in store", err)
		}

		state.SpentHeight = model.Uint32Ptr(spent)
	}

	return state, nil
}
