package sql

import (
	"context"
	stdsql "database/sql"

	"github.com/ordishs/gocore"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/stores/coin"
)

// UpsertCoinStates applies the batch inside one transaction, read-compare
// before write so a disagreeing row is reported as a conflict instead of
// being overwritten.
func (s *SQL) UpsertCoinStates(ctx context.Context, states []*model.CoinState) ([]coin.UpsertResult, error) {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("coinstore").NewStat("UpsertCoinStates").AddTime(start)
	}()

	results := make([]coin.UpsertResult, 0, len(states))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewStorageError("failed to begin transaction", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	selectStmt, err := tx.PrepareContext(ctx, `
		SELECT parent_id, puzzle_hash, amount, created_height, spent_height
		FROM coins WHERE coin_id = $1
	`)
	if err != nil {
		return nil, errors.NewStorageError("failed to prepare coin select", err)
	}
	defer selectStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO coins (coin_id, parent_id, puzzle_hash, amount, created_height, spent_height)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return nil, errors.NewStorageError("failed to prepare coin insert", err)
	}
	defer insertStmt.Close()

	updateStmt, err := tx.PrepareContext(ctx, `
		UPDATE coins SET spent_height = $1, updated_at = CURRENT_TIMESTAMP WHERE coin_id = $2
	`)
	if err != nil {
		return nil, errors.NewStorageError("failed to prepare coin update", err)
	}
	defer updateStmt.Close()

	for _, state := range states {
		if err = state.Validate(); err != nil {
			return nil, err
		}

		coinID := state.Coin.ID()

		existing, err := scanCoinState(selectStmt.QueryRowContext(ctx, coinID.CloneBytes()))
		if err != nil && !errors.Is(err, errors.ErrCoinNotFound) {
			return nil, err
		}

		if existing == nil {
			if _, err = insertStmt.ExecContext(ctx,
				coinID.CloneBytes(),
				state.Coin.ParentCoinID.CloneBytes(),
				state.Coin.PuzzleHash.CloneBytes(),
				int64(state.Coin.Amount),
				*state.CreatedHeight,
				nullableHeight(state.SpentHeight),
			); err != nil {
				return nil, errors.NewStorageError("failed to insert coin %s", coinID.String(), err)
			}

			results = append(results, coin.UpsertResult{CoinID: coinID, Outcome: coin.UpsertInserted})

			continue
		}

		outcome := mergeOutcome(existing, state)

		switch outcome {
		case coin.UpsertMerged:
			if _, err = updateStmt.ExecContext(ctx, *state.SpentHeight, coinID.CloneBytes()); err != nil {
				return nil, errors.NewStorageError("failed to update coin %s", coinID.String(), err)
			}

			results = append(results, coin.UpsertResult{CoinID: coinID, Outcome: coin.UpsertMerged})

		case coin.UpsertConflict:
			results = append(results, coin.UpsertResult{CoinID: coinID, Outcome: coin.UpsertConflict, Existing: existing})

		default:
			results = append(results, coin.UpsertResult{CoinID: coinID, Outcome: coin.UpsertUnchanged})
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.NewStorageError("failed to commit coin states", err)
	}

	return results, nil
}

// mergeOutcome decides how an incoming state relates to the stored one.
// Merges are additive only: a spend height can be filled in, never changed or
// cleared.
func mergeOutcome(existing, incoming *model.CoinState) coin.UpsertOutcome {
	if *existing.CreatedHeight != *incoming.CreatedHeight {
		return coin.UpsertConflict
	}

	if incoming.SpentHeight == nil {
		// Nothing new; a stored spend is never cleared by an unspent report.
		return coin.UpsertUnchanged
	}

	if existing.SpentHeight == nil {
		return coin.UpsertMerged
	}

	if *existing.SpentHeight != *incoming.SpentHeight {
		return coin.UpsertConflict
	}

	return coin.UpsertUnchanged
}

func nullableHeight(height *uint32) interface{} {
	if height == nil {
		return nil
	}

	return *height
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCoinState(row rowScanner) (*model.CoinState, error) {
	var (
		parentBytes   []byte
		puzzleBytes   []byte
		amount        int64
		createdHeight uint32
		spentHeight   stdsql.NullInt64
	)

	if err := row.Scan(&parentBytes, &puzzleBytes, &amount, &createdHeight, &spentHeight); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, errors.NewCoinNotFoundError("coin not found")
		}

		return nil, errors.NewStorageError("failed to scan coin row", err)
	}

	return buildCoinState(parentBytes, puzzleBytes, amount, createdHeight, spentHeight)
}
