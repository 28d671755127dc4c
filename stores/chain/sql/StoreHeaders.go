package sql

import (
	"context"

	"github.com/ordishs/gocore"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
)

// StoreHeaders persists headers in one transaction. A header already stored
// under the same hash is left untouched; a different header occupying the same
// height is replaced, which only happens after a rollback past the fork point.
func (s *SQL) StoreHeaders(ctx context.Context, headers []*model.HeaderBlock) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("chainstore").NewStat("StoreHeaders").AddTime(start)
	}()

	if len(headers) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("failed to begin transaction", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM headers WHERE height = $1 AND hash != $2`)
	if err != nil {
		return errors.NewStorageError("failed to prepare height cleanup", err)
	}
	defer deleteStmt.Close()

	q := `
		INSERT INTO headers (hash, previous_hash, height, weight, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (hash) DO NOTHING
	`

	insertStmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return errors.NewStorageError("failed to prepare header insert", err)
	}
	defer insertStmt.Close()

	for _, header := range headers {
		hash := header.Hash()

		if _, err = deleteStmt.ExecContext(ctx, header.Height, hash.CloneBytes()); err != nil {
			return errors.NewStorageError("failed to clear height %d", header.Height, err)
		}

		if _, err = insertStmt.ExecContext(ctx,
			hash.CloneBytes(),
			header.PrevHash.CloneBytes(),
			header.Height,
			header.Weight,
			header.Bytes(),
		); err != nil {
			return errors.NewStorageError("failed to store header %s at height %d", hash.String(), header.Height, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.NewStorageError("failed to commit headers", err)
	}

	return nil
}
