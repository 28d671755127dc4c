package sql

import (
	"context"

	"github.com/ordishs/gocore"
	"github.com/verdant-network/walletnode/errors"
)

// RollbackToHeight undoes coin state above the given height: coins created
// above it disappear, spends above it revert to unspent.
func (s *SQL) RollbackToHeight(ctx context.Context, height uint32) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("coinstore").NewStat("RollbackToHeight").AddTime(start)
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("failed to begin transaction", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM coins WHERE created_height > $1`, height); err != nil {
		return errors.NewStorageError("failed to delete coins created above %d", height, err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE coins SET spent_height = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE spent_height IS NOT NULL AND spent_height > $1
	`, height); err != nil {
		return errors.NewStorageError("failed to clear spends above %d", height, err)
	}

	if err = tx.Commit(); err != nil {
		return errors.NewStorageError("failed to commit rollback", err)
	}

	return nil
}
