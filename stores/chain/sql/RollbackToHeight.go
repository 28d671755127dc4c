package sql

import (
	"context"

	"github.com/ordishs/gocore"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
)

// RollbackToHeight removes all headers above the given height. If the best
// peak was above the rollback height it is reset to the new tip.
func (s *SQL) RollbackToHeight(ctx context.Context, height uint32) error {
	start := gocore.CurrentTime()
	defer func() {
		gocore.NewStat("chainstore").NewStat("RollbackToHeight").AddTime(start)
	}()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM headers WHERE height > $1`, height); err != nil {
		return errors.NewStorageError("failed to roll back headers above %d", height, err)
	}

	peak, err := s.GetBestPeak(ctx)
	if err != nil {
		return err
	}

	if peak == nil || peak.Height <= height {
		return nil
	}

	tip, err := s.GetHeaderByHeight(ctx, height)
	if err != nil {
		if errors.Is(err, errors.ErrBlockNotFound) {
			// Rolled back below everything we have; clear the peak row so the
			// next sync starts from scratch.
			_, execErr := s.db.ExecContext(ctx, `DELETE FROM state WHERE key = $1`, bestPeakKey)
			if execErr != nil {
				return errors.NewStorageError("failed to clear best peak", execErr)
			}

			return nil
		}

		return err
	}

	return s.SetBestPeak(ctx, &model.Peak{Hash: tip.Hash(), Height: tip.Height, Weight: tip.Weight})
}
