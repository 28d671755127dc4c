package sql

import (
	"context"
	stdsql "database/sql"

	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
)

const (
	subEpochsKey        = "sub_epochs"
	subEpochSummarySize = 112
)

// GetSubEpochSummaries returns the persisted summary list, oldest first. The
// list is stored as one state row of concatenated fixed-width records.
func (s *SQL) GetSubEpochSummaries(ctx context.Context) ([]*model.SubEpochSummary, error) {
	q := `SELECT data FROM state WHERE key = $1`

	var data []byte

	if err := s.db.QueryRowContext(ctx, q, subEpochsKey).Scan(&data); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, nil
		}

		return nil, errors.NewStorageError("failed to get sub-epoch summaries", err)
	}

	if len(data)%subEpochSummarySize != 0 {
		return nil, errors.NewStorageError("sub-epoch state is %d bytes, not a multiple of %d", len(data), subEpochSummarySize)
	}

	summaries := make([]*model.SubEpochSummary, 0, len(data)/subEpochSummarySize)

	for offset := 0; offset < len(data); offset += subEpochSummarySize {
		ses, err := model.NewSubEpochSummaryFromBytes(data[offset : offset+subEpochSummarySize])
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, ses)
	}

	return summaries, nil
}

func (s *SQL) StoreSubEpochSummaries(ctx context.Context, summaries []*model.SubEpochSummary) error {
	data := make([]byte, 0, len(summaries)*subEpochSummarySize)
	for _, ses := range summaries {
		data = append(data, ses.Bytes()...)
	}

	q := `
		INSERT INTO state (key, data) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET data = $2, updated_at = CURRENT_TIMESTAMP
	`

	if _, err := s.db.ExecContext(ctx, q, subEpochsKey, data); err != nil {
		return errors.NewStorageError("failed to store sub-epoch summaries", err)
	}

	return nil
}
