package sql

import (
	"context"
	stdsql "database/sql"
	"encoding/binary"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
)

const bestPeakKey = "best_peak"

// GetBestPeak returns the persisted peak, or nil when the wallet has never
// synced.
func (s *SQL) GetBestPeak(ctx context.Context) (*model.Peak, error) {
	q := `SELECT data FROM state WHERE key = $1`

	var data []byte

	if err := s.db.QueryRowContext(ctx, q, bestPeakKey).Scan(&data); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, nil
		}

		return nil, errors.NewStorageError("failed to get best peak", err)
	}

	if len(data) != 44 {
		return nil, errors.NewStorageError("best peak state is %d bytes, expected 44", len(data))
	}

	hash, err := chainhash.NewHash(data[:32])
	if err != nil {
		return nil, errors.NewStorageError("invalid best peak hash", err)
	}

	return &model.Peak{
		Hash:   hash,
		Height: binary.LittleEndian.Uint32(data[32:]),
		Weight: binary.LittleEndian.Uint64(data[36:]),
	}, nil
}

func (s *SQL) SetBestPeak(ctx context.Context, peak *model.Peak) error {
	data := make([]byte, 0, 44)
	data = append(data, peak.Hash.CloneBytes()...)
	data = binary.LittleEndian.AppendUint32(data, peak.Height)
	data = binary.LittleEndian.AppendUint64(data, peak.Weight)

	q := `
		INSERT INTO state (key, data) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET data = $2, updated_at = CURRENT_TIMESTAMP
	`

	if _, err := s.db.ExecContext(ctx, q, bestPeakKey, data); err != nil {
		return errors.NewStorageError("failed to set best peak", err)
	}

	return nil
}
