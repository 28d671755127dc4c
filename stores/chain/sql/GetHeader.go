package sql

import (
	"context"
	stdsql "database/sql"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
)

func (s *SQL) GetHeader(ctx context.Context, hash *chainhash.Hash) (*model.HeaderBlock, error) {
	q := `SELECT data FROM headers WHERE hash = $1`

	var data []byte

	if err := s.db.QueryRowContext(ctx, q, hash.CloneBytes()).Scan(&data); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, errors.NewBlockNotFoundError("header %s not found", hash.String())
		}

		return nil, errors.NewStorageError("failed to get header %s", hash.String(), err)
	}

	return model.NewHeaderBlockFromBytes(data)
}

func (s *SQL) GetHeaderByHeight(ctx context.Context, height uint32) (*model.HeaderBlock, error) {
	q := `SELECT data FROM headers WHERE height = $1`

	var data []byte

	if err := s.db.QueryRowContext(ctx, q, height).Scan(&data); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, errors.NewBlockNotFoundError("no header at height %d", height)
		}

		return nil, errors.NewStorageError("failed to get header at height %d", height, err)
	}

	return model.NewHeaderBlockFromBytes(data)
}

func (s *SQL) GetBlockExists(ctx context.Context, hash *chainhash.Hash) (bool, error) {
	q := `SELECT EXISTS (SELECT 1 FROM headers WHERE hash = $1)`

	var exists bool

	if err := s.db.QueryRowContext(ctx, q, hash.CloneBytes()).Scan(&exists); err != nil {
		return false, errors.NewStorageError("failed to check header %s", hash.String(), err)
	}

	return exists, nil
}

func (s *SQL) GetHeadersFromHeight(ctx context.Context, height uint32, limit int) ([]*model.HeaderBlock, error) {
	q := `SELECT data FROM headers WHERE height >= $1 ORDER BY height ASC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, q, height, limit)
	if err != nil {
		return nil, errors.NewStorageError("failed to get headers from height %d", height, err)
	}
	defer rows.Close()

	var headers []*model.HeaderBlock

	for rows.Next() {
		var data []byte

		if err = rows.Scan(&data); err != nil {
			return nil, errors.NewStorageError("failed to scan header row", err)
		}

		header, err := model.NewHeaderBlockFromBytes(data)
		if err != nil {
			return nil, err
		}

		headers = append(headers, header)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed iterating header rows", err)
	}

	return headers, nil
}
