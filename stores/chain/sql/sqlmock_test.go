package sql

import (
	"context"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/ulogger"
	"github.com/verdant-network/walletnode/util"
)

// newMockStore builds a store over a mocked database, for exercising error
// paths a real sqlite connection cannot produce.
func newMockStore(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := &SQL{
		db:     db,
		engine: util.Sqlite,
		logger: ulogger.TestLogger{},
	}

	return s, mock
}

func TestHealthUnreachable(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectPing().WillReturnError(errors.NewStorageUnavailableError("connection refused"))

	status, details, err := s.Health(context.Background())
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "chain store unreachable", details)
	require.Error(t, err)
}

func TestGetBestPeakQueryError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT data FROM state`).
		WillReturnError(errors.NewStorageError("disk I/O error"))

	_, err := s.GetBestPeak(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageError))
}

func TestGetBestPeakTruncatedState(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"data"}).AddRow([]byte{1, 2, 3})
	mock.ExpectQuery(`SELECT data FROM state`).WillReturnRows(rows)

	_, err := s.GetBestPeak(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 44")
}

func TestSetBestPeakExecError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO state`).
		WillReturnError(errors.NewStorageError("database is locked"))

	hash := chainhash.HashH([]byte("peak"))

	err := s.SetBestPeak(context.Background(), &model.Peak{Hash: &hash, Height: 70, Weight: 700})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageError))
}
