// Package sql implements the coin store on postgres and sqlite.
package sql

import (
	"database/sql"
	"net/url"

	"github.com/ordishs/gocore"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/ulogger"
	"github.com/verdant-network/walletnode/util"
)

type SQL struct {
	db     *sql.DB
	engine util.SQLEngine
	logger ulogger.Logger
}

func init() {
	gocore.NewStat("coinstore")
}

func New(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*SQL, error) {
	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, errors.NewStorageError("failed to init sql db", err)
	}

	switch util.SQLEngine(storeURL.Scheme) {
	case util.Postgres:
		if err = createPostgresSchema(db); err != nil {
			return nil, errors.NewStorageError("failed to create postgres schema", err)
		}

	case util.Sqlite, util.SqliteMemory:
		if err = createSqliteSchema(db); err != nil {
			return nil, errors.NewStorageError("failed to create sqlite schema", err)
		}

	default:
		return nil, errors.NewConfigurationError("unknown database engine: %s", storeURL.Scheme)
	}

	return &SQL{
		db:     db,
		engine: util.SQLEngine(storeURL.Scheme),
		logger: logger,
	}, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func createPostgresSchema(db *sql.DB) error {
	if _, err := db.Exec(`
      CREATE TABLE IF NOT EXISTS coins (
	    coin_id        BYTEA PRIMARY KEY
	    ,parent_id     BYTEA NOT NULL
	    ,puzzle_hash   BYTEA NOT NULL
	    ,amount        BIGINT NOT NULL
	    ,created_height BIGINT NOT NULL
	    ,spent_height  BIGINT NULL
    	,inserted_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        ,updated_at    TIMESTAMPTZ NULL
	  );
	`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create coins table", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_coins_puzzle_hash ON coins (puzzle_hash);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create idx_coins_puzzle_hash index", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_coins_created_height ON coins (created_height);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create idx_coins_created_height index", err)
	}

	return nil
}

func createSqliteSchema(db *sql.DB) error {
	if _, err := db.Exec(`
	  CREATE TABLE IF NOT EXISTS coins (
		coin_id        BLOB PRIMARY KEY
		,parent_id     BLOB NOT NULL
		,puzzle_hash   BLOB NOT NULL
		,amount        INTEGER NOT NULL
		,created_height INTEGER NOT NULL
		,spent_height  INTEGER NULL
		,inserted_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		,updated_at    TEXT NULL
	  );
	`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create coins table", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_coins_puzzle_hash ON coins (puzzle_hash);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create idx_coins_puzzle_hash index", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_coins_created_height ON coins (created_height);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create idx_coins_created_height index", err)
	}

	return nil
}
