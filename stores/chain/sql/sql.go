// Package sql implements the chain store on postgres and sqlite, selected by
// the store URL scheme.
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
	gocore.NewStat("chainstore")
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

func (s *SQL) GetDB() *sql.DB {
	return s.db
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func createPostgresSchema(db *sql.DB) error {
	if _, err := db.Exec(`
      CREATE TABLE IF NOT EXISTS state (
	    key            VARCHAR(32) PRIMARY KEY
	    ,data          BYTEA NOT NULL
        ,inserted_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        ,updated_at    TIMESTAMPTZ NULL
	  );
	`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create state table", err)
	}

	if _, err := db.Exec(`
      CREATE TABLE IF NOT EXISTS headers (
	    hash           BYTEA PRIMARY KEY
	    ,previous_hash BYTEA NOT NULL
	    ,height        BIGINT NOT NULL
        ,weight        NUMERIC NOT NULL
	    ,data          BYTEA NOT NULL
    	,inserted_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	  );
	`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create headers table", err)
	}

	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_headers_height ON headers (height);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create ux_headers_height index", err)
	}

	return nil
}

func createSqliteSchema(db *sql.DB) error {
	if _, err := db.Exec(`
	  CREATE TABLE IF NOT EXISTS state (
		key            VARCHAR(32) PRIMARY KEY
		,data          BLOB NOT NULL
		,inserted_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		,updated_at    TEXT NULL
	  );
	`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create state table", err)
	}

	if _, err := db.Exec(`
	  CREATE TABLE IF NOT EXISTS headers (
		hash           BLOB PRIMARY KEY
		,previous_hash BLOB NOT NULL
		,height        INTEGER NOT NULL
		,weight        INTEGER NOT NULL
		,data          BLOB NOT NULL
		,inserted_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	  );
	`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create headers table", err)
	}

	if _, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_headers_height ON headers (height);`); err != nil {
		_ = db.Close()
		return errors.NewStorageError("could not create ux_headers_height index", err)
	}

	return nil
}
