package chain

import (
	"net/url"

	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/stores/chain/sql"
	"github.com/verdant-network/walletnode/ulogger"
)

// NewStore creates a chain store for the given URL scheme.
func NewStore(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (Store, error) {
	switch storeURL.Scheme {
	case "postgres", "sqlite", "sqlitememory":
		return sql.New(logger, storeURL, tSettings)
	default:
		return nil, errors.NewConfigurationError("unknown chain store scheme: %s", storeURL.Scheme)
	}
}
