// Package factory creates coin stores from store URLs. It lives apart from
// the coin package so the backends can import the interface types without a
// cycle.
package factory

import (
	"net/url"

	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/stores/coin"
	"github.com/verdant-network/walletnode/stores/coin/memory"
	"github.com/verdant-network/walletnode/stores/coin/sql"
	"github.com/verdant-network/walletnode/ulogger"
)

// NewStore creates a coin store for the given URL scheme.
func NewStore(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (coin.Store, error) {
	switch storeURL.Scheme {
	case "postgres", "sqlite", "sqlitememory":
		return sql.New(logger, storeURL, tSettings)
	case "memory":
		return memory.New(logger), nil
	default:
		return nil, errors.NewConfigurationError("unknown coin store scheme: %s", storeURL.Scheme)
	}
}
