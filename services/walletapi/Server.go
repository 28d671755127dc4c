// Package walletapi serves the wallet node's REST surface: sync status, the
// local peak, stored coins (JSON and CSV), interest registration, peer and
// ban listings, and a resync trigger.
package walletapi

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/ordishs/gocore"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/services/p2p"
	"github.com/verdant-network/walletnode/services/walletsync"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/stores/chain"
	"github.com/verdant-network/walletnode/stores/coin"
	"github.com/verdant-network/walletnode/ulogger"
)

// PeerProvider is the slice of the gossip service the API exposes.
type PeerProvider interface {
	Peers() []p2p.PeerInfo
	BannedPeers() map[string]time.Time
	NodeID() string
}

// Server is the REST API service.
type Server struct {
	logger     ulogger.Logger
	settings   *settings.Settings
	syncServer *walletsync.Server
	chainStore chain.Store
	coinStore  coin.Store
	peers      PeerProvider

	e         *echo.Echo
	privKey   crypto.PrivKey
	startTime time.Time
	stats     *gocore.Stat
}

// NewServer builds the API service and registers all routes. peers may be nil
// when the gossip service is disabled; the peer endpoints then return empty
// results.
func NewServer(logger ulogger.Logger, tSettings *settings.Settings, syncServer *walletsync.Server,
	chainStore chain.Store, coinStore coin.Store, peers PeerProvider) *Server {
	initPrometheusMetrics()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = tSettings.API.DebugEnabled

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			return true, nil
		},
		AllowMethods:  []string{echo.GET, echo.HEAD, echo.POST, echo.OPTIONS},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		ExposeHeaders: []string{echo.HeaderContentLength, echo.HeaderContentType, "X-Signature"},
		MaxAge:        86400,
	}))
	e.Use(middleware.Gzip())

	s := &Server{
		logger:     logger,
		settings:   tSettings,
		syncServer: syncServer,
		chainStore: chainStore,
		coinStore:  coinStore,
		peers:      peers,
		e:          e,
		startTime:  time.Now(),
		stats:      gocore.NewStat("walletapi"),
	}

	// response signing is optional and only enabled when a key is configured
	if keyHex := tSettings.API.PrivateKey; keyHex != "" {
		keyBytes, err := hex.DecodeString(keyHex)
		if err != nil {
			logger.Errorf("[walletapi] failed to decode api private key: %v", err)
		} else if privKey, err := crypto.UnmarshalEd25519PrivateKey(keyBytes); err != nil {
			logger.Errorf("[walletapi] failed to unmarshal api private key: %v", err)
		} else {
			s.privKey = privKey
		}
	}

	e.Use(s.metricsMiddleware)

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.e.GET("/alive", func(c echo.Context) error {
		return c.String(http.StatusOK, fmt.Sprintf("Wallet API service is alive. Uptime: %s\n", time.Since(s.startTime)))
	})

	s.e.GET("/health", func(c echo.Context) error {
		status, details, err := s.syncServer.Health(c.Request().Context(), false)
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}

		return c.String(status, details)
	})

	s.e.GET("/stats", AdaptStdHandler(gocore.HandleStats))

	apiGroup := s.e.Group(s.settings.API.APIPrefix)

	apiGroup.GET("/sync/status", s.GetSyncStatus)
	apiGroup.GET("/sync/fsm/state", s.GetFSMState)
	apiGroup.POST("/resync", s.TriggerResync)

	apiGroup.GET("/peak", s.GetPeak)

	apiGroup.GET("/coins", s.GetCoins)
	apiGroup.GET("/coins/csv", s.GetCoinsCSV)
	apiGroup.GET("/coin/:id", s.GetCoin)

	apiGroup.GET("/interests", s.GetInterests)
	apiGroup.POST("/interests", s.AddInterests)

	apiGroup.GET("/peers", s.GetPeers)
	apiGroup.GET("/peers/banned", s.GetBannedPeers)
}

// AdaptStdHandler wraps a net/http handler for echo.
func AdaptStdHandler(handler func(w http.ResponseWriter, r *http.Request)) echo.HandlerFunc {
	return func(c echo.Context) error {
		handler(c.Response().Writer, c.Request())
		return nil
	}
}

// Health reports API health. The full check fans out to the stores.
func (s *Server) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	if status, details, err := s.coinStore.Health(ctx); err != nil || status != http.StatusOK {
		return status, details, err
	}

	return s.chainStore.Health(ctx)
}

// Init validates configuration ahead of Start.
func (s *Server) Init(_ context.Context) error {
	if s.settings.API.HTTPListenAddress == "" {
		return errors.NewConfigurationError("api requires a listen address")
	}

	return nil
}

// Start serves HTTP until ctx is canceled.
func (s *Server) Start(ctx context.Context, readyCh chan<- struct{}) error {
	go func() {
		<-ctx.Done()

		s.logger.Infof("[walletapi] service shutting down")

		if err := s.e.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("[walletapi] shutdown error: %v", err)
		}
	}()

	addr := s.settings.API.HTTPListenAddress

	s.logger.Infof("[walletapi] HTTP listening on %s", addr)
	close(readyCh)

	if err := s.e.Start(addr); !errors.Is(err, http.ErrServerClosed) {
		return errors.NewServiceError("[walletapi] http server failed", err)
	}

	return nil
}

// Stop shuts the HTTP server down outside its context.
func (s *Server) Stop(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
