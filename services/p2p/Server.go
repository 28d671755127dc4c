package p2p

import (
	"context"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/ordishs/go-utils/expiringmap"
	"github.com/ordishs/gocore"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/model"
	"github.com/verdant-network/walletnode/services/walletsync"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/ulogger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server is the gossip service: it owns the libp2p node, feeds peak
// announcements from the peaks topic into the sync service and enforces the
// ban policy the sync service reports misbehavior to.
type Server struct {
	logger     ulogger.Logger
	settings   *settings.Settings
	syncServer *walletsync.Server

	node       *Node
	banManager *PeerBanManager
	registry   *PeerRegistry

	// last peak hash seen per peer; gossip redelivers, the sync service
	// should not hear about the same peak from the same peer twice in a row
	recentAnnouncements *expiringmap.ExpiringMap[string, string]

	stats *gocore.Stat
}

// NewServer wires the gossip service to the sync service. The sync service's
// ban handler is pointed back at this server.
func NewServer(logger ulogger.Logger, tSettings *settings.Settings, syncServer *walletsync.Server) *Server {
	initPrometheusMetrics()

	s := &Server{
		logger:              logger,
		settings:            tSettings,
		syncServer:          syncServer,
		registry:            NewPeerRegistry(tSettings.P2P.PeerMapSizeLimit),
		recentAnnouncements: expiringmap.New[string, string](30 * time.Second),
		stats:               gocore.NewStat("p2p"),
	}

	s.banManager = NewPeerBanManager(context.Background(), s, tSettings)

	if syncServer != nil {
		syncServer.SetBanHandler(s)
	}

	return s
}

// Health reports gossip health: unhealthy until the node is up.
func (s *Server) Health(_ context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	if s.node == nil {
		return http.StatusServiceUnavailable, "node not started", nil
	}

	return http.StatusOK, "OK", nil
}

// Init validates configuration ahead of Start.
func (s *Server) Init(_ context.Context) error {
	if s.settings.P2P.PeaksTopic == "" {
		return errors.NewConfigurationError("p2p requires a peaks topic name")
	}

	return nil
}

// Start brings the libp2p node up, joins the peaks topic and runs until ctx
// is canceled.
func (s *Server) Start(ctx context.Context, readyCh chan<- struct{}) error {
	node, err := NewNode(s.logger, s.settings)
	if err != nil {
		return err
	}

	s.node = node

	node.SetDisconnectHandler(func(peerID string) {
		s.registry.Remove(peerID)

		if s.syncServer != nil {
			s.syncServer.OnPeerDisconnect(peerID)
		}
	})

	topicName := s.settings.P2P.PeaksTopic

	if err = node.Start(ctx, topicName); err != nil {
		return err
	}

	if err = node.SetTopicHandler(ctx, topicName, s.handlePeakMessage); err != nil {
		return err
	}

	close(readyCh)

	<-ctx.Done()

	return node.Close()
}

// Stop closes the node when the service is stopped outside its context.
func (s *Server) Stop(_ context.Context) error {
	if s.node != nil {
		return s.node.Close()
	}

	return nil
}

// handlePeakMessage turns one gossip message into a peak announcement for the
// sync service. The gossip transport identity always overrides whatever peer
// ID the payload claims.
func (s *Server) handlePeakMessage(_ context.Context, msg []byte, from string) {
	prometheusP2PMessagesReceived.Inc()

	if s.banManager.IsBanned(from) {
		prometheusP2PMessagesDropped.WithLabelValues("banned").Inc()
		return
	}

	var pa model.PeakAnnouncement

	if err := json.Unmarshal(msg, &pa); err != nil {
		s.logger.Warnf("[p2p] unparseable peak message from %s: %v", from, err)
		s.banManager.AddScore(from, ReasonMalformedAnnouncement)
		prometheusP2PMessagesDropped.WithLabelValues("malformed").Inc()

		return
	}

	pa.PeerID = from

	if last, ok := s.recentAnnouncements.Get(from); ok && last == pa.Hash {
		prometheusP2PMessagesDropped.WithLabelValues("duplicate").Inc()
		return
	}

	s.recentAnnouncements.Set(from, pa.Hash)

	s.registry.Touch(from, pa.DataHubURL)
	prometheusP2PPeakAnnouncements.Inc()

	if s.syncServer != nil {
		s.syncServer.OnNewPeak(&pa)
	}
}

// PublishPeak announces our own peak on the peaks topic.
func (s *Server) PublishPeak(ctx context.Context, pa *model.PeakAnnouncement) error {
	if s.node == nil {
		return errors.NewServiceNotStartedError("p2p node not started")
	}

	if pa.Timestamp == 0 {
		pa.Timestamp = time.Now().Unix()
	}

	pa.PeerID = s.node.HostID()

	payload, err := json.Marshal(pa)
	if err != nil {
		return errors.NewProcessingError("error marshaling peak announcement", err)
	}

	return s.node.Publish(ctx, s.settings.P2P.PeaksTopic, payload)
}

// AddBanScore scores reported misbehavior against a peer. Part of the sync
// service's ban handler interface.
func (s *Server) AddBanScore(peerID, reason string) {
	score, banned := s.banManager.AddScore(peerID, banReasonFromText(reason))
	s.logger.Infof("[p2p] peer %s ban score now %d (banned=%v): %s", peerID, score, banned, reason)
}

// DisconnectPeer drops the peer's connections and session.
func (s *Server) DisconnectPeer(peerID string) {
	s.registry.Remove(peerID)

	if s.node != nil {
		if err := s.node.DisconnectPeer(peerID); err != nil {
			s.logger.Debugf("[p2p] error disconnecting peer %s: %v", peerID, err)
		}
	}

	if s.syncServer != nil {
		s.syncServer.OnPeerDisconnect(peerID)
	}
}

// OnPeerBanned is the ban manager's event hook.
func (s *Server) OnPeerBanned(peerID string, until time.Time, reason string) {
	s.logger.Warnf("[p2p] peer %s banned until %s: %s", peerID, until.Format(time.RFC3339), reason)
	s.DisconnectPeer(peerID)
}

// Peers returns the registry snapshot for the REST surface.
func (s *Server) Peers() []PeerInfo {
	return s.registry.List()
}

// BannedPeers returns the currently banned peers and their ban expiries.
func (s *Server) BannedPeers() map[string]time.Time {
	return s.banManager.BannedPeers()
}

// NodeID returns the libp2p peer ID, or empty before Start.
func (s *Server) NodeID() string {
	if s.node == nil {
		return ""
	}

	return s.node.HostID()
}
