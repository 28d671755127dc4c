// Package p2p carries the gossip side of the wallet daemon: a libp2p host
// subscribed to the peak announcement topic, peer bookkeeping and the ban
// manager that turns provable misbehavior into disconnects.
package p2p

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/pnet"
	"github.com/libp2p/go-libp2p/core/protocol"
	dRouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dUtil "github.com/libp2p/go-libp2p/p2p/discovery/util"
	"github.com/multiformats/go-multiaddr"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/ulogger"
)

// Handler processes one gossip message from a topic.
type Handler func(ctx context.Context, msg []byte, from string)

// Node wraps the libp2p host, its gossipsub instance and the joined topics.
type Node struct {
	logger   ulogger.Logger
	settings *settings.Settings

	host   host.Host
	pubSub *pubsub.PubSub

	topicsMu       sync.Mutex
	topics         map[string]*pubsub.Topic
	handlerByTopic map[string]Handler

	startTime time.Time
}

// NewNode creates the libp2p host. The identity key comes from configuration
// or is generated once and persisted under the data folder.
func NewNode(logger ulogger.Logger, tSettings *settings.Settings) (*Node, error) {
	pk, err := loadOrCreateKey(tSettings)
	if err != nil {
		return nil, err
	}

	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(tSettings.P2P.ListenAddresses...),
		libp2p.Identity(pk),
	}

	if tSettings.P2P.SharedKey != "" {
		psk, err := decodeSharedKey(tSettings.P2P.SharedKey)
		if err != nil {
			return nil, err
		}

		opts = append(opts, libp2p.PrivateNetwork(psk))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, errors.NewServiceError("[Node] error creating libp2p host", err)
	}

	logger.Infof("[Node] peer ID: %s", h.ID().String())

	for _, addr := range h.Addrs() {
		logger.Infof("[Node] listening on %s/p2p/%s", addr, h.ID().String())
	}

	return &Node{
		logger:         logger,
		settings:       tSettings,
		host:           h,
		topics:         make(map[string]*pubsub.Topic),
		handlerByTopic: make(map[string]Handler),
		startTime:      time.Now(),
	}, nil
}

// Start connects to static and bootstrap peers, runs topic discovery and
// joins the given gossip topics.
func (n *Node) Start(ctx context.Context, topicNames ...string) error {
	n.connectStaticPeers(ctx)

	if err := n.discoverPeers(ctx, topicNames); err != nil {
		return err
	}

	ps, err := pubsub.NewGossipSub(ctx, n.host,
		pubsub.WithMessageSignaturePolicy(pubsub.StrictSign),
	)
	if err != nil {
		return errors.NewServiceError("[Node] error creating gossipsub", err)
	}

	n.pubSub = ps

	n.topicsMu.Lock()
	defer n.topicsMu.Unlock()

	for _, topicName := range topicNames {
		topic, err := ps.Join(topicName)
		if err != nil {
			return errors.NewServiceError("[Node] error joining topic %s", topicName, err)
		}

		n.topics[topicName] = topic
		n.logger.Infof("[Node] joined topic: %s", topicName)
	}

	return nil
}

// SetTopicHandler subscribes to a joined topic and dispatches its messages to
// the handler on a dedicated goroutine.
func (n *Node) SetTopicHandler(ctx context.Context, topicName string, handler Handler) error {
	n.topicsMu.Lock()
	defer n.topicsMu.Unlock()

	if _, ok := n.handlerByTopic[topicName]; ok {
		return errors.NewServiceError("[Node] handler already exists for topic: %s", topicName)
	}

	topic, ok := n.topics[topicName]
	if !ok {
		return errors.NewServiceError("[Node] topic not joined: %s", topicName)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		return errors.NewServiceError("[Node] error subscribing to topic %s", topicName, err)
	}

	n.handlerByTopic[topicName] = handler

	go func() {
		for {
			m, err := sub.Next(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}

				n.logger.Errorf("[Node] error reading from topic %s: %v", topicName, err)

				continue
			}

			// Our own messages come back through gossip too.
			if m.ReceivedFrom == n.host.ID() {
				continue
			}

			handler(ctx, m.Data, m.ReceivedFrom.String())
		}
	}()

	return nil
}

// Publish sends a message on a joined topic.
func (n *Node) Publish(ctx context.Context, topicName string, msgBytes []byte) error {
	n.topicsMu.Lock()
	topic, ok := n.topics[topicName]
	n.topicsMu.Unlock()

	if !ok {
		return errors.NewServiceError("[Node] topic not found: %s", topicName)
	}

	return topic.Publish(ctx, msgBytes)
}

// SetDisconnectHandler registers a callback for peers leaving the host.
func (n *Node) SetDisconnectHandler(fn func(peerID string)) {
	n.host.Network().Notify(&network.NotifyBundle{
		DisconnectedF: func(_ network.Network, conn network.Conn) {
			fn(conn.RemotePeer().String())
		},
	})
}

// HostID returns this node's peer ID string.
func (n *Node) HostID() string {
	return n.host.ID().String()
}

// ConnectedPeers returns the currently connected peer IDs.
func (n *Node) ConnectedPeers() []string {
	peers := n.host.Network().Peers()

	out := make([]string, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.String())
	}

	return out
}

// DisconnectPeer closes all connections to the given peer.
func (n *Node) DisconnectPeer(peerID string) error {
	pid, err := peer.Decode(peerID)
	if err != nil {
		return errors.NewInvalidArgumentError("[Node] invalid peer ID %s", peerID, err)
	}

	return n.host.Network().ClosePeer(pid)
}

// Uptime returns how long the node has been running.
func (n *Node) Uptime() time.Duration {
	return time.Since(n.startTime)
}

// Close shuts the host down.
func (n *Node) Close() error {
	return n.host.Close()
}

func (n *Node) connectStaticPeers(ctx context.Context) {
	for _, addr := range n.settings.P2P.StaticPeers {
		if addr == "" {
			continue
		}

		if err := n.connectMultiaddr(ctx, addr); err != nil {
			n.logger.Warnf("[Node] could not connect static peer %s: %v", addr, err)
		}
	}
}

func (n *Node) connectMultiaddr(ctx context.Context, addr string) error {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return err
	}

	info, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return err
	}

	return n.host.Connect(ctx, *info)
}

// discoverPeers bootstraps a DHT and advertises the topics, feeding found
// peers to the host in the background.
func (n *Node) discoverPeers(ctx context.Context, topicNames []string) error {
	if len(n.settings.P2P.BootstrapAddresses) == 0 || n.settings.P2P.BootstrapAddresses[0] == "" {
		return nil
	}

	opts := []dht.Option{dht.Mode(dht.ModeAutoServer)}
	if n.settings.P2P.DHTProtocolPrefix != "" {
		opts = append(opts, dht.ProtocolPrefix(protocol.ID(n.settings.P2P.DHTProtocolPrefix)))
	}

	kad, err := dht.New(ctx, n.host, opts...)
	if err != nil {
		return errors.NewServiceError("[Node] error creating DHT", err)
	}

	if err = kad.Bootstrap(ctx); err != nil {
		return errors.NewServiceError("[Node] error bootstrapping DHT", err)
	}

	for _, addr := range n.settings.P2P.BootstrapAddresses {
		if addr == "" {
			continue
		}

		if err := n.connectMultiaddr(ctx, addr); err != nil {
			n.logger.Warnf("[Node] could not connect bootstrap peer %s: %v", addr, err)
		}
	}

	routingDiscovery := dRouting.NewRoutingDiscovery(kad)

	for _, topicName := range topicNames {
		dUtil.Advertise(ctx, routingDiscovery, topicName)

		go func(topicName string) {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()

			for {
				peerCh, err := routingDiscovery.FindPeers(ctx, topicName)
				if err != nil {
					n.logger.Warnf("[Node] error finding peers for %s: %v", topicName, err)
				} else {
					for p := range peerCh {
						if p.ID == n.host.ID() || len(p.Addrs) == 0 {
							continue
						}

						_ = n.host.Connect(ctx, p)
					}
				}

				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}(topicName)
	}

	return nil
}

func loadOrCreateKey(tSettings *settings.Settings) (crypto.PrivKey, error) {
	if tSettings.P2P.PrivateKey != "" {
		raw, err := hex.DecodeString(tSettings.P2P.PrivateKey)
		if err != nil {
			return nil, errors.NewInvalidArgumentError("[Node] error decoding private key", err)
		}

		pk, err := crypto.UnmarshalEd25519PrivateKey(raw)
		if err != nil {
			return nil, errors.NewInvalidArgumentError("[Node] invalid ed25519 private key", err)
		}

		return pk, nil
	}

	keyPath := filepath.Join(tSettings.DataFolder, "p2p.private_key")

	if raw, err := os.ReadFile(keyPath); err == nil {
		decoded, err := hex.DecodeString(string(raw))
		if err == nil {
			if pk, err := crypto.UnmarshalEd25519PrivateKey(decoded); err == nil {
				return pk, nil
			}
		}
	}

	pk, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, errors.NewServiceError("[Node] error generating private key", err)
	}

	raw, err := pk.Raw()
	if err != nil {
		return nil, errors.NewServiceError("[Node] error serializing private key", err)
	}

	if err := os.MkdirAll(tSettings.DataFolder, 0o700); err == nil {
		_ = os.WriteFile(keyPath, []byte(hex.EncodeToString(raw)), 0o600)
	}

	return pk, nil
}

func decodeSharedKey(sharedKey string) (pnet.PSK, error) {
	psk, err := hex.DecodeString(sharedKey)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("[Node] error decoding shared key", err)
	}

	if len(psk) != 32 {
		return nil, errors.NewInvalidArgumentError("[Node] shared key must be 32 bytes, got %d", len(psk))
	}

	return psk, nil
}
