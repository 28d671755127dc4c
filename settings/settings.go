package settings

import (
	"time"
)

// Defaults for the wallet sync protocol. Each can be overridden through
// gocore configuration, but the values below are the protocol constants.
const (
	// DefaultShortSyncThreshold is the maximum distance in blocks between the
	// local peak and an announced peak for which a short backtrack sync is
	// attempted instead of a full resync.
	DefaultShortSyncThreshold = 100

	// DefaultSignatureSpotCheckWindow is the number of recent headers whose
	// farmer signatures are verified during coin state validation.
	DefaultSignatureSpotCheckWindow = 50

	// DefaultSubscriptionBatchSize is the number of puzzle subscriptions sent
	// to a peer per registration request.
	DefaultSubscriptionBatchSize = 1000

	// DefaultRecentWindowSize is the number of recently validated headers kept
	// in memory for chain inclusion checks.
	DefaultRecentWindowSize = 500

	// DefaultBehindPeerDisconnectGap is the height difference beyond which a
	// peer announcing a lighter chain is disconnected rather than ignored.
	DefaultBehindPeerDisconnectGap = 1000
)

func NewSettings() *Settings {
	return &Settings{
		ClientName:       getString("clientName", "walletnode"),
		DataFolder:       getString("dataFolder", "data"),
		Network:          getString("network", "mainnet"),
		GenesisChallenge: getString("genesisChallenge", ""),
		ChainStore: ChainStoreSettings{
			StoreURL:     getURL("chainstore", "sqlite:///chain"),
			CacheEnabled: getBool("chainstore_cache_enabled", true),
			PruneDepth:   getInt("chainstore_pruneDepth", 10_000),
		},
		CoinStore: CoinStoreSettings{
			StoreURL:                   getURL("coinstore", "sqlite:///coins"),
			BloomCapacity:              getInt("coinstore_bloomCapacity", 1_000_000),
			BloomFalsePositiveRate:     getFloat64("coinstore_bloomFalsePositiveRate", 0.001),
			StoreBatcherSize:           getInt("coinstore_storeBatcherSize", 256),
			StoreBatcherDurationMillis: getInt("coinstore_storeBatcherDurationMillis", 100),
		},
		WalletSync: WalletSyncSettings{
			TrustedPeers:             getMultiString("walletsync_trustedPeers", ""),
			ShortSyncThreshold:       uint32(getInt("walletsync_shortSyncThreshold", DefaultShortSyncThreshold)), //nolint:gosec
			SignatureSpotCheckWindow: getInt("walletsync_signatureSpotCheckWindow", DefaultSignatureSpotCheckWindow),
			SubscriptionBatchSize:    getInt("walletsync_subscriptionBatchSize", DefaultSubscriptionBatchSize),
			RecentWindowSize:         getInt("walletsync_recentWindowSize", DefaultRecentWindowSize),
			BehindPeerDisconnectGap:  uint32(getInt("walletsync_behindPeerDisconnectGap", DefaultBehindPeerDisconnectGap)), //nolint:gosec
			RequestTimeout:           time.Duration(getInt("walletsync_requestTimeoutSeconds", 30)) * time.Second,
			HeaderBatchSize:          getInt("walletsync_headerBatchSize", 500),
			FetchConcurrency:         getInt("walletsync_fetchConcurrency", 8),
			MaxRetries:               getInt("walletsync_maxRetries", 3),
			RetrySleep:               time.Duration(getInt("walletsync_retrySleepMillis", 1000)) * time.Millisecond,
			PeerFailureCooldown:      time.Duration(getInt("walletsync_peerFailureCooldownMinutes", 10)) * time.Minute,
			ProofCacheTTL:            time.Duration(getInt("walletsync_proofCacheTTLMinutes", 10)) * time.Minute,
			BreakerFailureThreshold:  getInt("walletsync_breakerFailureThreshold", 5),
			BreakerResetTimeout:      time.Duration(getInt("walletsync_breakerResetTimeoutSeconds", 60)) * time.Second,
			FSMStateRestore:          getBool("fsm_state_restore", false),
			RequestRateLimit:         getFloat64("walletsync_requestRateLimit", 50),
			RequestRateBurst:         getInt("walletsync_requestRateBurst", 100),
		},
		P2P: P2PSettings{
			ListenAddresses:    getMultiString("p2p_listen_addresses", "/ip4/0.0.0.0/tcp/9905"),
			AdvertiseAddresses: getMultiString("p2p_advertise_addresses", ""),
			Port:               getInt("P2P_PORT", 9905),
			PrivateKey:         getString("p2p_private_key", ""),
			SharedKey:          getString("p2p_shared_key", ""),
			UsePrivateDHT:      getBool("p2p_private_dht", false),
			DHTProtocolPrefix:  getString("p2p_dht_protocol_prefix", "/verdant"),
			PeaksTopic:         getString("p2p_peaks_topic", "verdant-peaks"),
			BootstrapAddresses: getMultiString("p2p_bootstrap_addresses", ""),
			StaticPeers:        getMultiString("p2p_static_peers", ""),
			BanThreshold:       getInt("p2p_ban_threshold", 100),
			BanDuration:        time.Duration(getInt("p2p_ban_duration_minutes", 60)) * time.Minute,
			PeerMapSizeLimit:   getInt("p2p_peer_map_size_limit", 1024),
		},
		API: APISettings{
			APIPrefix:         getString("api_apiPrefix", "/api/v1"),
			HTTPAddress:       getString("api_httpAddress", "http://localhost:8090/api/v1"),
			HTTPListenAddress: getString("api_httpListenAddress", ":8090"),
			HTTPPort:          getInt("API_HTTP_PORT", 8090),
			PrivateKey:        getString("api_private_key", ""),
			DebugEnabled:      getBool("api_debug_enabled", false),
		},
		Kafka: KafkaSettings{
			Enabled:           getBool("kafka_enabled", false),
			Hosts:             getString("KAFKA_HOSTS", "localhost:9092"),
			CoinEvents:        getString("KAFKA_COIN_EVENTS", "walletnode-coin-events"),
			PeakEvents:        getString("KAFKA_PEAK_EVENTS", "walletnode-peaks"),
			Partitions:        getInt("KAFKA_PARTITIONS", 1),
			Port:              getInt("KAFKA_PORT", 9092),
			ReplicationFactor: getInt("KAFKA_REPLICATION_FACTOR", 1),
			FlushMessages:     getInt("kafka_flushMessages", 100),
			FlushFrequency:    time.Duration(getInt("kafka_flushFrequencyMillis", 500)) * time.Millisecond,
		},
		Tracing: TracingSettings{
			Enabled:      getBool("tracing_enabled", false),
			OTLPEndpoint: getString("tracing_otlpEndpoint", "localhost:4318"),
			SampleRate:   getFloat64("tracing_sampleRate", 1.0),
			ServiceName:  getString("tracing_serviceName", "walletnode"),
		},
	}
}
