package settings

import (
	"net/url"
	"time"
)

type KafkaSettings struct {
	Enabled           bool
	Hosts             string
	CoinEvents        string
	PeakEvents        string
	Partitions        int
	Port              int
	ReplicationFactor int
	FlushMessages     int
	FlushFrequency    time.Duration
}

type ChainStoreSettings struct {
	StoreURL     *url.URL
	CacheEnabled bool
	PruneDepth   int
}

type CoinStoreSettings struct {
	StoreURL                   *url.URL
	BloomCapacity              int
	BloomFalsePositiveRate     float64
	StoreBatcherSize           int
	StoreBatcherDurationMillis int
}

type WalletSyncSettings struct {
	TrustedPeers             []string
	ShortSyncThreshold       uint32
	SignatureSpotCheckWindow int
	SubscriptionBatchSize    int
	RecentWindowSize         int
	BehindPeerDisconnectGap  uint32
	RequestTimeout           time.Duration
	HeaderBatchSize          int
	FetchConcurrency         int
	MaxRetries               int
	RetrySleep               time.Duration
	PeerFailureCooldown      time.Duration
	ProofCacheTTL            time.Duration
	BreakerFailureThreshold  int
	BreakerResetTimeout      time.Duration
	FSMStateRestore          bool
	RequestRateLimit         float64
	RequestRateBurst         int
}

type P2PSettings struct {
	ListenAddresses    []string
	AdvertiseAddresses []string
	Port               int
	PrivateKey         string
	SharedKey          string
	UsePrivateDHT      bool
	DHTProtocolPrefix  string
	PeaksTopic         string
	BootstrapAddresses []string
	StaticPeers        []string
	BanThreshold       int
	BanDuration        time.Duration
	PeerMapSizeLimit   int
}

type APISettings struct {
	APIPrefix         string
	HTTPAddress       string
	HTTPListenAddress string
	HTTPPort          int
	PrivateKey        string
	DebugEnabled      bool
}

type TracingSettings struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
	ServiceName  string
}

type Settings struct {
	ClientName       string
	DataFolder       string
	Network          string
	GenesisChallenge string
	ChainStore       ChainStoreSettings
	CoinStore        CoinStoreSettings
	WalletSync       WalletSyncSettings
	P2P              P2PSettings
	API              APISettings
	Kafka            KafkaSettings
	Tracing          TracingSettings
}
