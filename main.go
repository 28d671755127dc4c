package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixge/fgprof"
	"github.com/joho/godotenv"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/verdant-network/walletnode/services/p2p"
	"github.com/verdant-network/walletnode/services/walletapi"
	"github.com/verdant-network/walletnode/services/walletsync"
	"github.com/verdant-network/walletnode/services/weightproof"
	"github.com/verdant-network/walletnode/settings"
	"github.com/verdant-network/walletnode/stores/chain"
	coinfactory "github.com/verdant-network/walletnode/stores/coin/factory"
	"github.com/verdant-network/walletnode/ulogger"
	"github.com/verdant-network/walletnode/util/kafka"
	"github.com/verdant-network/walletnode/util/retry"
	"github.com/verdant-network/walletnode/util/tracing"
	"golang.org/x/sync/errgroup"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "walletnode"

// Version & commit strings injected at build with -ldflags -X...
var version string
var commit string

func init() {
	gocore.SetInfo(progname, version, commit)
}

// service is the common lifecycle every long-running component implements.
type service interface {
	Init(ctx context.Context) error
	Start(ctx context.Context, readyCh chan<- struct{}) error
	Stop(ctx context.Context) error
}

func main() {
	// .env is optional; settings fall back to gocore config and defaults
	_ = godotenv.Load()

	startP2P := flag.Bool("p2p", true, "start the gossip service")
	startAPI := flag.Bool("api", true, "start the REST API service")
	help := flag.Bool("help", false, "show help")

	flag.Parse()

	if *help {
		fmt.Println("usage: walletnode [options]")
		fmt.Println("where options are:")
		fmt.Println("")
		fmt.Println("    -p2p=<1|0>")
		fmt.Println("          whether to start the gossip service (default=1)")
		fmt.Println("")
		fmt.Println("    -api=<1|0>")
		fmt.Println("          whether to start the REST API service (default=1)")
		fmt.Println("")

		return
	}

	logLevel, _ := gocore.Config().Get("logLevel")
	logger := ulogger.New(progname, ulogger.WithLevel(logLevel))

	tSettings := settings.NewSettings()

	logger.Infof("%s %s (%s) starting on network %s", progname, version, commit, tSettings.Network)

	go func() {
		profilerAddr, ok := gocore.Config().Get("profilerAddr")
		if ok {
			http.DefaultServeMux.Handle("/debug/fgprof", fgprof.Handler())

			logger.Infof("Starting profiler on http://%s/debug/pprof", profilerAddr)
			logger.Fatalf("%v", http.ListenAndServe(profilerAddr, nil))
		}
	}()

	prometheusEndpoint, ok := gocore.Config().Get("prometheusEndpoint")
	if ok && prometheusEndpoint != "" {
		logger.Infof("Starting prometheus endpoint on %s", prometheusEndpoint)
		http.Handle(prometheusEndpoint, promhttp.Handler())
	}

	if tSettings.Tracing.Enabled {
		if err := tracing.InitTracer(tSettings); err != nil {
			logger.Errorf("failed to initialize tracing: %v", err)
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()

				_ = tracing.ShutdownTracer(shutdownCtx)
			}()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	chainStore, err := chain.NewStore(logger, tSettings.ChainStore.StoreURL, tSettings)
	if err != nil {
		logger.Fatalf("failed to open chain store: %v", err)
	}

	defer func() { _ = chainStore.Close() }()

	coinStore, err := coinfactory.NewStore(logger, tSettings.CoinStore.StoreURL, tSettings)
	if err != nil {
		logger.Fatalf("failed to open coin store: %v", err)
	}

	defer func() { _ = coinStore.Close() }()

	var kafkaCh chan []byte

	if tSettings.Kafka.Enabled {
		kafkaCh = make(chan []byte, 10_000)

		kafkaURL := &url.URL{
			Scheme: "kafka",
			Host:   tSettings.Kafka.Hosts,
			Path:   "/" + tSettings.Kafka.CoinEvents,
			RawQuery: fmt.Sprintf("partitions=%d&replication=%d&flush_messages=%d&flush_frequency=%s",
				tSettings.Kafka.Partitions, tSettings.Kafka.ReplicationFactor,
				tSettings.Kafka.FlushMessages, tSettings.Kafka.FlushFrequency),
		}

		producer, err := retry.Retry(ctx, logger, 5, time.Second, "kafka producer connect",
			func() (*kafka.KafkaAsyncProducer, error) {
				return kafka.NewKafkaAsyncProducer(logger.New("kafka"), kafkaURL, kafkaCh)
			})
		if err != nil {
			logger.Fatalf("failed to start kafka producer: %v", err)
		}

		producer.Start(ctx)
	}

	wpValidator := weightproof.NewValidator(logger.New("wproof"), tSettings)

	syncServer := walletsync.NewServer(logger.New("wsync"), tSettings, chainStore, coinStore, wpValidator, nil, kafkaCh)

	type namedService struct {
		name string
		svc  service
	}

	services := []namedService{
		{name: "walletsync", svc: syncServer},
	}

	var p2pServer *p2p.Server

	if *startP2P {
		// wires itself in as the sync service's ban handler
		p2pServer = p2p.NewServer(logger.New("p2p"), tSettings, syncServer)
		services = append(services, namedService{name: "p2p", svc: p2pServer})
	}

	if *startAPI {
		var peers walletapi.PeerProvider
		if p2pServer != nil {
			peers = p2pServer
		}

		apiServer := walletapi.NewServer(logger.New("api"), tSettings, syncServer, chainStore, coinStore, peers)
		services = append(services, namedService{name: "walletapi", svc: apiServer})
	}

	g, gCtx := errgroup.WithContext(ctx)

	for _, svc := range services {
		if err := svc.svc.Init(gCtx); err != nil {
			logger.Fatalf("failed to init %s service: %v", svc.name, err)
		}
	}

	for _, svc := range services {
		name, srv := svc.name, svc.svc

		readyCh := make(chan struct{})

		g.Go(func() error {
			logger.Infof("Starting %s service", name)
			return srv.Start(gCtx, readyCh)
		})

		select {
		case <-readyCh:
		case <-gCtx.Done():
		}
	}

	select {
	case <-interrupt:
		logger.Infof("received shutdown signal")
	case <-gCtx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].svc.Stop(shutdownCtx); err != nil {
			logger.Errorf("error stopping %s service: %v", services[i].name, err)
		}
	}

	if err := g.Wait(); err != nil {
		logger.Errorf("service returned an error: %v", err)
		os.Exit(2)
	}
}
