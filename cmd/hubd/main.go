// Command hubd is the hub daemon: it runs the chain watcher, liquidation
// monitor and contract coordinator against a Postgres-backed store, and
// exposes a read-only gRPC event stream for the notification and
// integration collaborators. The bootstrap follows the shared flag-parsed
// config, structured logging, OTel init and signal-based graceful shutdown
// shape used by every daemon in this repository.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"

	"github.com/satlend/hub/chain"
	"github.com/satlend/hub/config"
	"github.com/satlend/hub/coordinator"
	"github.com/satlend/hub/eventstream"
	"github.com/satlend/hub/liquidation"
	"github.com/satlend/hub/observability/logging"
	telemetry "github.com/satlend/hub/observability/otel"
	"github.com/satlend/hub/storage/postgres"
)

func main() {
	var cfgPath string
	var daemonCfgPath string
	flag.StringVar(&cfgPath, "config", "hubd.toml", "path to the shared hub config")
	flag.StringVar(&daemonCfgPath, "daemon-config", "hubd.yaml", "path to hubd's own config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("HUB_ENV"))
	logging.Setup("hubd", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "hubd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	dcfg, err := loadDaemonConfig(daemonCfgPath)
	if err != nil {
		log.Fatalf("load daemon config: %v", err)
	}

	db, err := postgres.Connect(cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}

	contractStore := postgres.NewContractStore(db)
	liquidationSource := postgres.NewLiquidationSource(db)
	collateralTxStore := postgres.NewCollateralTxStore(db)

	thresholds, err := cfg.Liquidation.Thresholds()
	if err != nil {
		log.Fatalf("invalid liquidation thresholds: %v", err)
	}

	auditLog, auditCloser := logging.NewAuditLogger(dcfg.AuditLogPath)
	defer auditCloser.Close()
	events := eventstream.NewServer(nil)
	emitter := multiEmitter{events, auditEmitter{log: auditLog}}

	coord := coordinator.New(contractStore, emitter,
		coordinator.WithShardCount(dcfg.ShardCount))

	ledger, err := chain.OpenLedger(cfg.DataDir)
	if err != nil {
		log.Fatalf("open chain ledger: %v", err)
	}
	defer ledger.Close()

	backends, mempoolBackend, err := buildBackends(cfg)
	if err != nil {
		log.Fatalf("configure chain backends: %v", err)
	}
	watcher, err := chain.New(backends, ledger, coord, cfg.WatcherInterval(),
		chain.WithMinConfirmations(cfg.MinConfirmations),
		chain.WithArchiver(newPGArchiver(collateralTxStore)))
	if err != nil {
		log.Fatalf("construct chain watcher: %v", err)
	}

	cache := liquidation.NewCache()
	monitor, err := liquidation.New(cache, liquidationSource, coord, thresholds)
	if err != nil {
		log.Fatalf("construct liquidation monitor: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: dcfg.MetricsAddr, Handler: otelhttp.NewHandler(mux, "hubd-metrics")}

	grpcServer := grpc.NewServer(
		grpc.ChainStreamInterceptor(otelgrpc.StreamServerInterceptor()),
	)
	events.Attach(grpcServer)
	eventListener, err := net.Listen("tcp", dcfg.EventStreamAddr)
	if err != nil {
		log.Fatalf("listen on %s: %v", dcfg.EventStreamAddr, err)
	}

	errs := make(chan error, 6)
	go func() { errs <- coord.Run(ctx) }()
	go func() { errs <- watcher.Run(ctx) }()
	go func() { errs <- monitor.Run(ctx) }()
	if mempoolBackend != nil {
		go func() { errs <- watcher.RunSubscription(ctx, mempoolBackend) }()
	}
	go func() {
		log.Printf("hubd event stream listening on %s", dcfg.EventStreamAddr)
		errs <- grpcServer.Serve(eventListener)
	}()
	go func() {
		log.Printf("hubd metrics listening on %s", dcfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
	case err := <-errs:
		if err != nil && err != context.Canceled {
			log.Printf("worker loop exited: %v", err)
		}
		stop()
	}

	grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

func buildBackends(cfg *config.Config) ([]chain.Backend, *chain.MempoolSpaceBackend, error) {
	if len(cfg.ChainBackendURLs) == 0 {
		return nil, nil, fmt.Errorf("hubd: at least one ChainBackendURLs entry required")
	}
	backends := make([]chain.Backend, 0, len(cfg.ChainBackendURLs))
	for i, url := range cfg.ChainBackendURLs {
		name := fmt.Sprintf("esplora-%d", i)
		backends = append(backends, chain.NewEsploraBackend(name, url, 4.0))
	}
	var mempool *chain.MempoolSpaceBackend
	if strings.TrimSpace(cfg.MempoolWSURL) != "" {
		mempool = chain.NewMempoolSpaceBackend("mempool-space", cfg.ChainBackendURLs[0], cfg.MempoolWSURL, 4.0)
		backends = append(backends, mempool)
	}
	return backends, mempool, nil
}
