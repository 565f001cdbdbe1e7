// Package daemon wires the ledger service, its store, event sinks and servers.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/giftledger/internal/events"
	"github.com/MarkoPoloResearchLab/giftledger/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/giftledger/internal/httpapi"
	"github.com/MarkoPoloResearchLab/giftledger/internal/logging"
	"github.com/MarkoPoloResearchLab/giftledger/internal/metrics"
	"github.com/MarkoPoloResearchLab/giftledger/internal/oplog"
	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Run serves gRPC and HTTP until ctx is cancelled or either server fails.
func Run(ctx context.Context, cfg Config) error {
	logger, _, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, closeSinks, err := buildEventSink(ctx, cfg.Events, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	operationLoggers := ledger.MultiOperationLogger{oplog.NewZapLogger(logger)}
	var metricsHandler http.Handler
	if cfg.Metrics {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		operationLoggers = append(operationLoggers, metrics.NewRecorder(registry))
		metricsHandler = metrics.Handler(registry)
	}

	clock := func() int64 { return time.Now().UTC().Unix() }
	ledgerService, err := ledger.NewService(store, clock,
		ledger.WithOperationLogger(operationLoggers),
		ledger.WithEventSink(sink),
		ledger.WithStartingGrant(ledger.TokenAmount(cfg.StartingGrant)),
	)
	if err != nil {
		return fmt.Errorf("ledger service init: %w", err)
	}
	if err := seedCatalog(ctx, cfg, ledgerService); err != nil {
		return err
	}

	router, err := httpapi.NewRouter(cfg.HTTP, ledgerService, logger, metricsHandler)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	grpcServer := grpcserver.NewServer(ledgerService)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("gRPC server starting", zap.String("listen_addr", cfg.GRPCListenAddr))
		if serveErr := grpcServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", serveErr)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown requested")
		grpcServer.GracefulStop()
		return nil
	})
	group.Go(func() error {
		return httpapi.Run(groupCtx, cfg.HTTP.ListenAddr, router, logger)
	})
	return group.Wait()
}

// Migrate creates or updates the schema of the configured store.
func Migrate(ctx context.Context, cfg Config) error {
	_, closeStore, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	closeStore()
	return nil
}

func seedCatalog(ctx context.Context, cfg Config, ledgerService *ledger.Service) error {
	definitions, err := cfg.GiftDefinitions()
	if err != nil {
		return err
	}
	for _, definition := range definitions {
		if err := ledgerService.UpsertGift(ctx, definition); err != nil {
			return fmt.Errorf("seed gift %s: %w", definition.ID.String(), err)
		}
	}
	return nil
}

// buildEventSink connects every configured broker and fans events out to all of them.
func buildEventSink(ctx context.Context, cfg EventsConfig, logger *zap.Logger) (ledger.EventSink, func(), error) {
	var (
		sinks    events.Fanout
		closers  []func()
		closeAll = func() {
			for index := len(closers) - 1; index >= 0; index-- {
				closers[index]()
			}
		}
	)
	if cfg.NATSURL != "" {
		conn, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, conn.Close)
		sinks = append(sinks, events.NewNATSSink(conn))
	}
	if cfg.RedisAddr != "" {
		client, err := events.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		sinks = append(sinks, events.NewRedisSink(client))
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = producer.Close() })
		sinks = append(sinks, events.NewKafkaSink(producer, cfg.KafkaTopic))
	}
	if cfg.LogEvents || len(sinks) == 0 {
		sinks = append(sinks, events.NewLogSink(logger))
	}
	return sinks, closeAll, nil
}
