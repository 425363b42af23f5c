package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/norun9/rocketshoes-cart/cartstore"
	"github.com/norun9/rocketshoes-cart/config"
	"github.com/norun9/rocketshoes-cart/engine"
	"github.com/norun9/rocketshoes-cart/inventory"
	"github.com/norun9/rocketshoes-cart/notify"
	"github.com/norun9/rocketshoes-cart/services"
	"github.com/norun9/rocketshoes-cart/telemetry"
)

const (
	version         = "v1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log, err := telemetry.NewLogger(cfg.LogLevel)
	if err != nil {
		logrus.Fatalf("invalid log level %q: %v", cfg.LogLevel, err)
	}

	// 1) OpenTelemetry
	tp, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, version, cfg.Telemetry.TracesExporter, cfg.Telemetry.Endpoint)
	if err != nil {
		log.Fatalf("failed to initialize tracer provider: %v", err)
	}
	mp, err := telemetry.InitMeterProvider(ctx, cfg.ServiceName, version, cfg.Telemetry.MetricsExporter, cfg.Telemetry.Endpoint)
	if err != nil {
		log.Fatalf("failed to initialize meter provider: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Error shutting down tracer provider: %v", err)
		}
		if err := mp.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Error shutting down meter provider: %v", err)
		}
	}()

	// 2) Durable store
	store := newStore(cfg, log)
	if err := store.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize cart store: %v", err)
	}

	// 3) Engine
	feed := notify.NewFeed(cfg.NotificationFeedSize)
	inv := inventory.NewClient(cfg.Inventory.Addr, cfg.Inventory.Timeout)
	eng, err := engine.New(ctx, engine.Options{
		Store:   store,
		Stock:   inv,
		Catalog: inv,
		Sink:    notify.Multi{notify.NewLogSink(log), feed},
		Logger:  log,
	})
	if err != nil {
		log.Fatalf("failed to create cart engine: %v", err)
	}
	log.WithField("products", eng.Cart().Len()).Info("Cart engine ready")

	// 4) HTTP and gRPC servers
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           services.NewCartService(eng, feed, log).Handler(cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthpb.RegisterHealthServer(grpcSrv, services.NewHealthCheckService(store, log))
	reflection.Register(grpcSrv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("HTTP server listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		addr := ":" + cfg.GRPCPort
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		log.Infof("gRPC health server listening on %s", addr)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Received shutdown signal, initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("server stopped: %v", err)
	}
}

// newStore picks Redis when an address is configured, memory otherwise.
func newStore(cfg config.Config, log *logrus.Logger) cartstore.ICartStore {
	if cfg.Redis.Addr == "" {
		log.Warn("REDIS_ADDR not set, using in-memory cart store; the cart will not survive a restart")
		return cartstore.NewLocalCartStore(log)
	}
	log.Infof("Using RedisCartStore with address %s", cfg.Redis.Addr)
	return cartstore.NewRedisCartStore(cfg.Redis.Addr, log,
		cartstore.WithNamespace(cfg.Redis.Namespace),
		cartstore.WithInitAttempts(cfg.Redis.InitAttempts),
	)
}
