// Command inventoryapi serves stock levels and product metadata from a JSON
// fixture, for running the cart engine without the real inventory services.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/norun9/rocketshoes-cart/inventory"
	"github.com/norun9/rocketshoes-cart/telemetry"
)

const defaultPort = "3333"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	log, err := telemetry.NewLogger(level)
	if err != nil {
		logrus.Fatalf("invalid log level %q: %v", level, err)
	}

	exporter := os.Getenv("OTEL_TRACES_EXPORTER")
	if exporter == "" {
		exporter = telemetry.ExporterNone
	}
	tp, err := telemetry.InitTracerProvider(ctx, "inventoryapi", "v1.0.0", exporter, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	path := os.Getenv("INVENTORY_FIXTURE")
	if path == "" {
		path = "db.json"
	}
	fixture, err := inventory.LoadFixture(path)
	if err != nil {
		log.Fatalf("failed to load fixture: %v", err)
	}

	port := defaultPort
	if value, ok := os.LookupEnv("PORT"); ok {
		port = value
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           inventory.NewServer(fixture, log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{"products": len(fixture.Products), "fixture": path}).Infof("Inventory API listening on port %s", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to serve: %v", err)
	}
}
