// Dashboard API serves pump flow dashboards computed from the stored readings.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	log "github.com/sirupsen/logrus"

	"github.com/NotCoffee418/pump_flow_monitor/pkg/api"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/config"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/dashboard"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/influxsource"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/pathing"
	"github.com/NotCoffee418/pump_flow_monitor/pkg/readingdb"
)

func main() {
	if err := pathing.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	// Load config
	if err := config.LoadDashboardAPIConfig(); err != nil {
		log.Fatalf("Failed to load dashboard API config: %v", err)
	}
	cfg := config.ActiveDashboardAPIConfig

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s storage: %v", cfg.Storage, err)
	}
	defer closeSource()

	dashboards := dashboard.NewService(source,
		dashboard.WithFetchTimeout(cfg.FetchTimeout()),
		dashboard.WithLocation(cfg.Location()),
	)
	server := api.NewServer(dashboards, cfg.RefreshInterval())

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	httpServer := &http.Server{
		Addr:              listener,
		Handler:           server.Handler(os.Stdout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.CloseClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting Pump Flow Monitor Dashboard API on %s (%s storage)", listener, cfg.Storage)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func openSource(ctx context.Context, cfg *config.DashboardAPIConfig) (dashboard.ReadingSource, func(), error) {
	switch cfg.Storage {
	case config.StorageInfluxDB:
		src, err := influxsource.NewSource(ctx, cfg.InfluxDB)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		store, err := readingdb.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
}
