package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"

	"uk.co.dudmesh.todo/internal/boot"
	"uk.co.dudmesh.todo/internal/server"
)

func main() {
	config, err := boot.Load()
	if err != nil {
		log.Fatalf("boot: %+v", err)
	}

	ctx := context.Background()
	store, err := server.OpenStore(ctx, config)
	if err != nil {
		log.Fatalf("opening %s store: %+v", config.Store.Driver, err)
	}
	defer store.Close()

	services, err := server.NewServices(config, store)
	if err != nil {
		log.Fatalf("creating services: %+v", err)
	}

	api := server.New(config, services, prometheus.DefaultRegisterer)
	metrics := server.NewMetrics()

	go func() {
		if err := metrics.Start(":" + config.Server.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	go func() {
		if err := api.Start(":" + config.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			api.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := api.Shutdown(ctx); err != nil {
		api.Logger.Error(err)
	}
	if err := metrics.Shutdown(ctx); err != nil {
		api.Logger.Error(err)
	}
}
