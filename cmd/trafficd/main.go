package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iamtahmad1/traffic-manager/internal/app"
	"github.com/iamtahmad1/traffic-manager/internal/platform/config"
	"github.com/iamtahmad1/traffic-manager/internal/platform/migrations"
)

func main() {
	envFile := flag.String("env-file", "", "path to a .env file to load before reading the environment")
	runMigrations := flag.Bool("migrate", true, "apply embedded schema migrations on startup")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("load env file %s: %v", *envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	rootCtx := context.Background()

	application, err := app.New(rootCtx, cfg, "traffic-manager-api")
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	if *runMigrations {
		if err := application.MigrateDB(migrations.Apply); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
	}

	samplerCtx, stopSampler := context.WithCancel(rootCtx)
	defer stopSampler()
	go application.RunSampler(samplerCtx)

	addr := cfg.APIHost + ":" + strconv.Itoa(cfg.APIPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           application.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		application.Logger.WithFields(logrus.Fields{"addr": addr}).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	application.Resilience.Drainer.StartDrain()
	application.Resilience.Drainer.AwaitDrain(cfg.DrainTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	stopSampler()
	if err := application.Close(shutdownCtx); err != nil {
		log.Printf("close application: %v", err)
	}
}
