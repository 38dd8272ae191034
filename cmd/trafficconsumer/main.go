package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iamtahmad1/traffic-manager/internal/app"
	"github.com/iamtahmad1/traffic-manager/internal/consumers"
	"github.com/iamtahmad1/traffic-manager/internal/platform/config"
)

func main() {
	envFile := flag.String("env-file", "", "path to a .env file to load before reading the environment")
	consumerType := flag.String("type", "", "consumer group to run: cache_invalidation, cache_warming, or audit_log (defaults to $CONSUMER_TYPE)")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("load env file %s: %v", *envFile, err)
		}
	}

	requestedType := strings.TrimSpace(*consumerType)
	if requestedType == "" {
		requestedType = strings.TrimSpace(os.Getenv("CONSUMER_TYPE"))
	}

	typ, err := parseType(requestedType)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	rootCtx := context.Background()

	application, err := app.New(rootCtx, cfg, "traffic-manager-consumer-"+string(typ))
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
		defer cancel()
		_ = application.Close(closeCtx)
	}()

	handler, err := buildHandler(application, typ)
	if err != nil {
		log.Fatalf("build handler: %v", err)
	}

	runner, err := consumers.NewRunner(
		cfg.Kafka.BootstrapServers, cfg.Kafka.RouteEventsTopic, cfg.Kafka.ConsumerGroupPrefix,
		typ, cfg.Kafka.ConsumerAutoOffsetReset, cfg.Kafka.ConsumerAutoCommit, application.Logger,
	)
	if err != nil {
		log.Fatalf("start consumer group: %v", err)
	}
	defer runner.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application.Logger.Info("consumer starting")
	if err := runner.Run(ctx, handler); err != nil {
		log.Fatalf("consumer run: %v", err)
	}
}

func parseType(raw string) (consumers.Type, error) {
	switch consumers.Type(raw) {
	case consumers.TypeCacheInvalidation, consumers.TypeCacheWarming, consumers.TypeAuditLog:
		return consumers.Type(raw), nil
	default:
		return "", fmt.Errorf("unknown consumer type %q: want cache_invalidation, cache_warming, or audit_log", raw)
	}
}

func buildHandler(application *app.Application, typ consumers.Type) (consumers.Handler, error) {
	switch typ {
	case consumers.TypeCacheInvalidation:
		return consumers.NewInvalidationHandler(application.Cache), nil
	case consumers.TypeCacheWarming:
		return consumers.NewWarmingHandler(application.Resolver), nil
	case consumers.TypeAuditLog:
		return consumers.NewAuditHandler(application.Audit), nil
	default:
		return nil, fmt.Errorf("unknown consumer type %q", typ)
	}
}
