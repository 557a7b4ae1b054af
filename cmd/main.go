package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/S-Sergio-A/messsages-microservice/internal/api"
	"github.com/S-Sergio-A/messsages-microservice/internal/auth"
	"github.com/S-Sergio-A/messsages-microservice/internal/config"
	"github.com/S-Sergio-A/messsages-microservice/internal/events"
	"github.com/S-Sergio-A/messsages-microservice/internal/kafka"
	"github.com/S-Sergio-A/messsages-microservice/internal/logger"
	"github.com/S-Sergio-A/messsages-microservice/internal/repository"
	"github.com/S-Sergio-A/messsages-microservice/internal/rights"
	"github.com/S-Sergio-A/messsages-microservice/internal/service"
	"github.com/S-Sergio-A/messsages-microservice/internal/storage"
	"github.com/S-Sergio-A/messsages-microservice/internal/ws"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	db, disconnect, err := repository.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DB)
	if err != nil {
		zlog.Fatalw("mongo connect", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = disconnect(shutdownCtx)
	}()
	repo := repository.NewMongoRepository(db)

	var oracle service.RightsOracle = rights.NewMongoOracle(db)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		oracle = rights.NewCached(oracle, rdb, cfg.RightsTTL)
	}

	uploader, err := storage.NewS3Uploader(ctx, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.KeyPrefix, zlog)
	if err != nil {
		zlog.Fatalw("s3 init", "error", err)
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReferences)
	defer producer.Close()
	publisher := events.NewPublisher(producer, cfg.Kafka.QueueSize, cfg.RetryDelay, cfg.Kafka.RetryAttempts, zlog)
	defer publisher.Close()

	hub := ws.NewHub()
	svc := service.NewMessageService(repo, oracle, uploader, publisher, hub, zlog)

	var jv *auth.Validator
	if cfg.JWT.Secret != "" {
		jv = auth.NewValidator(cfg.JWT.Secret)
	}
	wsrv := ws.NewServer(hub, svc, jv, ws.Options{
		PingInterval:  cfg.PingInterval,
		WriteDeadline: cfg.WriteDeadline,
		MaxMsgSize:    cfg.WS.MaxMessageSizeBytes,
	}, zlog)

	app := api.NewServer(cfg, wsrv, svc, zlog)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.PortString()
		zlog.Infow("starting messages service", "addr", addr, "env", cfg.App.Env)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		zlog.Fatalw("server error", "error", e)
	case s := <-sig:
		zlog.Infow("signal received", "signal", s.String())
	}

	if err := app.Shutdown(); err != nil {
		zlog.Errorw("fiber shutdown", "error", err)
	}
	zlog.Info("shutting down")
}
