package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/jaideep-27/spargen-project/internal/cache"
	"github.com/jaideep-27/spargen-project/internal/catalog"
	"github.com/jaideep-27/spargen-project/internal/config"
	"github.com/jaideep-27/spargen-project/internal/consumer"
	"github.com/jaideep-27/spargen-project/internal/engine"
	"github.com/jaideep-27/spargen-project/internal/guest"
	carthttp "github.com/jaideep-27/spargen-project/internal/http"
	"github.com/jaideep-27/spargen-project/internal/repository"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Load()
	ctx := context.Background()

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.String("uri", cfg.MongoURI), zap.Error(err))
	}
	logger.Info("connected to MongoDB", zap.String("db", cfg.MongoDBName))

	repo := repository.NewMongoRepository(mongoDB)
	if err := repo.CreateIndexes(ctx); err != nil {
		logger.Fatal("failed to create cart indexes", zap.Error(err))
	}
	lookup := catalog.NewMongoLookup(mongoDB)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis connection failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	cartCache := cache.NewRedisCache(redisClient)
	guestStore := guest.NewRedisStore(redisClient, cfg.GuestCartTTL)

	retry := engine.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
	}
	eng := engine.NewEngine(lookup, repo, guestStore, cartCache, retry, logger)

	handler := carthttp.NewCartHandler(eng, cfg.RequestTimeout, logger)
	router := carthttp.NewRouter(handler)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: otelhttp.NewHandler(router, "cart-service"),
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var orderConsumer *consumer.OrderConsumer
	if cfg.KafkaEnabled {
		orderConsumer = consumer.NewOrderConsumer(repo, cartCache, logger, cfg.KafkaBrokers...)
		go orderConsumer.Run(runCtx)
		logger.Info("order consumer started", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	go func() {
		logger.Info("cart service listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down cart service")
	stop()
	if orderConsumer != nil {
		orderConsumer.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		logger.Warn("mongo disconnect failed", zap.Error(err))
	}
	logger.Info("cart service stopped")
}
