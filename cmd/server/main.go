package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/auth"
	"github.com/fathima-sithara/graphql-chat/internal/config"
	"github.com/fathima-sithara/graphql-chat/internal/database"
	"github.com/fathima-sithara/graphql-chat/internal/events"
	"github.com/fathima-sithara/graphql-chat/internal/graph"
	"github.com/fathima-sithara/graphql-chat/internal/metrics"
	"github.com/fathima-sithara/graphql-chat/internal/middleware"
	"github.com/fathima-sithara/graphql-chat/internal/presence"
	"github.com/fathima-sithara/graphql-chat/internal/pubsub"
	"github.com/fathima-sithara/graphql-chat/internal/repository"
	"github.com/fathima-sithara/graphql-chat/internal/server"
	"github.com/fathima-sithara/graphql-chat/internal/service"
	"github.com/fathima-sithara/graphql-chat/internal/utils"
	"github.com/fathima-sithara/graphql-chat/internal/ws"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	connectWait = 30 * time.Second
	presenceTTL = 24 * time.Hour
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.IsDevelopment(), cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]server.Check{}

	var (
		store       *repository.Store
		mongoClient *mongo.Client
	)
	switch cfg.Store.Driver {
	case config.StoreMemory:
		sugar.Warn("using in-memory store; data is lost on restart")
		store = repository.NewMemoryStore()
	default:
		db, client, err := database.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.DB, connectWait, sugar)
		if err != nil {
			sugar.Fatalf("mongo connect failed: %v", err)
		}
		mongoClient = client
		store, err = repository.NewMongoStore(ctx, db)
		if err != nil {
			sugar.Fatalf("mongo indexes failed: %v", err)
		}
		checks["mongo"] = func(ctx context.Context) error { return database.PingMongo(ctx, client) }
	}

	var (
		rdb      *redis.Client
		tracker  presence.Tracker = presence.NewMemoryTracker()
		limiter  middleware.Limiter
		perMin   = cfg.App.RateLimitPerMin
		redisPfx = cfg.Redis.Prefix
	)
	if cfg.Redis.Addr != "" {
		rdb, err = database.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, connectWait, sugar)
		if err != nil {
			sugar.Fatalf("redis connect failed: %v", err)
		}
		tracker = presence.NewRedisTracker(rdb, redisPfx, presenceTTL)
		if perMin > 0 {
			limiter = middleware.NewRedisRateLimiter(rdb, redisPfx, perMin, time.Minute)
		}
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else if perMin > 0 {
		ipLimiter := middleware.NewIPRateLimiter(perMin, perMin)
		go ipLimiter.Cleanup(ctx, 5*time.Minute)
		limiter = ipLimiter
	}

	bus := events.NewBus(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		bus.OnMessageSent(events.NewKafkaSink(cfg.Kafka.Brokers), cfg.Kafka.TopicMessageSent)
		sugar.Infow("kafka events enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.TopicMessageSent)
	}
	if cfg.NATS.URL != "" {
		sink, err := events.NewNATSSink(cfg.NATS.URL, logger)
		if err != nil {
			sugar.Warnw("nats unavailable, room events disabled", "error", err)
		} else {
			bus.OnRoomCreated(sink, cfg.NATS.SubjectRoomCreated)
		}
	}

	svc := service.New(service.Deps{
		Store:       store,
		Hasher:      auth.NewPasswordHasher(cfg.JWT.BcryptCost),
		Tokens:      auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry),
		PubSub:      pubsub.New(logger),
		Events:      bus,
		FrontendURL: cfg.App.FrontendURL,
		Logger:      logger,
	})
	exec, err := graph.NewExecutor(svc, logger)
	if err != nil {
		sugar.Fatalf("schema: %v", err)
	}

	app := server.New(server.Deps{
		FrontendURL: cfg.App.FrontendURL,
		Executor:    exec,
		WS: ws.NewHandler(exec, tracker, ws.Config{
			PingInterval:    cfg.WS.PingInterval,
			WriteDeadline:   cfg.WS.WriteDeadline,
			InitTimeout:     cfg.WS.InitTimeout,
			MaxMessageSize:  cfg.WS.MaxMessageSize,
			RateLimitPerSec: cfg.WS.RateLimitPerSec,
		}, logger),
		Limiter: limiter,
		Checks:  checks,
		Logger:  logger,
	})

	go func() {
		addr := ":" + cfg.App.PortString()
		sugar.Infof("graphql-chat listening on %s (http and ws at /graphql)", addr)
		if err := app.Listen(addr); err != nil {
			sugar.Errorf("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	sugar.Info("shutdown signal received, shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		sugar.Warnw("http shutdown", "error", err)
	}
	if err := bus.Close(shutdownCtx); err != nil {
		sugar.Warnw("event sinks close", "error", err)
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			sugar.Warnw("mongo disconnect", "error", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	logger.Info("graphql-chat stopped", zap.Duration("timeout", cfg.App.ShutdownTimeout))
}
