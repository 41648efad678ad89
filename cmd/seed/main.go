package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/fathima-sithara/graphql-chat/internal/auth"
	"github.com/fathima-sithara/graphql-chat/internal/config"
	"github.com/fathima-sithara/graphql-chat/internal/database"
	"github.com/fathima-sithara/graphql-chat/internal/pubsub"
	"github.com/fathima-sithara/graphql-chat/internal/repository"
	"github.com/fathima-sithara/graphql-chat/internal/service"
	"github.com/fathima-sithara/graphql-chat/internal/utils"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional config file")
	fixturePath := flag.String("fixture", "", "YAML fixture to load instead of the built-in one")
	reset := flag.Bool("reset", false, "drop users, rooms and messages before seeding")
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

	if cfg.Store.Driver != config.StoreMongo {
		sugar.Fatalf("seeding needs the mongo store, got %q", cfg.Store.Driver)
	}
	f, err := loadFixture(*fixturePath)
	if err != nil {
		sugar.Fatalf("fixture: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, client, err := database.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.DB, 30*time.Second, sugar)
	if err != nil {
		sugar.Fatalf("mongo connect failed: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	if *reset {
		if err := repository.DropAll(ctx, db); err != nil {
			sugar.Fatalf("reset: %v", err)
		}
		sugar.Infow("collections dropped", "db", cfg.Mongo.DB)
	}
	store, err := repository.NewMongoStore(ctx, db)
	if err != nil {
		sugar.Fatalf("mongo indexes failed: %v", err)
	}

	svc := service.New(service.Deps{
		Store:       store,
		Hasher:      auth.NewPasswordHasher(cfg.JWT.BcryptCost),
		Tokens:      auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry),
		PubSub:      pubsub.New(logger),
		FrontendURL: cfg.App.FrontendURL,
		Logger:      logger,
	})
	if _, err := apply(ctx, svc, f, logger); err != nil {
		sugar.Fatalf("seed failed: %v", err)
	}
	sugar.Info("Dummy data seeded successfully")
}
