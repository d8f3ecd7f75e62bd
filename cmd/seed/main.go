package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"complaints-backend-go/internal/category"
	"complaints-backend-go/internal/config"
	"complaints-backend-go/internal/database"
	"complaints-backend-go/internal/logging"
	"complaints-backend-go/internal/repository"
)

func main() {
	clearFirst := flag.Bool("clear", false, "delete every category (and its submissions) before seeding")
	flag.Parse()

	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("complaints-seed", "info").WithError(err).Fatal("invalid configuration")
	}
	log := logging.NewLogger("complaints-seed", cfg.LogLevel)
	if cfg.StoreBackend != "postgres" {
		log.WithField("store_backend", cfg.StoreBackend).Fatal("seeding needs STORE_BACKEND=postgres")
	}

	db, err := database.Connect(cfg.DSN(), log)
	if err != nil {
		log.WithError(err).Fatal("connect")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	store := repository.NewGormStore(db)
	res, err := category.Seed(context.Background(), store.Categories, category.Defaults, *clearFirst, log)
	if err != nil {
		log.WithError(err).Fatal("seed categories")
	}
	log.WithFields(logrus.Fields{
		"created":   res.Created,
		"updated":   res.Updated,
		"unchanged": res.Unchanged,
	}).Info("categories seeded")
}
