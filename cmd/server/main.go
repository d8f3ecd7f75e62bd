package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"complaints-backend-go/internal/category"
	"complaints-backend-go/internal/config"
	"complaints-backend-go/internal/database"
	"complaints-backend-go/internal/filestore"
	httpserver "complaints-backend-go/internal/http"
	"complaints-backend-go/internal/identity"
	"complaints-backend-go/internal/logging"
	"complaints-backend-go/internal/notifier"
	"complaints-backend-go/internal/repository"
	"complaints-backend-go/internal/security"
	"complaints-backend-go/internal/submission"
)

var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		return
	}

	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger("complaints-api", "info").WithError(err).Fatal("invalid configuration")
	}
	log := logging.NewLogger("complaints-api", cfg.LogLevel)
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}

	sms, err := notifier.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("configure notifier")
	}
	files, err := filestore.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("configure file store")
	}
	if closer, ok := files.(io.Closer); ok {
		defer closer.Close()
	}

	secret := cfg.JWTSecret
	if secret == "" {
		if secret, err = randomSecret(); err != nil {
			log.WithError(err).Fatal("generate jwt secret")
		}
		log.Warn("JWT_SECRET not set, using a random key; tokens will not survive a restart")
	}
	tokens := security.NewTokenIssuer([]byte(secret), cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	ids := identity.NewService(store.Users, store.Otps, sms, tokens, log.WithField("component", "identity"), identity.Options{
		OTPTTL:    cfg.OTPTTL,
		FixedCode: cfg.OTPFixedCode,
	})
	if cfg.OTPFixedCode != "" {
		log.Warn("OTP_FIXED_CODE is set, every login uses the same code")
	}

	r := httpserver.NewServer(httpserver.Deps{
		Config:      cfg,
		Log:         log.WithField("component", "http"),
		Identity:    ids,
		Categories:  category.NewDirectory(store.Categories),
		Submissions: submission.NewService(store.Submissions, store.Categories, files, log.WithField("component", "submission")),
	})

	log.WithFields(logrus.Fields{"port": cfg.Port, "version": version}).Info("listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

// openStore connects and migrates postgres, or builds a seeded in-memory
// store for STORE_BACKEND=memory.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*repository.Store, error) {
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		store := repository.NewMemoryStore().Store()
		if _, err := category.Seed(ctx, store.Categories, category.Defaults, false, log); err != nil {
			return nil, err
		}
		return store, nil
	}

	db, err := database.Connect(cfg.DSN(), log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repository.NewGormStore(db), nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
