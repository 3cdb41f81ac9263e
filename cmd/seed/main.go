package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/etherloops/ether-backend/internal/products"
	"github.com/etherloops/ether-backend/pkg/auth"
	"github.com/etherloops/ether-backend/pkg/config"
	"github.com/etherloops/ether-backend/pkg/db"
	"github.com/etherloops/ether-backend/pkg/enums"
	"github.com/etherloops/ether-backend/pkg/logger"
	"github.com/etherloops/ether-backend/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	printTokens := flag.Bool("tokens", false, "print dev access tokens for the seeded accounts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	if cfg.App.IsProd() {
		logg.Error(ctx, "refusing to seed", fmt.Errorf("seed is disabled in %s", cfg.App.Env))
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	var res seedResult
	err = dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var seedErr error
		res, seedErr = seedCatalog(ctx, products.NewRepository(tx), seedLoops)
		return seedErr
	})
	if err != nil {
		logg.Error(ctx, "failed to seed catalog", err)
		os.Exit(1)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"created": res.Created,
		"skipped": res.Skipped,
	}), "catalog seeded")

	if *printTokens {
		if err := writeTokens(cfg.JWT); err != nil {
			logg.Error(ctx, "failed to mint dev tokens", err)
			os.Exit(1)
		}
	}
}

func writeTokens(cfg config.JWTConfig) error {
	accounts := []struct {
		label string
		id    uuid.UUID
		role  enums.UserRole
		email string
	}{
		{label: "admin", id: uuid.NewSHA1(seedNamespace, []byte("admin")), role: enums.UserRoleAdmin, email: "admin@example.com"},
		{label: "vendor", id: vendorID(seedVendors[0].Brand), role: enums.UserRoleVendor, email: seedVendors[0].Email},
		{label: "shopper", id: uuid.NewSHA1(seedNamespace, []byte("shopper")), role: enums.UserRoleUser, email: "shopper@example.com"},
	}
	now := time.Now().UTC()
	for _, acc := range accounts {
		token, err := auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{UserID: acc.id, Role: acc.role, Email: acc.email})
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", acc.label, acc.id, token)
	}
	return nil
}
