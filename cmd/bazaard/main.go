package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"bazaar/catalog"
	"bazaar/config"
	"bazaar/core/events"
	"bazaar/crypto"
	"bazaar/escrow"
	"bazaar/ledger"
	"bazaar/observability"
	"bazaar/observability/logging"
	"bazaar/observability/otel"
	"bazaar/rpc"
	"bazaar/storage"
)

const envKey = "BAZAAR_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envKey))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("bazaard", env, cfg.LogFile)

	shutdownTracing, err := otel.Init(context.Background(), otel.Config{
		ServiceName: "bazaard",
		Environment: env,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    true,
	})
	if err != nil {
		logger.Error("Failed to initialise tracing", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	platformWallet, err := crypto.DecodeAddress(cfg.PlatformWallet)
	if err != nil {
		logger.Error("Invalid platform wallet", slog.Any("error", err))
		os.Exit(1)
	}

	hub := events.NewHub()
	emitter := observability.NewMeteredEmitter(hub)

	led := ledger.NewLedger(db)
	cat := catalog.NewCatalog(db)
	cat.SetEmitter(emitter)

	engine := escrow.NewEngine()
	engine.SetState(escrow.NewStore(db))
	engine.SetCatalog(cat)
	engine.SetSettler(led)
	engine.SetEmitter(emitter)
	engine.SetPlatformWallet(platformWallet.Raw())
	if err := engine.SetFeeRateBps(cfg.FeeRateBps); err != nil {
		logger.Error("Invalid fee rate", slog.Any("error", err))
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(cfg.Authority); trimmed != "" {
		authority, err := crypto.DecodeAddress(trimmed)
		if err != nil {
			logger.Error("Invalid authority address", slog.Any("error", err))
			os.Exit(1)
		}
		engine.SetAuthority(authority.Raw())
	}

	auth := rpc.NewAuthenticator(rpc.AuthConfig{
		HMACSecret: cfg.AuthSecret,
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
	})
	if !auth.Enabled() {
		logger.Warn("RPC auth disabled; set AuthSecret or " + config.AuthSecretEnv + " for non-dev deployments")
	}

	server := rpc.NewServer(engine, cat, led, hub, auth, logger, cfg.AllowFaucet)
	logger.Info("bazaard starting",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("backend", cfg.StorageBackend),
		slog.Uint64("feeRateBps", uint64(engine.FeeRate())),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}
