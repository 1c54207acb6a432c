package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"crowdsale/config"
	"crowdsale/core/events"
	"crowdsale/gateway/middleware"
	"crowdsale/native/sale"
	"crowdsale/observability/logging"
	"crowdsale/observability/metrics"
	"crowdsale/rpc"
	"crowdsale/storage"
)

const jwtSecretEnv = "SALE_RPC_JWT_SECRET"

func main() {
	configFile := flag.String("config", "./sale.toml", "Path to the configuration file")
	tiersFlag := flag.String("tiers", "", "Path to a YAML tier schedule (overrides config TiersFile)")
	flag.Parse()

	logger := logging.Setup("saled")

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	params, err := cfg.SaleParams()
	if err != nil {
		logger.Error("Invalid sale parameters", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "sale"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	store := storage.NewSaleStore(db)
	engine := sale.NewEngine()
	engine.SetState(store)
	if err := engine.SetParams(params); err != nil {
		logger.Error("Failed to configure sale engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetEmitter(events.Fanout{metrics.NewObserver()})

	if err := seedTiers(engine, cfg, *tiersFlag, params.Owner, logger); err != nil {
		logger.Error("Failed to seed tier schedule", slog.Any("error", err))
		os.Exit(1)
	}

	secret := strings.TrimSpace(os.Getenv(jwtSecretEnv))
	if secret == "" {
		secret = strings.TrimSpace(cfg.RPCJWTSecret)
	}
	if secret == "" {
		logger.Warn("No RPC JWT secret configured; owner methods will reject every request")
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    true,
		HMACSecret: secret,
	}, logger)

	logger.Info("sale engine ready",
		slog.String("owner", cfg.OwnerAddress),
		slog.String("policy", cfg.ReleasePolicy),
		slog.String("tierModel", cfg.TierModel),
	)

	server := rpc.NewServer(engine, auth, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// seedTiers loads the tier schedule file and appends any tiers not yet present
// in storage. Existing tiers are left untouched so restarts are idempotent.
func seedTiers(engine *sale.Engine, cfg *config.Config, override string, owner [20]byte, logger *slog.Logger) error {
	path := strings.TrimSpace(override)
	if path == "" {
		path = strings.TrimSpace(cfg.TiersFile)
	}
	if path == "" {
		return nil
	}
	tiers, err := config.LoadTiers(path)
	if err != nil {
		return err
	}
	existing, err := engine.TierCount()
	if err != nil {
		return err
	}
	if int(existing) >= len(tiers) {
		return nil
	}
	for _, tier := range tiers[existing:] {
		added, err := engine.AddTier(owner, tier)
		if err != nil {
			return err
		}
		logger.Info("tier added", slog.Any("index", added.Index))
	}
	return nil
}
