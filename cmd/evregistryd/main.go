package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"evregistry/cmd/internal/passphrase"
	"evregistry/config"
	"evregistry/core"
	"evregistry/crypto"
	"evregistry/native/bond"
	"evregistry/native/roles"
	"evregistry/observability/logging"
	"evregistry/observability/otel"
	"evregistry/rpc"
	"evregistry/storage"
)

const governmentPassEnv = "EVR_GOVERNMENT_PASS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := config.Validate(cfg); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv("EVR_ENV"))
	logger := logging.Setup(logging.Options{
		Service:    "evregistryd",
		Env:        env,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	if cfg.Telemetry.Metrics || cfg.Telemetry.Traces {
		shutdown, err := otel.Init(context.Background(), otel.Config{
			ServiceName: "evregistryd",
			Environment: env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     otel.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			logger.Error("Failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	govKey, err := loadGovernmentKey(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to load government key: %v", err))
	}
	government := addressBytes(govKey.PubKey().Address())

	registry := core.NewRegistry(db, core.Config{
		CollateralFiat:         cfg.Bond.CollateralFiat,
		RefundDepositOnRemoval: cfg.Bond.RefundDepositOnRemoval,
	})

	oracle, err := buildOracle(cfg.Oracle)
	if err != nil {
		panic(fmt.Sprintf("Failed to configure price oracle: %v", err))
	}
	registry.SetOracle(oracle)

	if err := bootstrapGovernment(registry, government, logger); err != nil {
		panic(fmt.Sprintf("Failed to bootstrap government principal: %v", err))
	}

	hub := rpc.NewEventHub()
	registry.SetEmitter(hub)

	if token := strings.TrimSpace(os.Getenv("EVR_RPC_TOKEN")); token == "" {
		logger.Warn("EVR_RPC_TOKEN is not set; mutating RPC methods will be rejected")
	} else {
		logger.Info("RPC bearer auth enabled", logging.MaskField("token", token))
	}

	rpcServer := rpc.NewServer(registry, hub)
	rpcErrCh := make(chan error, 1)
	go func() {
		rpcErrCh <- rpcServer.Start(cfg.RPCAddress)
		close(rpcErrCh)
	}()

	if err := waitForRPCStartup(cfg.RPCAddress, rpcErrCh, 5*time.Second); err != nil {
		logger.Error("RPC server failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Battery passport registry initialised and running",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("government", govKey.PubKey().Address().String()))

	if err, ok := <-rpcErrCh; ok && err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

// bootstrapGovernment provisions the configured key as the initial government
// principal on first run. Restarts with an existing membership are a no-op.
func bootstrapGovernment(registry *core.Registry, government [20]byte, logger *slog.Logger) error {
	members, err := registry.RoleMembers(roles.RoleGovernment)
	if err != nil {
		return err
	}
	if len(members) > 0 {
		return nil
	}
	if err := registry.Bootstrap(government); err != nil {
		return err
	}
	logger.Info("Government principal provisioned")
	return nil
}

func buildOracle(cfg config.Oracle) (bond.PriceOracle, error) {
	manual := bond.NewManualOracle()
	if rate := strings.TrimSpace(cfg.ManualRate); rate != "" {
		if err := manual.SetDecimal(bond.CollateralCurrency, bond.NativeCurrency, rate, time.Now()); err != nil {
			return nil, err
		}
	}

	aggregator := bond.NewOracleAggregator(cfg.Priority, cfg.MaxQuoteAge())
	aggregator.Register("manual", manual)
	if endpoint := strings.TrimSpace(cfg.FeedEndpoint); endpoint != "" {
		aggregator.Register("feed", bond.NewFeedOracle(nil, endpoint, "feed", cfg.FeedDecimals))
	}
	return aggregator, nil
}

// loadGovernmentKey decrypts the government keystore. The first-run keystore
// is written without a passphrase; anything else resolves the secret from the
// environment or an interactive prompt.
func loadGovernmentKey(cfg *config.Config) (*crypto.PrivateKey, error) {
	path := strings.TrimSpace(cfg.GovernmentKeystorePath)
	if path == "" {
		return nil, fmt.Errorf("government keystore path not configured")
	}

	if key, err := crypto.LoadFromKeystore(path, ""); err == nil {
		return key, nil
	}

	pass, err := passphrase.Resolve(governmentPassEnv)
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt keystore %s: %w", path, err)
	}
	return key, nil
}

func addressBytes(addr crypto.Address) [20]byte {
	var out [20]byte
	copy(out[:], addr.Bytes())
	return out
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		default:
		}

		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
