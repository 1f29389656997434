package config

import (
	"os"
	"path/filepath"
	"strings"

	"evregistry/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress             string `toml:"RPCAddress"`
	DataDir                string `toml:"DataDir"`
	NetworkName            string `toml:"NetworkName"`
	GovernmentKeystorePath string `toml:"GovernmentKeystorePath"`

	Bond      Bond      `toml:"bond"`
	Oracle    Oracle    `toml:"oracle"`
	Telemetry Telemetry `toml:"telemetry"`
	Log       Log       `toml:"log"`
}

// Load reads the configuration from path, creating a default file and a
// government keystore on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./evregistry-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "evregistry-local"
	}
	if strings.TrimSpace(cfg.Bond.CollateralFiat) == "" {
		cfg.Bond.CollateralFiat = "5000"
	}
	if len(cfg.Oracle.Priority) == 0 {
		cfg.Oracle.Priority = []string{"manual"}
	}
	if cfg.Oracle.MaxQuoteAgeSeconds <= 0 {
		cfg.Oracle.MaxQuoteAgeSeconds = 300
	}
	if cfg.Oracle.FeedDecimals == 0 {
		cfg.Oracle.FeedDecimals = 8
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 28
	}
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.GovernmentKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.GovernmentKeystorePath != keystorePath {
		cfg.GovernmentKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file alongside a
// fresh government keystore.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:             ":8545",
		DataDir:                "./evregistry-data",
		NetworkName:            "evregistry-local",
		GovernmentKeystorePath: keystorePath,
	}
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "government.keystore")
}
