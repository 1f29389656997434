package config

import (
	"fmt"
	"math/big"
	"strings"
)

// Validate rejects configurations that would let the registry start in an
// unusable state.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	collateral := strings.TrimSpace(cfg.Bond.CollateralFiat)
	amount, ok := new(big.Rat).SetString(collateral)
	if !ok {
		return fmt.Errorf("bond: invalid CollateralFiat %q", cfg.Bond.CollateralFiat)
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("bond: CollateralFiat must be positive")
	}
	if cfg.Oracle.MaxQuoteAgeSeconds <= 0 {
		return fmt.Errorf("oracle: MaxQuoteAgeSeconds must be positive")
	}
	if len(cfg.Oracle.Priority) == 0 {
		return fmt.Errorf("oracle: at least one feed required in Priority")
	}
	for _, name := range cfg.Oracle.Priority {
		trimmed := strings.ToLower(strings.TrimSpace(name))
		switch trimmed {
		case "manual", "feed":
		default:
			return fmt.Errorf("oracle: unknown feed %q in Priority", name)
		}
		if trimmed == "feed" && strings.TrimSpace(cfg.Oracle.FeedEndpoint) == "" {
			return fmt.Errorf("oracle: FeedEndpoint required when feed is prioritised")
		}
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("rpc: RPCAddress required")
	}
	return nil
}
