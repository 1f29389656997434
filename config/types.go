package config

import "time"

// Bond captures the compliance-bond policy knobs.
type Bond struct {
	// CollateralFiat is the minimum bond requirement denominated in the
	// collateral currency.
	CollateralFiat string `toml:"CollateralFiat"`
	// RefundDepositOnRemoval zeroes a manufacturer's deposit when the role
	// is withdrawn. The default preserves the balance.
	RefundDepositOnRemoval bool `toml:"RefundDepositOnRemoval"`
}

// Oracle configures the price feeds behind the minimum-deposit calculation.
type Oracle struct {
	// Priority orders the registered feeds; the first fresh quote wins.
	Priority []string `toml:"Priority"`
	// MaxQuoteAgeSeconds bounds quote staleness. Older quotes are skipped.
	MaxQuoteAgeSeconds int64 `toml:"MaxQuoteAgeSeconds"`
	// FeedEndpoint is the HTTP aggregator round endpoint, when configured.
	FeedEndpoint string `toml:"FeedEndpoint"`
	// FeedDecimals is the scale of the feed's integer answer.
	FeedDecimals uint8 `toml:"FeedDecimals"`
	// ManualRate seeds the manual override feed at startup, mainly for
	// local development.
	ManualRate string `toml:"ManualRate"`
}

// MaxQuoteAge returns the staleness bound as a duration.
func (o Oracle) MaxQuoteAge() time.Duration {
	if o.MaxQuoteAgeSeconds <= 0 {
		return 0
	}
	return time.Duration(o.MaxQuoteAgeSeconds) * time.Second
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// Log configures structured log output.
type Log struct {
	// FilePath enables rotated file output alongside stdout when set.
	FilePath   string `toml:"FilePath"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}
