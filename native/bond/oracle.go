package bond

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// PriceQuote captures an exchange rate for a currency pair along with the
// timestamp reported by the upstream feed and the feed identifier.
type PriceQuote struct {
	Rate      *big.Rat
	Timestamp time.Time
	Source    string
}

// Clone returns a deep copy of the quote to prevent accidental mutations.
func (q PriceQuote) Clone() PriceQuote {
	clone := PriceQuote{Timestamp: q.Timestamp, Source: q.Source}
	if q.Rate != nil {
		clone.Rate = new(big.Rat).Set(q.Rate)
	}
	return clone
}

// RateString renders the rate using the supplied precision.
func (q PriceQuote) RateString(precision int) string {
	if q.Rate == nil {
		return ""
	}
	if precision < 0 {
		precision = 18
	}
	return q.Rate.FloatString(precision)
}

// PriceOracle resolves an exchange rate for the provided base/quote pair. The
// bond ledger only ever asks for the fiat collateral currency against the
// native settlement asset.
type PriceOracle interface {
	GetRate(base, quote string) (PriceQuote, error)
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ManualOracle provides an in-memory oracle implementation used for tests and
// manual overrides during incident response.
type ManualOracle struct {
	mu     sync.RWMutex
	quotes map[string]PriceQuote
}

// NewManualOracle constructs an empty manual oracle instance.
func NewManualOracle() *ManualOracle {
	return &ManualOracle{quotes: make(map[string]PriceQuote)}
}

func manualKey(base, quote string) string {
	return normaliseSymbol(base) + "_" + normaliseSymbol(quote)
}

// SetDecimal records the supplied decimal rate for the currency pair using
// the provided timestamp.
func (m *ManualOracle) SetDecimal(base, quote, rate string, ts time.Time) error {
	trimmed := strings.TrimSpace(rate)
	if trimmed == "" {
		return fmt.Errorf("manual oracle: rate required")
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return fmt.Errorf("manual oracle: invalid rate %q", rate)
	}
	if rat.Sign() <= 0 {
		return fmt.Errorf("manual oracle: rate must be positive")
	}
	m.Set(base, quote, rat, ts)
	return nil
}

// Set stores the provided rational rate for the currency pair.
func (m *ManualOracle) Set(base, quote string, rate *big.Rat, ts time.Time) {
	if rate == nil {
		return
	}
	m.mu.Lock()
	m.quotes[manualKey(base, quote)] = PriceQuote{
		Rate:      new(big.Rat).Set(rate),
		Timestamp: ts,
		Source:    "manual",
	}
	m.mu.Unlock()
}

// GetRate retrieves the stored rate for the currency pair.
func (m *ManualOracle) GetRate(base, quote string) (PriceQuote, error) {
	m.mu.RLock()
	stored, ok := m.quotes[manualKey(base, quote)]
	m.mu.RUnlock()
	if !ok {
		return PriceQuote{}, fmt.Errorf("manual oracle: quote for %s/%s not found", base, quote)
	}
	return stored.Clone(), nil
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// feedRequestTimeout bounds a single feed fetch. The facade holds its write
// lock across oracle reads, so a stalled upstream must fail instead of hang.
const feedRequestTimeout = 5 * time.Second

// FeedOracle fetches an aggregator-style reference price over HTTP. The
// endpoint is expected to answer with the usual round payload where the
// integer answer is scaled by the feed's decimals.
type FeedOracle struct {
	client   HTTPDoer
	endpoint string
	decimals uint8
	source   string
}

// NewFeedOracle constructs a feed adapter. When client is nil a client with
// the default request timeout is used; decimals of zero falls back to the
// customary eight.
func NewFeedOracle(client HTTPDoer, endpoint, source string, decimals uint8) *FeedOracle {
	if client == nil {
		client = &http.Client{Timeout: feedRequestTimeout}
	}
	if decimals == 0 {
		decimals = 8
	}
	name := strings.ToLower(strings.TrimSpace(source))
	if name == "" {
		name = "feed"
	}
	return &FeedOracle{
		client:   client,
		endpoint: strings.TrimSpace(endpoint),
		decimals: decimals,
		source:   name,
	}
}

func (o *FeedOracle) GetRate(base, quote string) (PriceQuote, error) {
	if o.endpoint == "" {
		return PriceQuote{}, fmt.Errorf("feed oracle %s: endpoint not configured", o.source)
	}
	req, err := http.NewRequest(http.MethodGet, o.endpoint, nil)
	if err != nil {
		return PriceQuote{}, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return PriceQuote{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return PriceQuote{}, fmt.Errorf("feed oracle %s: status %d: %s", o.source, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Answer    string `json:"answer"`
		UpdatedAt int64  `json:"updatedAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return PriceQuote{}, fmt.Errorf("feed oracle %s: decode: %w", o.source, err)
	}
	answer, ok := new(big.Int).SetString(strings.TrimSpace(payload.Answer), 10)
	if !ok || answer.Sign() <= 0 {
		return PriceQuote{}, fmt.Errorf("feed oracle %s: invalid answer %q", o.source, payload.Answer)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(o.decimals)), nil)
	rate := new(big.Rat).SetFrac(answer, scale)
	ts := time.Unix(payload.UpdatedAt, 0)
	return PriceQuote{Rate: rate, Timestamp: ts, Source: o.source}, nil
}

// OracleAggregator consults a list of registered oracles in priority order
// until a fresh quote is obtained.
type OracleAggregator struct {
	mu       sync.RWMutex
	priority []string
	oracles  map[string]PriceOracle
	maxAge   time.Duration
}

// NewOracleAggregator constructs an aggregator with the provided priority and
// freshness window.
func NewOracleAggregator(priority []string, maxAge time.Duration) *OracleAggregator {
	return &OracleAggregator{
		priority: append([]string{}, priority...),
		oracles:  make(map[string]PriceOracle),
		maxAge:   maxAge,
	}
}

// SetMaxAge updates the freshness window used when filtering quotes.
func (a *OracleAggregator) SetMaxAge(maxAge time.Duration) {
	a.mu.Lock()
	a.maxAge = maxAge
	a.mu.Unlock()
}

// Register adds or replaces an oracle under the supplied identifier and
// appends it to the priority list when not already present.
func (a *OracleAggregator) Register(name string, oracle PriceOracle) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" || oracle == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.oracles[trimmed] = oracle
	for _, entry := range a.priority {
		if strings.EqualFold(entry, trimmed) {
			return
		}
	}
	a.priority = append(a.priority, trimmed)
}

// GetRate fetches a rate from the configured oracles respecting the priority
// ordering, enforcing the freshness window, and returning a defensive copy.
// When every feed fails or is stale the error wraps ErrOracleUnavailable so
// callers can decide whether to retry.
func (a *OracleAggregator) GetRate(base, quote string) (PriceQuote, error) {
	a.mu.RLock()
	priority := append([]string{}, a.priority...)
	maxAge := a.maxAge
	a.mu.RUnlock()

	baseSym := normaliseSymbol(base)
	quoteSym := normaliseSymbol(quote)
	if baseSym == "" || quoteSym == "" {
		return PriceQuote{}, fmt.Errorf("oracle: base and quote required")
	}

	cutoff := time.Time{}
	if maxAge > 0 {
		cutoff = time.Now().Add(-maxAge)
	}

	var lastErr error
	for _, name := range priority {
		a.mu.RLock()
		oracle := a.oracles[strings.ToLower(name)]
		a.mu.RUnlock()
		if oracle == nil {
			continue
		}
		q, err := oracle.GetRate(baseSym, quoteSym)
		if err != nil {
			lastErr = err
			continue
		}
		if q.Rate == nil || q.Rate.Sign() <= 0 {
			lastErr = fmt.Errorf("oracle %s returned invalid rate", name)
			continue
		}
		if maxAge > 0 && q.Timestamp.Before(cutoff) {
			lastErr = fmt.Errorf("%w: %s quote stale", ErrOracleUnavailable, name)
			continue
		}
		result := q.Clone()
		if strings.TrimSpace(result.Source) == "" {
			result.Source = strings.ToLower(name)
		}
		return result, nil
	}

	if lastErr == nil {
		return PriceQuote{}, ErrOracleUnavailable
	}
	return PriceQuote{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, lastErr)
}

// ComputeMinimumDeposit converts the fiat collateral requirement into native
// units at the supplied rate (fiat per native unit), scaled by decimals. The
// division floors, matching integer settlement semantics.
func ComputeMinimumDeposit(fiatAmount string, rate *big.Rat, decimals uint8) (*big.Int, error) {
	trimmed := strings.TrimSpace(fiatAmount)
	if trimmed == "" {
		return nil, fmt.Errorf("bond: collateral amount required")
	}
	fiat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("bond: invalid collateral amount %q", fiatAmount)
	}
	if fiat.Sign() <= 0 {
		return nil, fmt.Errorf("bond: collateral amount must be positive")
	}
	if rate == nil || rate.Sign() <= 0 {
		return nil, fmt.Errorf("bond: oracle rate must be positive")
	}
	native := new(big.Rat).Quo(fiat, rate)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	native.Mul(native, new(big.Rat).SetInt(scale))
	result := new(big.Int).Quo(native.Num(), native.Denom())
	if result.Sign() < 0 {
		return nil, fmt.Errorf("bond: computed minimum negative")
	}
	return result, nil
}
