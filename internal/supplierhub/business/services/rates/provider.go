package rates

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"

	"supplierhub_api/internal/supplierhub/business/services/fetch"
	"supplierhub_api/metrics"
	"supplierhub_api/pkg/logger"
)

// Resolution tiers, from best to worst. Callers treat anything past
// ModeCache as a fallback worth warning about.
const (
	ModeSame       = "same"
	ModeLive       = "live"
	ModeCache      = "cache"
	ModeStaleCache = "stale-cache"
	ModeFixed      = "fixed"
	ModeUnity      = "unity"
)

const (
	// DefaultTableURL is the ECB daily reference rate table.
	DefaultTableURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"
	// BaseCurrency is the currency the reference table quotes against.
	BaseCurrency = "EUR"

	cacheTTL = 24 * time.Hour
)

// Result is a resolved conversion rate plus the tier that produced it.
type Result struct {
	Rate float64
	Mode string
}

// Fallback reports whether the rate came from a degraded tier.
func (r Result) Fallback() bool {
	return r.Mode == ModeStaleCache || r.Mode == ModeFixed || r.Mode == ModeUnity
}

// Provider supplies currency conversion rates. GetRate never fails: it
// walks fresh cache → live fetch → stale cache → fixed → 1.0 and always
// returns a usable rate.
type Provider interface {
	GetRate(ctx context.Context, from, to string, fixedFallback float64) Result
}

// Cache persists the last fetched rate table across runs.
type Cache interface {
	Load() (table map[string]float64, fetchedAt time.Time, err error)
	Store(table map[string]float64) error
}

type httpFetcher interface {
	Fetch(ctx context.Context, url string, auth fetch.AuthConfig, headers, query map[string]string) ([]byte, string, error)
}

// TableProvider resolves rates from a daily published reference table
// (currency → units per EUR), cached for 24 hours.
type TableProvider struct {
	http  httpFetcher
	cache Cache
	url   string
	log   logger.Logger

	mu        sync.Mutex
	table     map[string]float64
	fetchedAt time.Time
}

func NewTableProvider(http httpFetcher, cache Cache, url string, log logger.Logger) *TableProvider {
	if url == "" {
		url = DefaultTableURL
	}
	return &TableProvider{http: http, cache: cache, url: url, log: log}
}

// GetRate returns units of `from` per one `to`. The rate is the value a
// price in `from` gets divided by to land in `to`.
func (p *TableProvider) GetRate(ctx context.Context, from, to string, fixedFallback float64) Result {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to || from == "" {
		return p.done(Result{Rate: 1.0, Mode: ModeSame})
	}

	table, fetchedAt, cached := p.cachedTable()
	if cached && time.Since(fetchedAt) < cacheTTL {
		if rate, ok := crossRate(table, from, to); ok {
			return p.done(Result{Rate: rate, Mode: ModeCache})
		}
	}

	if fresh, err := p.fetchTable(ctx); err == nil {
		p.storeTable(fresh)
		if rate, ok := crossRate(fresh, from, to); ok {
			return p.done(Result{Rate: rate, Mode: ModeLive})
		}
	} else {
		p.log.Log("rate table fetch failed: %v", err)
	}

	if cached {
		if rate, ok := crossRate(table, from, to); ok {
			return p.done(Result{Rate: rate, Mode: ModeStaleCache})
		}
	}

	if fixedFallback > 0 {
		return p.done(Result{Rate: fixedFallback, Mode: ModeFixed})
	}

	return p.done(Result{Rate: 1.0, Mode: ModeUnity})
}

func (p *TableProvider) done(r Result) Result {
	metrics.RecordRateLookup(r.Mode)
	return r
}

func (p *TableProvider) cachedTable() (map[string]float64, time.Time, bool) {
	p.mu.Lock()
	if p.table != nil {
		t, at := p.table, p.fetchedAt
		p.mu.Unlock()
		return t, at, true
	}
	p.mu.Unlock()

	if p.cache == nil {
		return nil, time.Time{}, false
	}
	table, at, err := p.cache.Load()
	if err != nil || len(table) == 0 {
		return nil, time.Time{}, false
	}
	p.mu.Lock()
	p.table, p.fetchedAt = table, at
	p.mu.Unlock()
	return table, at, true
}

func (p *TableProvider) storeTable(table map[string]float64) {
	now := time.Now()
	p.mu.Lock()
	p.table, p.fetchedAt = table, now
	p.mu.Unlock()
	if p.cache != nil {
		if err := p.cache.Store(table); err != nil {
			p.log.Log("rate cache store failed: %v", err)
		}
	}
}

func (p *TableProvider) fetchTable(ctx context.Context) (map[string]float64, error) {
	body, _, err := p.http.Fetch(ctx, p.url, fetch.AuthConfig{Type: "none"}, nil, nil)
	if err != nil {
		return nil, err
	}
	table, err := ParseRateTable(body)
	if err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("rate table is empty")
	}
	return table, nil
}

// crossRate computes from→to dividing through the base currency. The
// table maps currency → units per one base; the base itself is implicit.
func crossRate(table map[string]float64, from, to string) (float64, bool) {
	perBase := func(code string) (float64, bool) {
		if code == BaseCurrency {
			return 1.0, true
		}
		r, ok := table[code]
		return r, ok && r > 0
	}
	f, okF := perBase(from)
	t, okT := perBase(to)
	if !okF || !okT {
		return 0, false
	}
	return f / t, true
}

// ParseRateTable extracts currency/rate pairs from the ECB daily cube
// XML document.
func ParseRateTable(body []byte) (map[string]float64, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rate table parse: %w", err)
	}
	nodes, err := xmlquery.QueryAll(doc, "//*[local-name()='Cube'][@currency]")
	if err != nil {
		return nil, fmt.Errorf("rate table query: %w", err)
	}
	table := make(map[string]float64, len(nodes))
	for _, n := range nodes {
		code := strings.ToUpper(n.SelectAttr("currency"))
		rate, err := strconv.ParseFloat(n.SelectAttr("rate"), 64)
		if err != nil || rate <= 0 {
			continue
		}
		table[code] = rate
	}
	return table, nil
}
