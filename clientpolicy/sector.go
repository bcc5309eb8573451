package clientpolicy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/instrumentation"
	"github.com/lumonhealth/oidc-core/security"
	"github.com/lumonhealth/oidc-core/storage"
)

// maxSectorDocumentSize bounds the sector identifier response body (1 MiB)
const maxSectorDocumentSize = 1 << 20

// sectorCache is an in-memory cache for fetched sector identifier documents
// with TTL support and oldest-entry eviction.
type sectorCache struct {
	mu         sync.RWMutex
	entries    map[string]*sectorCacheEntry
	maxEntries int
	ttl        time.Duration
	clock      oidc.Clock
}

// sectorCacheEntry holds a fetched redirect URI list with its expiry
type sectorCacheEntry struct {
	uris      []string
	expiresAt time.Time
	cachedAt  time.Time
}

func newSectorCache(ttl time.Duration, maxEntries int, clock oidc.Clock) *sectorCache {
	if maxEntries <= 0 {
		maxEntries = oidc.DefaultSectorCacheMaxEntries
	}
	if ttl <= 0 {
		ttl = oidc.DefaultSectorCacheTTL
	}
	if clock == nil {
		clock = oidc.SystemClock{}
	}
	return &sectorCache{
		entries:    make(map[string]*sectorCacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
	}
}

// Get retrieves a cached document if present and not expired
func (c *sectorCache) Get(uri string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[uri]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.uris, true
}

// Set stores a fetched document with the cache TTL
func (c *sectorCache) Set(uri string, uris []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	now := c.clock.Now()
	c.entries[uri] = &sectorCacheEntry{
		uris:      uris,
		expiresAt: now.Add(c.ttl),
		cachedAt:  now,
	}
}

// evictOldest removes the oldest cached entry (by cachedAt time).
// Caller must hold the write lock. O(n) eviction keeps the implementation
// simple for the default bound of 1000 entries.
func (c *sectorCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.cachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.cachedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Size returns the current number of cached entries
func (c *sectorCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// SectorFetcher retrieves sector identifier documents: JSON arrays of
// permitted redirect URIs, fetched over HTTP and cached by URI.
//
// Concurrent lookups for the same uncached URI collapse into a single
// outbound fetch via singleflight; fetches are rate limited per host.
type SectorFetcher struct {
	httpClient *http.Client
	cache      *sectorCache
	group      singleflight.Group
	limiter    *security.RateLimiter
	metrics    *instrumentation.Metrics
	auditor    *security.Auditor
}

// NewSectorFetcher creates a sector identifier fetcher from the server config
func NewSectorFetcher(cfg *oidc.Config) *SectorFetcher {
	f := &SectorFetcher{
		httpClient: cfg.HTTPClient,
		cache:      newSectorCache(cfg.SectorCacheTTL, cfg.SectorCacheMaxEntries, nil),
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: oidc.DefaultHTTPTimeout}
	}
	if cfg.SectorFetchRate > 0 {
		f.limiter = security.NewRateLimiter(cfg.SectorFetchRate, cfg.SectorFetchBurst, nil)
	}
	return f
}

// SetInstrumentation sets the metrics holder for fetch counters
func (f *SectorFetcher) SetInstrumentation(m *instrumentation.Metrics) {
	f.metrics = m
}

// SetClock replaces the time source used for cache expiry
func (f *SectorFetcher) SetClock(clock oidc.Clock) {
	if clock != nil {
		f.cache.clock = clock
	}
}

// SetAuditor sets the security auditor
func (f *SectorFetcher) SetAuditor(aud *security.Auditor) {
	f.auditor = aud
}

// Fetch returns the permitted redirect URIs published at the given sector
// identifier URI. Results are cached; concurrent callers for the same
// uncached URI share one outbound request. Fetch or parse failure is a
// configuration error, never a silent pass.
func (f *SectorFetcher) Fetch(ctx context.Context, sectorURI string) ([]string, error) {
	if uris, ok := f.cache.Get(sectorURI); ok {
		return uris, nil
	}

	u, err := url.Parse(sectorURI)
	if err != nil {
		return nil, oidc.ErrInvalidClientMetadata(fmt.Sprintf("invalid sector_identifier_uri: %v", err))
	}

	result, err, _ := f.group.Do(sectorURI, func() (interface{}, error) {
		// Double-check the cache: another goroutine may have filled it
		// while we waited for the flight slot
		if uris, ok := f.cache.Get(sectorURI); ok {
			return uris, nil
		}

		// One rate-limit token per outbound request, not per collapsed
		// caller
		if f.limiter != nil && !f.limiter.Allow(u.Hostname()) {
			return nil, oidc.ErrInvalidClientMetadata(
				fmt.Sprintf("rate limit exceeded for sector identifier fetches from %s", u.Hostname()))
		}

		uris, fetchErr := f.fetch(ctx, sectorURI)
		if fetchErr != nil {
			if f.metrics != nil {
				f.metrics.SectorFetchErrors.Add(ctx, 1)
			}
			f.auditor.LogEvent(security.Event{
				Type: security.EventSectorFetchFailed,
				Details: map[string]any{
					"sector_identifier_uri": sectorURI,
					"error":                 fetchErr.Error(),
				},
			})
			return nil, fetchErr
		}

		f.cache.Set(sectorURI, uris)
		return uris, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// fetch performs the outbound HTTP request and parses the JSON array
func (f *SectorFetcher) fetch(ctx context.Context, sectorURI string) ([]string, error) {
	if f.metrics != nil {
		f.metrics.SectorFetches.Add(ctx, 1)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sectorURI, nil)
	if err != nil {
		return nil, oidc.ErrInvalidClientMetadata(fmt.Sprintf("invalid sector_identifier_uri: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, oidc.ErrInvalidClientMetadata(
			fmt.Sprintf("unable to load sector identifier document %s: %v", sectorURI, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, oidc.ErrInvalidClientMetadata(
			fmt.Sprintf("sector identifier document %s returned status %d", sectorURI, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSectorDocumentSize))
	if err != nil {
		return nil, oidc.ErrInvalidClientMetadata(
			fmt.Sprintf("unable to read sector identifier document %s: %v", sectorURI, err))
	}

	var uris []string
	if err := json.Unmarshal(body, &uris); err != nil {
		return nil, oidc.ErrInvalidClientMetadata(
			fmt.Sprintf("sector identifier document %s is not a JSON array of URIs: %v", sectorURI, err))
	}
	return uris, nil
}

// validateSector checks the client's redirect URIs against its sector
// identifier document: every registered redirect URI must appear in the
// published list.
func (f *SectorFetcher) validateSector(ctx context.Context, client *storage.Client) error {
	published, err := f.Fetch(ctx, client.SectorIdentifierURI)
	if err != nil {
		return err
	}

	allowed := make(map[string]struct{}, len(published))
	for _, u := range published {
		allowed[u] = struct{}{}
	}
	for _, u := range client.RedirectURIs {
		if _, ok := allowed[u]; !ok {
			return oidc.ErrInvalidClientMetadata(
				fmt.Sprintf("redirect URI %s is not listed in the sector identifier document", u))
		}
	}
	return nil
}
