package credential

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	adapterports "github.com/kevin07696/newebpay-service/internal/adapters/ports"
	"github.com/kevin07696/newebpay-service/internal/adapters/secrets"
	"github.com/kevin07696/newebpay-service/internal/domain"
	"github.com/kevin07696/newebpay-service/internal/domain/ports"
)

var (
	// Note: cacheHits uses no labels to avoid allocation overhead on the callback path
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provider_credential_cache_hits_total",
		Help: "Total number of provider credential cache hits",
	})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_credential_cache_misses_total",
		Help: "Total number of provider credential cache misses",
	}, []string{"reason"}) // expired, not_found, error

	cacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "provider_credential_cache_size",
		Help: "Current number of provider credentials in cache",
	})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provider_credential_cache_evictions_total",
		Help: "Total number of cache evictions due to size limit",
	})
)

// Cache resolves provider credentials from the provider table and the secret
// manager, keeping them for ttl. It implements ports.CredentialLookup.
type Cache struct {
	cache     sync.Map // map[string]*cachedCredential
	providers ports.ProviderRepository
	secretMgr adapterports.SecretManagerAdapter
	logger    *zap.Logger

	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu sync.Mutex // serializes eviction
}

type cachedCredential struct {
	credential domain.ProviderCredential
	expiresAt  time.Time

	mu         sync.Mutex
	lastAccess time.Time
}

// NewCache creates a new provider credential cache
func NewCache(
	providers ports.ProviderRepository,
	secretMgr adapterports.SecretManagerAdapter,
	logger *zap.Logger,
	ttl time.Duration,
	maxSize int,
) *Cache {
	return &Cache{
		providers: providers,
		secretMgr: secretMgr,
		logger:    logger,
		ttl:       ttl,
		maxSize:   maxSize,
		now:       time.Now,
	}
}

var _ ports.CredentialLookup = (*Cache)(nil)

// FindCredential returns a copy of the active credential for the provider code
func (c *Cache) FindCredential(ctx context.Context, code string) (*domain.ProviderCredential, error) {
	now := c.now()
	if val, ok := c.cache.Load(code); ok {
		cached := val.(*cachedCredential)
		if now.Before(cached.expiresAt) {
			cached.mu.Lock()
			cached.lastAccess = now
			cached.mu.Unlock()

			cacheHits.Inc()
			cred := cached.credential
			return &cred, nil
		}
		cacheMisses.WithLabelValues("expired").Inc()
	} else {
		cacheMisses.WithLabelValues("not_found").Inc()
	}

	return c.fetchAndCache(ctx, code)
}

func (c *Cache) fetchAndCache(ctx context.Context, code string) (*domain.ProviderCredential, error) {
	account, err := c.providers.FindByCode(ctx, code)
	if err != nil {
		cacheMisses.WithLabelValues("error").Inc()
		return nil, err
	}
	if !account.Active {
		return nil, domain.NewDomainError(domain.ErrorCodeConfiguration, "payment provider is disabled").
			WithDetail("code", code)
	}

	hashKey, err := c.resolveSecret(ctx, account.HashKeyPath)
	if err != nil {
		cacheMisses.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch hash key: %w", err)
	}
	hashIV, err := c.resolveSecret(ctx, account.HashIVPath)
	if err != nil {
		cacheMisses.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch hash IV: %w", err)
	}

	cred := account.Credential(hashKey, hashIV)
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	now := c.now()
	c.cache.Store(code, &cachedCredential{
		credential: *cred,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
	})
	c.evictIfNeeded()

	c.logger.Info("Cached provider credential",
		zap.Object("credential", cred),
		zap.Duration("ttl", c.ttl),
	)

	out := *cred
	return &out, nil
}

// resolveSecret treats an empty path or a missing secret as incomplete configuration
func (c *Cache) resolveSecret(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	secret, err := c.secretMgr.GetSecret(ctx, path)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return "", domain.WrapError(domain.ErrorCodeConfiguration, "provider secret missing", err).
				WithDetail("path", path)
		}
		return "", err
	}
	return secret.Value, nil
}

// Invalidate removes a provider from the cache. Call after rotating secrets.
func (c *Cache) Invalidate(code string) {
	c.cache.Delete(code)
	c.updateCacheSize()

	c.logger.Info("Invalidated provider credential cache entry", zap.String("code", code))
}

// InvalidateAll clears the entire cache
func (c *Cache) InvalidateAll() {
	c.cache.Range(func(key, value interface{}) bool {
		c.cache.Delete(key)
		return true
	})
	c.updateCacheSize()
}

// evictIfNeeded drops the least recently used entries once maxSize is exceeded
func (c *Cache) evictIfNeeded() {
	c.mu.Lock()
	defer c.mu.Unlock()

	type entry struct {
		code       string
		lastAccess time.Time
	}

	var entries []entry
	c.cache.Range(func(key, value interface{}) bool {
		cached := value.(*cachedCredential)
		cached.mu.Lock()
		entries = append(entries, entry{code: key.(string), lastAccess: cached.lastAccess})
		cached.mu.Unlock()
		return true
	})

	if c.maxSize <= 0 || len(entries) <= c.maxSize {
		cacheSize.Set(float64(len(entries)))
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastAccess.Before(entries[j].lastAccess)
	})

	evictCount := len(entries) - c.maxSize
	for i := 0; i < evictCount; i++ {
		c.cache.Delete(entries[i].code)
		cacheEvictions.Inc()
	}

	cacheSize.Set(float64(len(entries) - evictCount))
}

func (c *Cache) updateCacheSize() {
	size := 0
	c.cache.Range(func(key, value interface{}) bool {
		size++
		return true
	})
	cacheSize.Set(float64(size))
}

// Len returns the number of cached providers
func (c *Cache) Len() int {
	size := 0
	c.cache.Range(func(key, value interface{}) bool {
		size++
		return true
	})
	return size
}
