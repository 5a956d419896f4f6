package membership

import (
	"context"
	"sync"
	"time"

	"github.com/getclave/activity-indexer/internal/cache"
	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/getclave/activity-indexer/internal/metrics"
	"github.com/getclave/activity-indexer/internal/store"
)

// WalletCacheConfig configures the tracked-wallet membership cache.
type WalletCacheConfig struct {
	NegativeCacheCapacity int
	NegativeCacheTTL      time.Duration
}

// WalletCache answers "is this address a tracked wallet" in bulk. An
// address proven to qualify joins a process-wide set and is never
// re-checked. Negatives are cached with a TTL so wallets registered after
// process start are picked up once the entry expires. Unknown addresses go
// to the authoritative wallet store in one batched lookup.
type WalletCache struct {
	repo store.WalletRepository

	mu      sync.RWMutex
	tracked map[string]struct{}

	negative *cache.AddressSet
}

// NewWalletCache creates a WalletCache backed by the given repository.
func NewWalletCache(repo store.WalletRepository, cfg WalletCacheConfig) *WalletCache {
	if cfg.NegativeCacheCapacity <= 0 {
		cfg.NegativeCacheCapacity = 100_000
	}
	if cfg.NegativeCacheTTL <= 0 {
		cfg.NegativeCacheTTL = 10 * time.Minute
	}
	return &WalletCache{
		repo:     repo,
		tracked:  make(map[string]struct{}),
		negative: cache.NewAddressSet(cfg.NegativeCacheCapacity, cfg.NegativeCacheTTL),
	}
}

// BulkCheck returns the subset of addrs that are tracked wallets. The
// input is partitioned into cached-positive, cached-negative and unknown;
// only the unknowns cost a store round trip. Store errors propagate — the
// router must never silently treat a wallet as untracked in production.
func (w *WalletCache) BulkCheck(ctx context.Context, addrs []string) (map[string]struct{}, error) {
	result := make(map[string]struct{}, len(addrs))
	var unknown []string

	w.mu.RLock()
	for _, addr := range addrs {
		addr = model.NormalizeAddress(addr)
		if _, ok := w.tracked[addr]; ok {
			result[addr] = struct{}{}
			metrics.MembershipCacheHits.WithLabelValues("wallet").Inc()
			continue
		}
		if w.negative.Contains(addr) {
			metrics.MembershipCacheHits.WithLabelValues("wallet").Inc()
			continue
		}
		unknown = append(unknown, addr)
	}
	w.mu.RUnlock()

	if len(unknown) == 0 {
		return result, nil
	}

	metrics.MembershipStoreLookups.WithLabelValues("wallet").Inc()
	found, err := w.repo.FilterTracked(ctx, unknown)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	for _, addr := range unknown {
		if _, ok := found[addr]; ok {
			w.tracked[addr] = struct{}{}
			result[addr] = struct{}{}
		} else {
			w.negative.Add(addr)
		}
	}
	w.mu.Unlock()

	return result, nil
}

// Add marks an address as tracked without consulting the store. Used when
// the core itself creates an account and already knows the answer.
func (w *WalletCache) Add(addr string) {
	addr = model.NormalizeAddress(addr)
	w.mu.Lock()
	w.tracked[addr] = struct{}{}
	w.mu.Unlock()
}

// Len returns the size of the positive set.
func (w *WalletCache) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.tracked)
}
