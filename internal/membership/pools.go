package membership

import (
	"context"
	"fmt"
	"sync"

	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/getclave/activity-indexer/internal/metrics"
	"github.com/getclave/activity-indexer/internal/store"
)

// PoolSet tracks the addresses known to be pools of one protocol family.
// It is the hot-path side of router classification: once warmed from the
// registry, a bloom tier answers definite negatives in memory and the set
// answers positives, so ordinary transfer traffic never touches the store.
// The set grows monotonically; pools are never deleted.
type PoolSet struct {
	protocol model.Protocol
	registry store.PoolRegistryRepository

	mu     sync.RWMutex
	pools  map[string]struct{}
	bloom  *BloomFilter
	warmed bool
}

// NewPoolSet creates a PoolSet for one protocol, backed by the registry.
func NewPoolSet(protocol model.Protocol, registry store.PoolRegistryRepository, expectedPools int) *PoolSet {
	if expectedPools <= 0 {
		expectedPools = 100_000
	}
	return &PoolSet{
		protocol: protocol,
		registry: registry,
		pools:    make(map[string]struct{}),
		bloom:    NewBloomFilter(expectedPools, 0.001),
	}
}

// Warm loads every registered pool of the protocol into the set and bloom
// filter. After a successful warm the bloom's negatives are definitive,
// because all later creations flow through Add.
func (s *PoolSet) Warm(ctx context.Context) error {
	addrs, err := s.registry.ListByProtocol(ctx, s.protocol)
	if err != nil {
		return fmt.Errorf("warm %s pool set: %w", s.protocol, err)
	}

	s.mu.Lock()
	for _, addr := range addrs {
		addr = model.NormalizeAddress(addr)
		s.pools[addr] = struct{}{}
		s.bloom.Add(addr)
	}
	s.warmed = true
	s.mu.Unlock()
	return nil
}

// Add registers a pool address. Called at pool creation time.
func (s *PoolSet) Add(addr string) {
	addr = model.NormalizeAddress(addr)
	s.mu.Lock()
	s.pools[addr] = struct{}{}
	s.bloom.Add(addr)
	s.mu.Unlock()
}

// Contains reports whether addr is a known pool of this protocol. If the
// set has not been warmed, in-memory misses fall through to a registry
// lookup and the result is cached.
func (s *PoolSet) Contains(ctx context.Context, addr string) (bool, error) {
	addr = model.NormalizeAddress(addr)

	s.mu.RLock()
	_, hit := s.pools[addr]
	warmed := s.warmed
	mayContain := s.bloom.MayContain(addr)
	s.mu.RUnlock()

	if hit {
		metrics.MembershipCacheHits.WithLabelValues(string(s.protocol)).Inc()
		return true, nil
	}
	if warmed && !mayContain {
		metrics.MembershipBloomRejects.WithLabelValues(string(s.protocol)).Inc()
		return false, nil
	}

	metrics.MembershipStoreLookups.WithLabelValues(string(s.protocol)).Inc()
	protocols, err := s.registry.Protocols(ctx, []string{addr})
	if err != nil {
		return false, err
	}
	if protocols[addr] != s.protocol {
		return false, nil
	}
	s.Add(addr)
	return true, nil
}

// Len returns the number of known pools.
func (s *PoolSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools)
}
