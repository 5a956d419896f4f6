package cache

import (
	"container/list"
	"sync"
	"time"
)

// AddressSet is a size-bounded set of addresses with per-entry expiry.
// When full, the least recently touched address is evicted. The wallet
// membership tier uses it to remember recent "not tracked" verdicts so a
// hot untracked counterparty does not turn into a store query per event;
// expiry bounds how long a freshly registered wallet can be missed.
type AddressSet struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List
	nowFn    func() time.Time

	hits   int64
	misses int64
}

type setEntry struct {
	addr      string
	expiresAt time.Time
}

// NewAddressSet creates an AddressSet holding at most capacity addresses,
// each remembered for ttl after its last Add.
func NewAddressSet(capacity int, ttl time.Duration) *AddressSet {
	return &AddressSet{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		nowFn:    time.Now,
	}
}

// Contains reports whether addr is in the set and unexpired. An expired
// entry is dropped on sight.
func (s *AddressSet) Contains(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[addr]
	if !ok {
		s.misses++
		return false
	}
	e := elem.Value.(*setEntry)
	if s.nowFn().After(e.expiresAt) {
		s.remove(elem)
		s.misses++
		return false
	}
	s.order.MoveToFront(elem)
	s.hits++
	return true
}

// Add inserts addr or refreshes its expiry, evicting the least recently
// touched address if the set is full.
func (s *AddressSet) Add(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[addr]; ok {
		s.order.MoveToFront(elem)
		elem.Value.(*setEntry).expiresAt = s.nowFn().Add(s.ttl)
		return
	}
	if s.order.Len() >= s.capacity {
		if oldest := s.order.Back(); oldest != nil {
			s.remove(oldest)
		}
	}
	s.items[addr] = s.order.PushFront(&setEntry{
		addr:      addr,
		expiresAt: s.nowFn().Add(s.ttl),
	})
}

// Len counts resident entries, expired-but-unswept included.
func (s *AddressSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Stats returns hit and miss counts for Contains calls.
func (s *AddressSet) Stats() (hits, misses int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

func (s *AddressSet) remove(elem *list.Element) {
	s.order.Remove(elem)
	delete(s.items, elem.Value.(*setEntry).addr)
}
