// Package cache provides a byte-budget LRU side-table. The grid engine uses
// it to bound the memory held by off-screen renderers and their decoded
// buffers: entries are explicit, eviction is deterministic, and nothing
// relies on garbage-collector-assisted weak references.
package cache

import (
	"container/list"
	"sync"
)

// BudgetLRU tracks entries by key with an attributed byte cost and evicts
// the least recently used entries once the budget is exceeded. The zero
// value is not usable; construct with New.
type BudgetLRU[K comparable] struct {
	mu      sync.Mutex
	budget  int64
	used    int64
	ll      *list.List
	items   map[K]*list.Element
	onEvict func(K, int64)

	evictions uint64
}

type entry[K comparable] struct {
	key  K
	cost int64
}

// New constructs a cache with the given byte budget. onEvict runs for every
// evicted entry, outside any caller-visible iteration but under the cache
// lock; it must not call back into the cache.
func New[K comparable](budget int64, onEvict func(key K, cost int64)) *BudgetLRU[K] {
	if budget <= 0 {
		budget = 1 << 30
	}
	return &BudgetLRU[K]{
		budget:  budget,
		ll:      list.New(),
		items:   make(map[K]*list.Element),
		onEvict: onEvict,
	}
}

// Put inserts or updates an entry and enforces the budget. Touching an
// existing key refreshes its recency and replaces its cost.
func (c *BudgetLRU[K]) Put(key K, cost int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K])
		c.used += cost - e.cost
		e.cost = cost
		c.ll.MoveToFront(el)
	} else {
		c.items[key] = c.ll.PushFront(&entry[K]{key: key, cost: cost})
		c.used += cost
	}
	c.enforce()
}

// Touch refreshes an entry's recency without changing its cost.
func (c *BudgetLRU[K]) Touch(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
	}
}

// Remove drops an entry without invoking the eviction callback.
func (c *BudgetLRU[K]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.drop(el)
	return true
}

// Contains reports whether the key is resident.
func (c *BudgetLRU[K]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Used returns the attributed bytes currently resident.
func (c *BudgetLRU[K]) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Len returns the number of resident entries.
func (c *BudgetLRU[K]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Evictions returns the number of budget-driven evictions so far.
func (c *BudgetLRU[K]) Evictions() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}

// Purge evicts everything, invoking the callback for each entry.
func (c *BudgetLRU[K]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.ll.Back(); el != nil; el = c.ll.Back() {
		c.evict(el)
	}
}

func (c *BudgetLRU[K]) enforce() {
	for c.used > c.budget {
		el := c.ll.Back()
		if el == nil {
			return
		}
		c.evict(el)
	}
}

func (c *BudgetLRU[K]) evict(el *list.Element) {
	e := el.Value.(*entry[K])
	c.drop(el)
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(e.key, e.cost)
	}
}

func (c *BudgetLRU[K]) drop(el *list.Element) {
	e := el.Value.(*entry[K])
	c.ll.Remove(el)
	delete(c.items, e.key)
	c.used -= e.cost
}
