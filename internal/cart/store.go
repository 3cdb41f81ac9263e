// Package cart holds a shopper's cart lines in memory.
package cart

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/etherloops/ether-backend/pkg/db/models"
)

// Item is a single cart line. Loops are licensed once so quantity stays 1.
type Item struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// Subtotal returns price * quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Snapshot is the serializable form of a cart.
type Snapshot struct {
	Items []Item `json:"items"`
}

// Store is an insertion-ordered set of cart lines keyed by product id.
type Store struct {
	mu    sync.RWMutex
	items []Item
	index map[uuid.UUID]int
}

func NewStore() *Store {
	return &Store{index: map[uuid.UUID]int{}}
}

// AddItem inserts the product once. It reports whether the cart changed.
func (s *Store) AddItem(product models.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[product.ID]; ok {
		return false
	}
	s.index[product.ID] = len(s.items)
	s.items = append(s.items, Item{Product: product, Quantity: 1})
	return true
}

// RemoveItem drops the product line if present.
func (s *Store) RemoveItem(productID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[productID]
	if !ok {
		return false
	}
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	s.reindex()
	return true
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.index = map[uuid.UUID]int{}
}

func (s *Store) Contains(productID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[productID]
	return ok
}

// Total is the exact decimal sum of every line subtotal.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemCount returns the number of distinct lines.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) IsEmpty() bool {
	return s.ItemCount() == 0
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{Items: s.Items()}
}

// Restore replaces the contents with the snapshot, dropping duplicate products.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]Item, 0, len(snap.Items))
	s.index = make(map[uuid.UUID]int, len(snap.Items))
	for _, item := range snap.Items {
		if _, dup := s.index[item.Product.ID]; dup {
			continue
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		s.index[item.Product.ID] = len(s.items)
		s.items = append(s.items, item)
	}
}

func (s *Store) reindex() {
	s.index = make(map[uuid.UUID]int, len(s.items))
	for i, item := range s.items {
		s.index[item.Product.ID] = i
	}
}
