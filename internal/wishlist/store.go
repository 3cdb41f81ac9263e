// Package wishlist tracks loops a shopper has saved for later.
package wishlist

import (
	"sync"

	"github.com/google/uuid"

	"github.com/etherloops/ether-backend/pkg/db/models"
)

// Snapshot is the serializable form of a wishlist.
type Snapshot struct {
	Items []models.Product `json:"items"`
}

// Store is an insertion-ordered set of products keyed by id.
type Store struct {
	mu    sync.RWMutex
	items []models.Product
}

func NewStore() *Store {
	return &Store{}
}

// Toggle adds the product if absent and removes it otherwise. It returns true when the product is now present.
func (s *Store) Toggle(product models.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos := s.find(product.ID); pos >= 0 {
		s.items = append(s.items[:pos], s.items[pos+1:]...)
		return false
	}
	s.items = append(s.items, product)
	return true
}

func (s *Store) Contains(productID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(productID) >= 0
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy in insertion order.
func (s *Store) Items() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{Items: s.Items()}
}

func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]models.Product, 0, len(snap.Items))
	for _, p := range snap.Items {
		if s.find(p.ID) >= 0 {
			continue
		}
		s.items = append(s.items, p)
	}
}

func (s *Store) find(id uuid.UUID) int {
	for i, p := range s.items {
		if p.ID == id {
			return i
		}
	}
	return -1
}
