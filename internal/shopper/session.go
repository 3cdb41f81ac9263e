// Package shopper owns the per-user shopping context: cart, wishlist and checkout.
package shopper

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/etherloops/ether-backend/internal/cart"
	"github.com/etherloops/ether-backend/internal/checkout"
	"github.com/etherloops/ether-backend/internal/products"
	"github.com/etherloops/ether-backend/internal/wishlist"
	pkgcheckout "github.com/etherloops/ether-backend/pkg/checkout"
	"github.com/etherloops/ether-backend/pkg/db/models"
)

// Session bundles the state a shopper carries between requests.
type Session struct {
	UserID   uuid.UUID
	Cart     *cart.Store
	Wishlist *wishlist.Store
	Checkout *checkout.Flow

	mu       sync.Mutex
	degraded bool
	persist  func(context.Context, *Session) error
}

// CartView is the cart as returned to clients.
type CartView struct {
	Items     []CartItemView `json:"items"`
	Total     string         `json:"total"`
	ItemCount int            `json:"item_count"`
	Checkout  checkout.View  `json:"checkout"`
	Degraded  bool           `json:"degraded,omitempty"`
}

type CartItemView struct {
	Product  products.ProductDTO `json:"product"`
	Quantity int                 `json:"quantity"`
	Subtotal string              `json:"subtotal"`
}

// WishlistView is the wishlist as returned to clients.
type WishlistView struct {
	Items []products.ProductDTO `json:"items"`
	Count int                   `json:"count"`
}

// AddToCart adds product unless checkout is processing. Adding a product
// already in the cart is a no-op.
func (s *Session) AddToCart(ctx context.Context, product models.Product) (bool, error) {
	return s.mutateCart(ctx, func(c *cart.Store) bool { return c.AddItem(product) })
}

// RemoveFromCart drops productID from the cart unless checkout is processing.
func (s *Session) RemoveFromCart(ctx context.Context, productID uuid.UUID) (bool, error) {
	return s.mutateCart(ctx, func(c *cart.Store) bool { return c.RemoveItem(productID) })
}

func (s *Session) ClearCart(ctx context.Context) error {
	_, err := s.mutateCart(ctx, func(c *cart.Store) bool {
		if c.IsEmpty() {
			return false
		}
		c.Clear()
		return true
	})
	return err
}

// ToggleWishlist flips membership of product and reports whether it is now saved.
func (s *Session) ToggleWishlist(ctx context.Context, product models.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := s.Wishlist.Toggle(product)
	s.persistLocked(ctx)
	return saved
}

// Pay submits the payment step and persists the cleared cart on success.
func (s *Session) Pay(ctx context.Context, details pkgcheckout.PaymentDetails, idempotencyKey string) (*checkout.Result, error) {
	res, err := s.Checkout.Submit(ctx, details, idempotencyKey)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked(ctx)
	return res, nil
}

// Degraded reports whether the last snapshot read or write failed.
func (s *Session) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Session) CartView() CartView {
	items := s.Cart.Items()
	view := CartView{
		Items:     make([]CartItemView, 0, len(items)),
		Total:     s.Cart.Total().StringFixed(2),
		ItemCount: len(items),
		Checkout:  s.Checkout.View(),
		Degraded:  s.Degraded(),
	}
	for _, item := range items {
		view.Items = append(view.Items, CartItemView{
			Product:  products.NewProductDTO(item.Product),
			Quantity: item.Quantity,
			Subtotal: item.Subtotal().StringFixed(2),
		})
	}
	return view
}

func (s *Session) WishlistView() WishlistView {
	items := s.Wishlist.Items()
	return WishlistView{Items: products.NewProductDTOs(items), Count: len(items)}
}

func (s *Session) mutateCart(ctx context.Context, fn func(*cart.Store) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := s.Checkout.MutateCart(fn)
	if err != nil {
		return false, err
	}
	if changed {
		s.persistLocked(ctx)
	}
	return changed, nil
}

func (s *Session) persistLocked(ctx context.Context) {
	if s.persist == nil {
		return
	}
	s.degraded = s.persist(ctx, s) != nil
}

func (s *Session) snapshot() snapshot {
	return snapshot{Cart: s.Cart.Snapshot(), Wishlist: s.Wishlist.Snapshot()}
}

type snapshot struct {
	Cart     cart.Snapshot     `json:"cart"`
	Wishlist wishlist.Snapshot `json:"wishlist"`
}
