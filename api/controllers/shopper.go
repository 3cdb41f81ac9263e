package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/etherloops/ether-backend/api/middleware"
	"github.com/etherloops/ether-backend/api/responses"
	"github.com/etherloops/ether-backend/api/validators"
	"github.com/etherloops/ether-backend/internal/shopper"
	"github.com/etherloops/ether-backend/pkg/auth"
	"github.com/etherloops/ether-backend/pkg/db/models"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
	"github.com/etherloops/ether-backend/pkg/logger"
)

type shopperSessions interface {
	Open(ctx context.Context, identity auth.Identity) (*shopper.Session, error)
	End(ctx context.Context, userID uuid.UUID) error
}

type purchasableLookup interface {
	GetPurchasable(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type productRef struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

type cartMutationResponse struct {
	Changed bool             `json:"changed"`
	Cart    shopper.CartView `json:"cart"`
}

type wishlistToggleResponse struct {
	ProductID uuid.UUID            `json:"product_id"`
	Saved     bool                 `json:"saved"`
	Wishlist  shopper.WishlistView `json:"wishlist"`
}

func openSession(w http.ResponseWriter, r *http.Request, sessions shopperSessions, logg *logger.Logger) (*shopper.Session, bool) {
	if sessions == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shopper sessions unavailable"))
		return nil, false
	}
	session, err := sessions.Open(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return session, true
}

// lookupProduct resolves the body's product reference to an approved loop.
func lookupProduct(w http.ResponseWriter, r *http.Request, lookup purchasableLookup, logg *logger.Logger) (*models.Product, bool) {
	if lookup == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
		return nil, false
	}
	var payload productRef
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	product, err := lookup.GetPurchasable(r.Context(), payload.ProductID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return product, true
}

func CartGet(sessions shopperSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(w, r, sessions, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, session.CartView())
	}
}

// CartAddItem adds an approved loop to the cart. Adding a loop already in
// the cart succeeds without changing it.
func CartAddItem(sessions shopperSessions, lookup purchasableLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(w, r, sessions, logg)
		if !ok {
			return
		}
		product, ok := lookupProduct(w, r, lookup, logg)
		if !ok {
			return
		}

		changed, err := session.AddToCart(r.Context(), *product)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if changed {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, cartMutationResponse{Changed: changed, Cart: session.CartView()})
	}
}

func CartRemoveItem(sessions shopperSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(w, r, sessions, logg)
		if !ok {
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		changed, err := session.RemoveFromCart(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartMutationResponse{Changed: changed, Cart: session.CartView()})
	}
}

func CartClear(sessions shopperSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(w, r, sessions, logg)
		if !ok {
			return
		}
		if err := session.ClearCart(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session.CartView())
	}
}

func WishlistGet(sessions shopperSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(w, r, sessions, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, session.WishlistView())
	}
}

// WishlistToggle saves or unsaves a loop and reports the new membership.
func WishlistToggle(sessions shopperSessions, lookup purchasableLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(w, r, sessions, logg)
		if !ok {
			return
		}
		product, ok := lookupProduct(w, r, lookup, logg)
		if !ok {
			return
		}

		saved := session.ToggleWishlist(r.Context(), *product)
		responses.WriteSuccess(w, wishlistToggleResponse{
			ProductID: product.ID,
			Saved:     saved,
			Wishlist:  session.WishlistView(),
		})
	}
}

// SessionEnd drops the shopper's cart, wishlist and checkout state.
func SessionEnd(sessions shopperSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shopper sessions unavailable"))
			return
		}
		identity := middleware.IdentityFromContext(r.Context())
		if identity.IsZero() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		if err := sessions.End(r.Context(), identity.UserID()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ended"})
	}
}
