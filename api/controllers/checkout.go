package controllers

import (
	"net/http"
	"strings"

	"github.com/etherloops/ether-backend/api/middleware"
	"github.com/etherloops/ether-backend/api/responses"
	"github.com/etherloops/ether-backend/api/validators"
	"github.com/etherloops/ether-backend/internal/checkout"
	pkgcheckout "github.com/etherloops/ether-backend/pkg/checkout"
	"github.com/etherloops/ether-backend/pkg/logger"
)

type payResponse struct {
	Result   *checkout.Result `json:"result"`
	Checkout checkout.View    `json:"checkout"`
}

func CheckoutView(sessions shopperSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(w, r, sessions, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, session.Checkout.View())
	}
}

// checkoutTransition wraps a flow step change that takes no body.
func checkoutTransition(sessions shopperSessions, logg *logger.Logger, step func(*checkout.Flow) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(w, r, sessions, logg)
		if !ok {
			return
		}
		if err := step(session.Checkout); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session.Checkout.View())
	}
}

func CheckoutProceed(sessions shopperSessions, logg *logger.Logger) http.HandlerFunc {
	return checkoutTransition(sessions, logg, (*checkout.Flow).Proceed)
}

func CheckoutBack(sessions shopperSessions, logg *logger.Logger) http.HandlerFunc {
	return checkoutTransition(sessions, logg, (*checkout.Flow).Back)
}

func CheckoutCancel(sessions shopperSessions, logg *logger.Logger) http.HandlerFunc {
	return checkoutTransition(sessions, logg, (*checkout.Flow).Cancel)
}

func CheckoutReset(sessions shopperSessions, logg *logger.Logger) http.HandlerFunc {
	return checkoutTransition(sessions, logg, (*checkout.Flow).Reset)
}

// CheckoutPay submits the payment form. The request blocks until the
// payment resolves, fails or times out.
func CheckoutPay(sessions shopperSessions, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := openSession(w, r, sessions, logg)
		if !ok {
			return
		}

		var details pkgcheckout.PaymentDetails
		if err := validators.DecodeJSONBody(r, &details); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := strings.TrimSpace(r.Header.Get(middleware.IdempotencyKeyHeader))
		result, err := session.Pay(r.Context(), details, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payResponse{Result: result, Checkout: session.Checkout.View()})
	}
}
