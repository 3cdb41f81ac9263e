package checkout

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
)

// PaymentDetails is the payment form submitted by the buyer. Card data never
// reaches the service; the client tokenizes it with the processor first.
type PaymentDetails struct {
	CardholderName string `json:"cardholder_name" validate:"required"`
	Email          string `json:"email" validate:"required"`
	PaymentMethod  string `json:"payment_method" validate:"required"`
}

// Normalize trims whitespace from every field.
func (d PaymentDetails) Normalize() PaymentDetails {
	return PaymentDetails{
		CardholderName: strings.TrimSpace(d.CardholderName),
		Email:          strings.TrimSpace(d.Email),
		PaymentMethod:  strings.TrimSpace(d.PaymentMethod),
	}
}

// MissingFieldDetail names a payment field that failed the presence check.
type MissingFieldDetail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidatePaymentDetails only checks presence. Card validity is the processor's job.
func ValidatePaymentDetails(details PaymentDetails) error {
	details = details.Normalize()

	var missing []MissingFieldDetail
	if details.CardholderName == "" {
		missing = append(missing, MissingFieldDetail{Field: "cardholder_name", Reason: "required"})
	}
	if details.Email == "" {
		missing = append(missing, MissingFieldDetail{Field: "email", Reason: "required"})
	} else if _, err := mail.ParseAddress(details.Email); err != nil {
		missing = append(missing, MissingFieldDetail{Field: "email", Reason: "invalid"})
	}
	if details.PaymentMethod == "" {
		missing = append(missing, MissingFieldDetail{Field: "payment_method", Reason: "required"})
	}
	if len(missing) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment details incomplete: %d field(s)", len(missing))).WithDetails(map[string]any{
		"fields": missing,
	})
}

// AuthorizationRequest is what a payment processor needs to place a hold.
type AuthorizationRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Details        PaymentDetails
	IdempotencyKey string
	Metadata       map[string]string
}

// MinorUnits converts a decimal amount into the smallest currency unit,
// rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
