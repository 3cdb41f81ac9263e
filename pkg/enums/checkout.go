package enums

// CheckoutStep is a state of the checkout flow.
type CheckoutStep string

const (
	CheckoutStepCart       CheckoutStep = "cart"
	CheckoutStepPayment    CheckoutStep = "payment"
	CheckoutStepProcessing CheckoutStep = "processing"
	CheckoutStepComplete   CheckoutStep = "complete"
)

// String implements fmt.Stringer.
func (s CheckoutStep) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutStep.
func (s CheckoutStep) IsValid() bool {
	switch s {
	case CheckoutStepCart, CheckoutStepPayment, CheckoutStepProcessing, CheckoutStepComplete:
		return true
	}
	return false
}

// ReviewDecision is the admin verdict on a pending loop.
type ReviewDecision string

const (
	ReviewDecisionApprove ReviewDecision = "approve"
	ReviewDecisionReject  ReviewDecision = "reject"
)

// TargetStatus maps the decision onto the product lifecycle.
func (d ReviewDecision) TargetStatus() ProductStatus {
	if d == ReviewDecisionApprove {
		return ProductStatusApproved
	}
	return ProductStatusRejected
}
