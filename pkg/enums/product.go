package enums

import (
	"fmt"
	"strings"
)

// ProductStatus tracks where a loop sits in the review lifecycle.
type ProductStatus string

const (
	ProductStatusPending  ProductStatus = "pending"
	ProductStatusApproved ProductStatus = "approved"
	ProductStatusRejected ProductStatus = "rejected"
)

var validProductStatuses = []ProductStatus{
	ProductStatusPending,
	ProductStatusApproved,
	ProductStatusRejected,
}

// String implements fmt.Stringer.
func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further review transition is allowed.
func (s ProductStatus) IsTerminal() bool {
	return s == ProductStatusApproved || s == ProductStatusRejected
}

// CanTransitionTo reports whether the review lifecycle allows s -> next.
func (s ProductStatus) CanTransitionTo(next ProductStatus) bool {
	return s == ProductStatusPending && next.IsTerminal()
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	normalized := ProductStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid product status %q", value)
}
