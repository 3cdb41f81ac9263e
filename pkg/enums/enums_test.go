package enums

import "testing"

func TestProductStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ProductStatus
		allowed  bool
	}{
		{ProductStatusPending, ProductStatusApproved, true},
		{ProductStatusPending, ProductStatusRejected, true},
		{ProductStatusPending, ProductStatusPending, false},
		{ProductStatusApproved, ProductStatusRejected, false},
		{ProductStatusRejected, ProductStatusApproved, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestParseHelpers(t *testing.T) {
	if got, err := ParseProductStatus(" Approved "); err != nil || got != ProductStatusApproved {
		t.Fatalf("unexpected parse result %q %v", got, err)
	}
	if _, err := ParseProductStatus("archived"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	if got, err := ParseUserRole("ADMIN"); err != nil || got != UserRoleAdmin {
		t.Fatalf("unexpected role %q %v", got, err)
	}
	if _, err := ParseOutboxEventType("order.created"); err == nil {
		t.Fatalf("expected error for unknown event type")
	}
	if got, _ := ParseOrderStatus("completed"); got != OrderStatusCompleted {
		t.Fatalf("unexpected order status %q", got)
	}
}

func TestReviewDecisionTargetStatus(t *testing.T) {
	if ReviewDecisionApprove.TargetStatus() != ProductStatusApproved {
		t.Fatalf("approve should target approved")
	}
	if ReviewDecisionReject.TargetStatus() != ProductStatusRejected {
		t.Fatalf("reject should target rejected")
	}
}
