package domain

import "testing"

func TestOrderStatusHappyPath(t *testing.T) {
	path := []OrderStatus{OrderStatusPlaced, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered}
	for i := 0; i < len(path)-1; i++ {
		if !path[i].CanTransitionTo(path[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", path[i], path[i+1])
		}
	}
}

func TestOrderStatusTerminalStates(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded} {
		if !status.IsTerminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
		for _, next := range []OrderStatus{OrderStatusPlaced, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded} {
			if status.CanTransitionTo(next) {
				t.Fatalf("expected no transition out of %s, got %s", status, next)
			}
		}
	}
}

func TestOrderStatusCancellationBranches(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusPlaced, OrderStatusProcessing, OrderStatusShipped} {
		if !status.CanTransitionTo(OrderStatusCancellationPending) {
			t.Fatalf("expected %s -> cancellation_pending", status)
		}
		if !status.CanTransitionTo(OrderStatusCancelled) {
			t.Fatalf("expected %s -> cancelled", status)
		}
		if !status.CanTransitionTo(OrderStatusRefunded) {
			t.Fatalf("expected %s -> refunded", status)
		}
	}
}

func TestOrderStatusPendingResolution(t *testing.T) {
	pending := OrderStatusCancellationPending
	for _, next := range []OrderStatus{OrderStatusCancelled, OrderStatusRefunded, OrderStatusPlaced, OrderStatusProcessing, OrderStatusShipped} {
		if !pending.CanTransitionTo(next) {
			t.Fatalf("expected cancellation_pending -> %s", next)
		}
	}
	if pending.CanTransitionTo(OrderStatusDelivered) {
		t.Fatalf("cancellation_pending must not resolve to delivered")
	}
}

func TestOrderStatusRejectsSkippingStates(t *testing.T) {
	if OrderStatusPlaced.CanTransitionTo(OrderStatusShipped) {
		t.Fatalf("placed must not skip to shipped")
	}
	if OrderStatusPlaced.CanTransitionTo(OrderStatusDelivered) {
		t.Fatalf("placed must not skip to delivered")
	}
	if OrderStatusProcessing.CanTransitionTo(OrderStatusDelivered) {
		t.Fatalf("processing must not skip to delivered")
	}
}

func TestOrderStatusRejectsUnknownStatus(t *testing.T) {
	bogus := OrderStatus("misplaced")
	if bogus.IsValid() {
		t.Fatalf("expected unknown status to be invalid")
	}
	if bogus.CanTransitionTo(OrderStatusPlaced) {
		t.Fatalf("unknown status must not transition")
	}
	if OrderStatusPlaced.CanTransitionTo(bogus) {
		t.Fatalf("must not transition into unknown status")
	}
}

func TestCustomerCancellationOutcomes(t *testing.T) {
	cases := []struct {
		status OrderStatus
		want   CancellationOutcome
	}{
		{OrderStatusPlaced, CancellationDirect},
		{OrderStatusProcessing, CancellationRequiresApproval},
		{OrderStatusShipped, CancellationRequiresApproval},
		{OrderStatusDelivered, CancellationNotAllowed},
		{OrderStatusCancellationPending, CancellationNotAllowed},
		{OrderStatusCancelled, CancellationNotAllowed},
		{OrderStatusRefunded, CancellationNotAllowed},
	}
	for _, tc := range cases {
		if got := tc.status.CustomerCancellation(); got != tc.want {
			t.Fatalf("status %s: expected outcome %d, got %d", tc.status, tc.want, got)
		}
	}
}

func TestCustomizationSelectionFingerprintStable(t *testing.T) {
	a := CustomizationSelection{"Engraving": "To Maya", "Case": "hard-case"}
	b := CustomizationSelection{"Case": "hard-case", "Engraving": "To Maya"}
	if a.Fingerprint() == "" {
		t.Fatalf("expected non-empty fingerprint")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("expected key order not to matter")
	}
	c := CustomizationSelection{"Engraving": "To Naya", "Case": "hard-case"}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("expected differing selections to differ")
	}
	var empty CustomizationSelection
	if empty.Fingerprint() != "" {
		t.Fatalf("expected empty selection fingerprint to be empty")
	}
}
