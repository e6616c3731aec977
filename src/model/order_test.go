package model

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusPartiallyFilled, true},
		{OrderStatusPending, OrderStatusFilled, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusRejected, true},
		{OrderStatusPartiallyFilled, OrderStatusPartiallyFilled, true},
		{OrderStatusPartiallyFilled, OrderStatusFilled, true},
		{OrderStatusPartiallyFilled, OrderStatusCancelled, true},
		{OrderStatusPartiallyFilled, OrderStatusRejected, false},
		{OrderStatusPartiallyFilled, OrderStatusPending, false},
		{OrderStatusFilled, OrderStatusPending, false},
		{OrderStatusFilled, OrderStatusCancelled, false},
		{OrderStatusFilled, OrderStatusFilled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusCancelled, false},
		{OrderStatusRejected, OrderStatusPending, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestOrderTransitionRejectsIllegalMove(t *testing.T) {
	order := &Order{ID: 7, Status: OrderStatusFilled}

	if err := order.Transition(OrderStatusPending); err == nil {
		t.Fatal("expected error for filled -> pending transition")
	}
	if order.Status != OrderStatusFilled {
		t.Fatalf("status mutated on rejected transition: %s", order.Status)
	}

	order.Status = OrderStatusPending
	if err := order.Transition(OrderStatusCancelled); err != nil {
		t.Fatalf("unexpected error for pending -> cancelled: %v", err)
	}
	if order.Status != OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	for _, s := range []OrderStatus{OrderStatusPending, OrderStatusPartiallyFilled} {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
