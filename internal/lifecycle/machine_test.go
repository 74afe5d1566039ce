package lifecycle

import (
	"testing"

	"github.com/shopkit/order-lifecycle/internal/gateway"
	"github.com/shopkit/order-lifecycle/internal/orders"
)

func paymentEvent(status gateway.Status) Event {
	return Event{
		Provider:   "mercadopago",
		EventID:    "evt-1",
		Kind:       KindPayment,
		Status:     status,
		OrderRef:   "order-1",
		PaymentRef: "pay-1",
	}
}

func TestTransition_PaymentMapping(t *testing.T) {
	cases := []struct {
		name        string
		orderSt     orders.OrderStatus
		paySt       orders.PaymentStatus
		provider    gateway.Status
		wantOrder   orders.OrderStatus
		wantPayment orders.PaymentStatus
		wantNoOp    bool
		wantEffects int
	}{
		{
			name:    "approved from awaiting fires paid bundle",
			orderSt: orders.OrderAwaitingPayment, paySt: orders.PaymentAwaitingPayment,
			provider:  gateway.StatusApproved,
			wantOrder: orders.OrderProcessing, wantPayment: orders.PaymentPaid,
			wantEffects: 4,
		},
		{
			name:    "approved from pending fires paid bundle",
			orderSt: orders.OrderPending, paySt: orders.PaymentPending,
			provider:  gateway.StatusApproved,
			wantOrder: orders.OrderProcessing, wantPayment: orders.PaymentPaid,
			wantEffects: 4,
		},
		{
			name:    "approved when already paid is a no-op",
			orderSt: orders.OrderProcessing, paySt: orders.PaymentPaid,
			provider:  gateway.StatusApproved,
			wantOrder: orders.OrderProcessing, wantPayment: orders.PaymentPaid,
			wantNoOp: true,
		},
		{
			name:    "pending moves to awaiting",
			orderSt: orders.OrderPending, paySt: orders.PaymentPending,
			provider:  gateway.StatusPending,
			wantOrder: orders.OrderAwaitingPayment, wantPayment: orders.PaymentAwaitingPayment,
		},
		{
			name:    "in_process moves to awaiting",
			orderSt: orders.OrderPending, paySt: orders.PaymentPending,
			provider:  gateway.StatusInProcess,
			wantOrder: orders.OrderAwaitingPayment, wantPayment: orders.PaymentAwaitingPayment,
		},
		{
			name:    "authorized after paid never downgrades",
			orderSt: orders.OrderProcessing, paySt: orders.PaymentPaid,
			provider:  gateway.StatusAuthorized,
			wantOrder: orders.OrderProcessing, wantPayment: orders.PaymentPaid,
			wantNoOp: true,
		},
		{
			name:    "rejected cancels",
			orderSt: orders.OrderAwaitingPayment, paySt: orders.PaymentAwaitingPayment,
			provider:  gateway.StatusRejected,
			wantOrder: orders.OrderCancelled, wantPayment: orders.PaymentFailed,
		},
		{
			name:    "cancelled cancels",
			orderSt: orders.OrderPending, paySt: orders.PaymentPending,
			provider:  gateway.StatusCancelled,
			wantOrder: orders.OrderCancelled, wantPayment: orders.PaymentFailed,
		},
		{
			name:    "refunded from paid cancels with no effects",
			orderSt: orders.OrderProcessing, paySt: orders.PaymentPaid,
			provider:  gateway.StatusRefunded,
			wantOrder: orders.OrderCancelled, wantPayment: orders.PaymentRefunded,
		},
		{
			name:    "charged_back from paid cancels",
			orderSt: orders.OrderProcessing, paySt: orders.PaymentPaid,
			provider:  gateway.StatusChargedBack,
			wantOrder: orders.OrderCancelled, wantPayment: orders.PaymentRefunded,
		},
		{
			name:    "refund after delivery keeps order delivered",
			orderSt: orders.OrderDelivered, paySt: orders.PaymentPaid,
			provider:  gateway.StatusRefunded,
			wantOrder: orders.OrderDelivered, wantPayment: orders.PaymentRefunded,
		},
		{
			name:    "in_mediation disputes without touching order status",
			orderSt: orders.OrderProcessing, paySt: orders.PaymentPaid,
			provider:  gateway.StatusInMediation,
			wantOrder: orders.OrderProcessing, wantPayment: orders.PaymentDisputed,
		},
		{
			name:    "refund cannot jump straight from pending",
			orderSt: orders.OrderPending, paySt: orders.PaymentPending,
			provider:  gateway.StatusRefunded,
			wantOrder: orders.OrderPending, wantPayment: orders.PaymentPending,
			wantNoOp: true,
		},
		{
			name:    "dispute cannot jump straight from awaiting",
			orderSt: orders.OrderAwaitingPayment, paySt: orders.PaymentAwaitingPayment,
			provider:  gateway.StatusInMediation,
			wantOrder: orders.OrderAwaitingPayment, wantPayment: orders.PaymentAwaitingPayment,
			wantNoOp: true,
		},
		{
			name:    "refund after dispute resolves it",
			orderSt: orders.OrderProcessing, paySt: orders.PaymentDisputed,
			provider:  gateway.StatusChargedBack,
			wantOrder: orders.OrderCancelled, wantPayment: orders.PaymentRefunded,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Transition(tc.orderSt, tc.paySt, paymentEvent(tc.provider))
			if err != nil {
				t.Fatalf("Transition error: %v", err)
			}
			if out.OrderStatus != tc.wantOrder || out.PaymentStatus != tc.wantPayment {
				t.Fatalf("got (%s,%s), want (%s,%s)", out.OrderStatus, out.PaymentStatus, tc.wantOrder, tc.wantPayment)
			}
			if out.NoOp != tc.wantNoOp {
				t.Fatalf("NoOp=%v, want %v", out.NoOp, tc.wantNoOp)
			}
			if len(out.Effects) != tc.wantEffects {
				t.Fatalf("got %d effects, want %d: %v", len(out.Effects), tc.wantEffects, out.Effects)
			}
			if tc.wantNoOp && len(out.Effects) != 0 {
				t.Fatalf("no-op outcome must carry no effects: %v", out.Effects)
			}
		})
	}
}

func TestTransition_PaidBundleContents(t *testing.T) {
	out, err := Transition(orders.OrderAwaitingPayment, orders.PaymentAwaitingPayment, paymentEvent(gateway.StatusApproved))
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	want := []Effect{EffectDecrementStock, EffectIncrementCoupon, EffectSendEmail, EffectCheckLowStock}
	if len(out.Effects) != len(want) {
		t.Fatalf("effects: %v", out.Effects)
	}
	for i, e := range want {
		if out.Effects[i] != e {
			t.Fatalf("effect %d: got %s, want %s", i, out.Effects[i], e)
		}
	}
}

func TestTransition_Confirmation(t *testing.T) {
	ev := Event{Provider: ConfirmationProvider, Kind: KindConfirmation, OrderRef: "order-1"}

	out, err := Transition(orders.OrderShipped, orders.PaymentPaid, ev)
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if out.OrderStatus != orders.OrderDelivered {
		t.Fatalf("expected delivered, got %s", out.OrderStatus)
	}
	if !out.SetReceivedAt {
		t.Fatal("expected SetReceivedAt")
	}
	if out.PaymentStatus != orders.PaymentPaid {
		t.Fatalf("payment status must not change: %s", out.PaymentStatus)
	}
	if len(out.Effects) != 0 {
		t.Fatalf("confirmation carries no effects: %v", out.Effects)
	}

	// confirming again is a friendly no-op
	out2, err := Transition(orders.OrderDelivered, orders.PaymentPaid, ev)
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if !out2.AlreadyDelivered || !out2.NoOp {
		t.Fatalf("expected already-delivered no-op, got %+v", out2)
	}
	if out2.SetReceivedAt {
		t.Fatal("received_at must stay untouched on re-confirmation")
	}
}

func TestTransition_UnknownKind(t *testing.T) {
	if _, err := Transition(orders.OrderPending, orders.PaymentPending, Event{Kind: "bogus"}); err == nil {
		t.Fatal("expected error for unknown event kind")
	}
}
