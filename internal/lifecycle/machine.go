package lifecycle

import (
	"errors"
	"fmt"

	"github.com/shopkit/order-lifecycle/internal/gateway"
	"github.com/shopkit/order-lifecycle/internal/orders"
)

// ErrOrderMismatch marks an event whose order reference does not resolve to
// an existing order, or whose provider is not the order's recorded gateway.
var ErrOrderMismatch = errors.New("event does not match an order")

// Effect names one side effect the orchestrator must perform after the
// primary status write. Effects are emitted in execution order.
type Effect string

const (
	EffectDecrementStock  Effect = "decrement_stock"
	EffectIncrementCoupon Effect = "increment_coupon"
	EffectSendEmail       Effect = "send_confirmation_email"
	EffectCheckLowStock   Effect = "check_low_stock"
)

// paidEffects is the bundle fired only on the transition into paid.
var paidEffects = []Effect{EffectDecrementStock, EffectIncrementCoupon, EffectSendEmail, EffectCheckLowStock}

// paymentEdges enumerates the legal payment_status transitions:
// pending -> awaiting_payment -> {paid|failed} -> {refunded|disputed}.
// An approved notification may arrive before any intermediate status, so
// pending admits paid and failed directly.
var paymentEdges = map[orders.PaymentStatus][]orders.PaymentStatus{
	orders.PaymentPending:         {orders.PaymentAwaitingPayment, orders.PaymentPaid, orders.PaymentFailed},
	orders.PaymentAwaitingPayment: {orders.PaymentPaid, orders.PaymentFailed},
	orders.PaymentPaid:            {orders.PaymentRefunded, orders.PaymentDisputed},
	orders.PaymentFailed:          {orders.PaymentRefunded, orders.PaymentDisputed},
	orders.PaymentDisputed:        {orders.PaymentRefunded},
	orders.PaymentRefunded:        {},
}

// Outcome is the state machine's verdict for one event: the statuses to
// persist and the side effects to run. NoOp outcomes change nothing and
// carry no effects.
type Outcome struct {
	OrderStatus      orders.OrderStatus
	PaymentStatus    orders.PaymentStatus
	SetReceivedAt    bool
	AlreadyDelivered bool
	NoOp             bool
	Effects          []Effect
}

// Transition is a pure mapping from (current statuses, verified event) to
// (new statuses, side effects). It never touches storage.
func Transition(orderSt orders.OrderStatus, paySt orders.PaymentStatus, ev Event) (Outcome, error) {
	switch ev.Kind {
	case KindConfirmation:
		return confirmTransition(orderSt, paySt), nil
	case KindPayment:
		return paymentTransition(orderSt, paySt, ev.Status)
	default:
		return Outcome{}, fmt.Errorf("unsupported event kind %q", ev.Kind)
	}
}

func confirmTransition(orderSt orders.OrderStatus, paySt orders.PaymentStatus) Outcome {
	if orderSt == orders.OrderDelivered {
		// Re-confirming a delivered order is success, not an error.
		return Outcome{OrderStatus: orderSt, PaymentStatus: paySt, AlreadyDelivered: true, NoOp: true}
	}
	return Outcome{
		OrderStatus:   orders.OrderDelivered,
		PaymentStatus: paySt,
		SetReceivedAt: true,
	}
}

func paymentTransition(orderSt orders.OrderStatus, paySt orders.PaymentStatus, status gateway.Status) (Outcome, error) {
	target, err := targetPaymentStatus(status)
	if err != nil {
		return Outcome{}, err
	}

	noop := Outcome{OrderStatus: orderSt, PaymentStatus: paySt, NoOp: true}

	// Redelivered events and illegal edges degrade to no-ops. In particular a
	// second approved notification for an already-paid order never re-fires
	// the paid bundle, even if it bypassed the idempotency ledger.
	if target == paySt || !edgeAllowed(paySt, target) {
		return noop, nil
	}

	out := Outcome{PaymentStatus: target, OrderStatus: orderSt}
	switch target {
	case orders.PaymentPaid:
		out.OrderStatus = orders.OrderProcessing
		out.Effects = paidEffects
	case orders.PaymentAwaitingPayment:
		out.OrderStatus = orders.OrderAwaitingPayment
	case orders.PaymentFailed, orders.PaymentRefunded:
		if orderSt != orders.OrderDelivered {
			out.OrderStatus = orders.OrderCancelled
		}
	case orders.PaymentDisputed:
		// order_status unchanged while in mediation
	}
	return out, nil
}

func targetPaymentStatus(status gateway.Status) (orders.PaymentStatus, error) {
	switch status {
	case gateway.StatusApproved:
		return orders.PaymentPaid, nil
	case gateway.StatusPending, gateway.StatusInProcess, gateway.StatusAuthorized:
		return orders.PaymentAwaitingPayment, nil
	case gateway.StatusRejected, gateway.StatusCancelled:
		return orders.PaymentFailed, nil
	case gateway.StatusRefunded, gateway.StatusChargedBack:
		return orders.PaymentRefunded, nil
	case gateway.StatusInMediation:
		return orders.PaymentDisputed, nil
	default:
		return "", fmt.Errorf("%w: %q", gateway.ErrUnknownProviderStatus, status)
	}
}

func edgeAllowed(from, to orders.PaymentStatus) bool {
	for _, t := range paymentEdges[from] {
		if t == to {
			return true
		}
	}
	return false
}
