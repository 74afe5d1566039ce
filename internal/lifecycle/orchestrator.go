package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopkit/order-lifecycle/internal/audit"
	"github.com/shopkit/order-lifecycle/internal/orders"
)

// ErrPrimaryUpdate is fatal for the event being processed: the order status
// write itself failed, so the event must not be marked done and the provider
// is expected to redeliver.
var ErrPrimaryUpdate = errors.New("primary status update failed")

// OrderWriter persists a status transition with an optimistic check against
// the expected current statuses.
type OrderWriter interface {
	ApplyTransition(ctx context.Context, orderID string, expectedOrder orders.OrderStatus, expectedPayment orders.PaymentStatus, upd orders.StatusUpdate) error
}

// StockKeeper decrements per-variant stock, floored at zero, and exposes the
// low-stock threshold.
type StockKeeper interface {
	Decrement(ctx context.Context, variantID string, qty int) (int, error)
	Threshold() int
}

// CouponCounter increments a coupon's usage counter.
type CouponCounter interface {
	Increment(ctx context.Context, code string) error
}

// EmailDispatcher sends the order confirmation email. How the collaborator is
// reached (in-process, queue, RPC) is not the orchestrator's concern.
type EmailDispatcher interface {
	SendOrderConfirmation(ctx context.Context, orderID, recipient string) error
}

// LowStockAlerter notifies the back office about a variant at or below the
// configured threshold.
type LowStockAlerter interface {
	AlertLowStock(ctx context.Context, variantID string, remaining int) error
}

// AuditRecorder appends append-only audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, action, entityType, entityID string, metadata map[string]string)
}

// Orchestrator executes an Outcome's side effects in a fixed order. Only the
// primary status write is fatal; every later step failing is logged, audited
// and skipped past, because the customer-visible status was already updated.
type Orchestrator struct {
	orders  OrderWriter
	stock   StockKeeper
	coupons CouponCounter
	email   EmailDispatcher
	alerts  LowStockAlerter
	audit   AuditRecorder
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(ow OrderWriter, stock StockKeeper, coupons CouponCounter, email EmailDispatcher, alerts LowStockAlerter, auditLog AuditRecorder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		orders:  ow,
		stock:   stock,
		coupons: coupons,
		email:   email,
		alerts:  alerts,
		audit:   auditLog,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Execute applies the transition to storage and runs the effect list.
// Returns ErrPrimaryUpdate (wrapping the cause) when step 1 fails; partial
// failures in the remaining steps do not produce an error.
func (o *Orchestrator) Execute(ctx context.Context, order *orders.Order, ev Event, out Outcome) error {
	upd := orders.StatusUpdate{
		OrderStatus:   out.OrderStatus,
		PaymentStatus: out.PaymentStatus,
		PaymentRef:    ev.PaymentRef,
	}
	if out.SetReceivedAt {
		now := o.nowFunc()
		upd.ReceivedAt = &now
	}

	if err := o.orders.ApplyTransition(ctx, order.OrderID, order.OrderStatus, order.PaymentStatus, upd); err != nil {
		return fmt.Errorf("%w: %w", ErrPrimaryUpdate, err)
	}

	remaining := map[string]int{}
	for _, effect := range out.Effects {
		switch effect {
		case EffectDecrementStock:
			for _, item := range order.Items {
				left, err := o.stock.Decrement(ctx, item.VariantID, item.Quantity)
				if err != nil {
					o.stepFailed(ctx, order.OrderID, string(effect), err, map[string]string{"variant_id": item.VariantID})
					continue
				}
				remaining[item.VariantID] = left
			}

		case EffectIncrementCoupon:
			if order.CouponCode == "" {
				continue
			}
			if err := o.coupons.Increment(ctx, order.CouponCode); err != nil {
				o.stepFailed(ctx, order.OrderID, string(effect), err, map[string]string{"coupon_code": order.CouponCode})
			}

		case EffectSendEmail:
			if order.CustomerEmail == "" {
				continue
			}
			if err := o.email.SendOrderConfirmation(ctx, order.OrderID, order.CustomerEmail); err != nil {
				o.stepFailed(ctx, order.OrderID, string(effect), err, nil)
			}

		case EffectCheckLowStock:
			for variantID, left := range remaining {
				if left > o.stock.Threshold() {
					continue
				}
				if err := o.alerts.AlertLowStock(ctx, variantID, left); err != nil {
					o.stepFailed(ctx, order.OrderID, string(effect), err, map[string]string{"variant_id": variantID})
				}
			}

		default:
			o.logger.ErrorContext(ctx, "unknown side effect", "order_id", order.OrderID, "effect", string(effect))
		}
	}
	return nil
}

// stepFailed records a non-fatal side-effect failure with enough detail for
// manual reprocessing, then lets the orchestrator move on.
func (o *Orchestrator) stepFailed(ctx context.Context, orderID, step string, err error, extra map[string]string) {
	o.logger.ErrorContext(ctx, "side effect failed", "order_id", orderID, "step", step, "err", err)
	meta := map[string]string{"step": step, "error": err.Error()}
	for k, v := range extra {
		meta[k] = v
	}
	o.audit.Record(ctx, audit.ActionSideEffectFailed, "order", orderID, meta)
}
