package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopkit/order-lifecycle/internal/audit"
	"github.com/shopkit/order-lifecycle/internal/confirm"
	"github.com/shopkit/order-lifecycle/internal/gateway"
	"github.com/shopkit/order-lifecycle/internal/idempotency"
	"github.com/shopkit/order-lifecycle/internal/metrics"
	"github.com/shopkit/order-lifecycle/internal/orders"
)

// OrderReader loads an order by id. Returns (nil, nil) when absent.
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
}

// Ledger is the idempotency gate the pipeline coordinates through.
type Ledger interface {
	Claim(ctx context.Context, provider, eventID, orderID string) (bool, *idempotency.Record, error)
	MarkDone(ctx context.Context, provider, eventID, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, provider, eventID, note string) error
}

// TokenVerifier validates confirmation-link tokens.
type TokenVerifier interface {
	Verify(orderID, token string) error
}

// Counter emits unit metrics. Implementations must be safe to call on every
// request path.
type Counter interface {
	Count(ctx context.Context, name string)
}

// WebhookResponse is the JSON body returned to the payment provider.
type WebhookResponse struct {
	Received bool   `json:"received"`
	OrderID  string `json:"orderId,omitempty"`
	Status   string `json:"status,omitempty"`
}

// WebhookResult carries the HTTP outcome of one webhook delivery. RawBody,
// when set, is a previously recorded response replayed verbatim.
type WebhookResult struct {
	HTTPStatus int
	Body       WebhookResponse
	RawBody    string
}

// Confirmation statuses reported to the end user.
const (
	ConfirmStatusConfirmed = "confirmed"
	ConfirmStatusAlready   = "already"
	ConfirmStatusInvalid   = "invalid"
	ConfirmStatusExpired   = "expired"
	ConfirmStatusError     = "error"
)

// ConfirmResult carries the outcome of one confirmation-link submission.
type ConfirmResult struct {
	HTTPStatus int
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// Pipeline composes the full reconciliation flow: verify, claim, transition,
// orchestrate, commit, audit. Handlers stay thin on top of it.
type Pipeline struct {
	gateway gateway.Fetcher
	tokens  TokenVerifier
	orders  OrderReader
	ledger  Ledger
	orch    *Orchestrator
	audit   AuditRecorder
	metrics Counter
	logger  *slog.Logger
}

// NewPipeline wires the pipeline's collaborators.
func NewPipeline(g gateway.Fetcher, tokens TokenVerifier, reader OrderReader, ledger Ledger, orch *Orchestrator, auditLog AuditRecorder, counter Counter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		gateway: g,
		tokens:  tokens,
		orders:  reader,
		ledger:  ledger,
		orch:    orch,
		audit:   auditLog,
		metrics: counter,
		logger:  logger,
	}
}

// HandlePaymentNotification processes one provider webhook delivery carrying
// a payment resource id. The notification's own status fields are never
// consulted; the provider is re-fetched for the authoritative state.
func (p *Pipeline) HandlePaymentNotification(ctx context.Context, paymentID string) WebhookResult {
	p.metrics.Count(ctx, metrics.EventsReceived)
	provider := p.gateway.Name()

	pay, err := p.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gateway.ErrUnknownProviderStatus) {
			p.logger.ErrorContext(ctx, "unknown provider status", "provider", provider, "payment_id", paymentID, "err", err)
			p.reject(ctx, provider, paymentID, "unknown_provider_status")
			return WebhookResult{HTTPStatus: http.StatusOK, Body: WebhookResponse{Received: false}}
		}
		// Transient: nothing recorded, provider redelivers.
		p.logger.WarnContext(ctx, "verification failed", "provider", provider, "payment_id", paymentID, "err", err)
		p.metrics.Count(ctx, metrics.EventsRetriable)
		return WebhookResult{HTTPStatus: http.StatusBadGateway, Body: WebhookResponse{Received: false}}
	}

	order, err := p.orders.Get(ctx, pay.OrderRef)
	if err != nil {
		p.logger.ErrorContext(ctx, "order lookup failed", "order_ref", pay.OrderRef, "err", err)
		p.metrics.Count(ctx, metrics.EventsRetriable)
		return WebhookResult{HTTPStatus: http.StatusInternalServerError, Body: WebhookResponse{Received: false}}
	}
	if order == nil || (order.PaymentGateway != "" && order.PaymentGateway != provider) {
		p.logger.ErrorContext(ctx, "order mismatch", "provider", provider, "payment_id", paymentID, "order_ref", pay.OrderRef, "err", ErrOrderMismatch)
		p.reject(ctx, provider, paymentID, "order_mismatch")
		return WebhookResult{HTTPStatus: http.StatusOK, Body: WebhookResponse{Received: false}}
	}
	if order.PaymentRef != "" && order.PaymentRef != pay.ID {
		// A second provider reference for the same order is a hard error.
		p.logger.ErrorContext(ctx, "payment reference conflict", "order_id", order.OrderID, "have", order.PaymentRef, "got", pay.ID, "err", orders.ErrPaymentRefConflict)
		p.reject(ctx, provider, paymentID, "payment_ref_conflict")
		return WebhookResult{HTTPStatus: http.StatusOK, Body: WebhookResponse{Received: false}}
	}

	claimed, prior, err := p.ledger.Claim(ctx, provider, pay.ID, order.OrderID)
	if err != nil {
		p.logger.ErrorContext(ctx, "idempotency claim failed", "provider", provider, "event_id", pay.ID, "err", err)
		p.metrics.Count(ctx, metrics.EventsRetriable)
		return WebhookResult{HTTPStatus: http.StatusInternalServerError, Body: WebhookResponse{Received: false}}
	}
	if !claimed {
		return p.replay(ctx, provider, pay.ID, order.OrderID, prior)
	}

	ev := Event{
		Provider:   provider,
		EventID:    pay.ID,
		Kind:       KindPayment,
		Status:     pay.Status,
		OrderRef:   pay.OrderRef,
		PaymentRef: pay.ID,
	}

	out, err := Transition(order.OrderStatus, order.PaymentStatus, ev)
	if err != nil {
		_ = p.ledger.MarkFailed(ctx, provider, pay.ID, err.Error())
		p.logger.ErrorContext(ctx, "transition failed", "order_id", order.OrderID, "err", err)
		return WebhookResult{HTTPStatus: http.StatusInternalServerError, Body: WebhookResponse{Received: false}}
	}

	if !out.NoOp {
		if err := p.orch.Execute(ctx, order, ev, out); err != nil {
			// Primary update failed: release the claim so redelivery retries
			// the whole pipeline.
			_ = p.ledger.MarkFailed(ctx, provider, pay.ID, err.Error())
			p.logger.ErrorContext(ctx, "orchestration failed", "order_id", order.OrderID, "err", err)
			p.metrics.Count(ctx, metrics.EventsRetriable)
			return WebhookResult{HTTPStatus: http.StatusInternalServerError, Body: WebhookResponse{Received: false}}
		}
	}

	resp := WebhookResponse{Received: true, OrderID: order.OrderID, Status: string(out.OrderStatus)}
	p.commit(ctx, provider, pay.ID, order.OrderID, resp, map[string]string{
		"provider":        provider,
		"event_id":        pay.ID,
		"provider_status": string(pay.Status),
		"order_status":    string(out.OrderStatus),
		"payment_status":  string(out.PaymentStatus),
	})
	return WebhookResult{HTTPStatus: http.StatusOK, Body: resp}
}

// HandleConfirmation processes one delivery-confirmation submission.
func (p *Pipeline) HandleConfirmation(ctx context.Context, orderID, token string) ConfirmResult {
	p.metrics.Count(ctx, metrics.ConfirmationsReceived)

	if err := p.tokens.Verify(orderID, token); err != nil {
		switch {
		case errors.Is(err, confirm.ErrTokenExpired):
			p.metrics.Count(ctx, metrics.EventsRejected)
			return ConfirmResult{
				HTTPStatus: http.StatusGone,
				Status:     ConfirmStatusExpired,
				Message:    "This confirmation link has expired. Please request a new one.",
			}
		default:
			p.metrics.Count(ctx, metrics.EventsRejected)
			return ConfirmResult{
				HTTPStatus: http.StatusBadRequest,
				Status:     ConfirmStatusInvalid,
				Message:    "This confirmation link is not valid. Please request a new one.",
			}
		}
	}

	order, err := p.orders.Get(ctx, orderID)
	if err != nil {
		p.logger.ErrorContext(ctx, "order lookup failed", "order_id", orderID, "err", err)
		return p.confirmError()
	}
	if order == nil {
		p.logger.ErrorContext(ctx, "confirmation for unknown order", "order_id", orderID, "err", ErrOrderMismatch)
		p.audit.Record(ctx, audit.ActionEventRejected, "order", orderID, map[string]string{"reason": "order_mismatch", "provider": ConfirmationProvider})
		return p.confirmError()
	}

	ev := Event{Provider: ConfirmationProvider, Kind: KindConfirmation, OrderRef: orderID}
	out, err := Transition(order.OrderStatus, order.PaymentStatus, ev)
	if err != nil {
		p.logger.ErrorContext(ctx, "transition failed", "order_id", orderID, "err", err)
		return p.confirmError()
	}
	if out.AlreadyDelivered {
		return p.confirmAlready()
	}

	if err := p.orch.Execute(ctx, order, ev, out); err != nil {
		if errors.Is(err, orders.ErrStatusMismatch) {
			// Lost a race with a concurrent confirmation: re-read and report
			// the friendly outcome.
			if o2, err2 := p.orders.Get(ctx, orderID); err2 == nil && o2 != nil && o2.OrderStatus == orders.OrderDelivered {
				return p.confirmAlready()
			}
		}
		p.logger.ErrorContext(ctx, "confirmation update failed", "order_id", orderID, "err", err)
		return p.confirmError()
	}

	p.audit.Record(ctx, audit.ActionOrderConfirmed, "order", orderID, map[string]string{"order_status": string(orders.OrderDelivered)})
	p.metrics.Count(ctx, metrics.ConfirmationsConfirmed)
	return ConfirmResult{
		HTTPStatus: http.StatusOK,
		Status:     ConfirmStatusConfirmed,
		Message:    "Thanks! Your delivery has been confirmed.",
	}
}

func (p *Pipeline) confirmAlready() ConfirmResult {
	return ConfirmResult{
		HTTPStatus: http.StatusOK,
		Status:     ConfirmStatusAlready,
		Message:    "This order was already confirmed. Nothing else to do.",
	}
}

func (p *Pipeline) confirmError() ConfirmResult {
	return ConfirmResult{
		HTTPStatus: http.StatusInternalServerError,
		Status:     ConfirmStatusError,
		Message:    "We could not record your confirmation. Please try again later.",
	}
}

// replay answers a duplicate delivery with the originally recorded outcome.
func (p *Pipeline) replay(ctx context.Context, provider, eventID, orderID string, prior *idempotency.Record) WebhookResult {
	p.metrics.Count(ctx, metrics.EventsDuplicate)
	p.audit.Record(ctx, audit.ActionEventDuplicate, "payment_event", idempotency.Key(provider, eventID), map[string]string{"order_id": orderID})
	p.logger.InfoContext(ctx, "duplicate event", "provider", provider, "event_id", eventID, "order_id", orderID)

	if prior != nil && prior.Status == idempotency.StatusDone && prior.ResponseBody != "" {
		return WebhookResult{HTTPStatus: prior.ResponseStatus, RawBody: prior.ResponseBody}
	}
	// A concurrent claim holder is still working; acknowledge so the provider
	// does not redeliver while it finishes.
	return WebhookResult{HTTPStatus: http.StatusOK, Body: WebhookResponse{Received: true, OrderID: orderID, Status: "in_progress"}}
}

// commit marks the event done with its recorded response and audits it.
// A MarkDone failure is logged only: the transition is already applied, and a
// later redelivery degrades to a no-op at the state-machine level.
func (p *Pipeline) commit(ctx context.Context, provider, eventID, orderID string, resp WebhookResponse, meta map[string]string) {
	body, err := json.Marshal(resp)
	if err == nil {
		if err := p.ledger.MarkDone(ctx, provider, eventID, string(body), http.StatusOK); err != nil {
			p.logger.ErrorContext(ctx, "mark done failed", "provider", provider, "event_id", eventID, "err", err)
		}
	}
	p.audit.Record(ctx, audit.ActionEventProcessed, "order", orderID, meta)
	p.metrics.Count(ctx, metrics.EventsProcessed)
}

// reject audits a terminal rejection; the event is not applied and not
// recorded in the ledger.
func (p *Pipeline) reject(ctx context.Context, provider, eventID, reason string) {
	p.audit.Record(ctx, audit.ActionEventRejected, "payment_event", idempotency.Key(provider, eventID), map[string]string{"reason": reason})
	p.metrics.Count(ctx, metrics.EventsRejected)
}
