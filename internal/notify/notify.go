package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopkit/order-lifecycle/internal/awsx"
)

// EmailQueuePublisher dispatches order confirmation emails by enqueueing a
// message for the mail worker. How the mail actually goes out is not this
// engine's concern.
type EmailQueuePublisher struct {
	pub *awsx.Publisher
}

// NewEmailQueuePublisher binds the dispatcher to an SQS queue.
func NewEmailQueuePublisher(pub *awsx.Publisher) *EmailQueuePublisher {
	return &EmailQueuePublisher{pub: pub}
}

// SendOrderConfirmation enqueues a confirmation email for the order.
func (d *EmailQueuePublisher) SendOrderConfirmation(ctx context.Context, orderID, recipient string) error {
	body, err := json.Marshal(map[string]string{
		"kind":      "order_confirmation",
		"order_id":  orderID,
		"recipient": recipient,
	})
	if err != nil {
		return fmt.Errorf("marshal email message: %w", err)
	}
	attrs := map[string]string{"order_id": orderID}
	if err := d.pub.Send(ctx, string(body), attrs); err != nil {
		return fmt.Errorf("dispatch confirmation email: %w", err)
	}
	return nil
}

// AlertQueuePublisher dispatches low-stock alerts for back-office attention.
type AlertQueuePublisher struct {
	pub *awsx.Publisher
}

// NewAlertQueuePublisher binds the alerter to an SQS queue.
func NewAlertQueuePublisher(pub *awsx.Publisher) *AlertQueuePublisher {
	return &AlertQueuePublisher{pub: pub}
}

// AlertLowStock enqueues a low-stock alert for the variant.
func (d *AlertQueuePublisher) AlertLowStock(ctx context.Context, variantID string, remaining int) error {
	body, err := json.Marshal(map[string]any{
		"kind":       "low_stock",
		"variant_id": variantID,
		"remaining":  remaining,
	})
	if err != nil {
		return fmt.Errorf("marshal alert message: %w", err)
	}
	attrs := map[string]string{"variant_id": variantID}
	if err := d.pub.Send(ctx, string(body), attrs); err != nil {
		return fmt.Errorf("dispatch low stock alert: %w", err)
	}
	return nil
}
