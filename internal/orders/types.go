package orders

import "time"

// OrderStatus is the customer-visible lifecycle of an order.
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderProcessing      OrderStatus = "processing"
	OrderShipped         OrderStatus = "shipped"
	OrderDelivered       OrderStatus = "delivered"
	OrderCancelled       OrderStatus = "cancelled"
)

// PaymentStatus tracks the money side of an order independently of fulfilment.
type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "pending"
	PaymentAwaitingPayment PaymentStatus = "awaiting_payment"
	PaymentPaid            PaymentStatus = "paid"
	PaymentFailed          PaymentStatus = "failed"
	PaymentRefunded        PaymentStatus = "refunded"
	PaymentDisputed        PaymentStatus = "disputed"
)

// Item is one immutable line of an order. This engine only reads items
// to compute stock decrements.
type Item struct {
	VariantID      string `dynamodbav:"variant_id"`
	Quantity       int    `dynamodbav:"quantity"`
	UnitPriceCents int64  `dynamodbav:"unit_price_cents"`
}

// Order is the item stored in the orders table. The checkout flow creates it;
// this engine owns the status fields from then on.
type Order struct {
	OrderID        string        `dynamodbav:"order_id"` // PK
	CustomerEmail  string        `dynamodbav:"customer_email,omitempty"`
	TotalCents     int64         `dynamodbav:"total_cents"`
	OrderStatus    OrderStatus   `dynamodbav:"order_status"`
	PaymentStatus  PaymentStatus `dynamodbav:"payment_status"`
	PaymentGateway string        `dynamodbav:"payment_gateway,omitempty"`
	PaymentRef     string        `dynamodbav:"payment_ref,omitempty"` // provider-assigned, set at most once
	CouponCode     string        `dynamodbav:"coupon_code,omitempty"`
	ReceivedAt     *time.Time    `dynamodbav:"received_at,omitempty"`
	Items          []Item        `dynamodbav:"items,omitempty"`
	CreatedAt      time.Time     `dynamodbav:"created_at"`
	UpdatedAt      time.Time     `dynamodbav:"updated_at"`
}
