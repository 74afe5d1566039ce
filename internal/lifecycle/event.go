package lifecycle

import "github.com/shopkit/order-lifecycle/internal/gateway"

// EventKind distinguishes the two inbound notification paths.
type EventKind string

const (
	KindPayment      EventKind = "payment"
	KindConfirmation EventKind = "confirmation"
)

// ConfirmationProvider is the provider tag used for confirmation-link events.
const ConfirmationProvider = "confirmation-link"

// Event is the verified, normalized form of one inbound notification.
// It is transient: built after verification, consumed by the state machine,
// never persisted on its own.
type Event struct {
	Provider   string
	EventID    string
	Kind       EventKind
	Status     gateway.Status // payment events only
	OrderRef   string
	PaymentRef string
}
