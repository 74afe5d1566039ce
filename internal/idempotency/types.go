package idempotency

import "time"

// Status values for ledger entries.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is the shape persisted in the idempotency DynamoDB table.
// A claim is provisional (IN_PROGRESS) until the full side-effect sequence
// completes and MarkDone writes the terminal marker; FAILED and stale
// IN_PROGRESS records may be re-claimed by a redelivery.
type Record struct {
	EventKey       string    `dynamodbav:"event_key"` // PK: provider#event_id
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	ClaimedAt      time.Time `dynamodbav:"claimed_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// Key builds the composite ledger key for one external event.
func Key(provider, eventID string) string {
	return provider + "#" + eventID
}
