package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrVerification is the transient failure class: the authoritative fetch
// from the provider did not succeed. The caller should let the provider's
// redelivery mechanism retry; nothing is recorded as processed.
var ErrVerification = errors.New("provider verification failed")

// ErrUnknownProviderStatus marks a provider status string outside the known
// enumeration. Rejected explicitly rather than defaulted, so new provider
// status values surface instead of silently mapping to pending.
var ErrUnknownProviderStatus = errors.New("unknown provider status")

// Status is the exhaustive enumeration of provider payment statuses this
// engine understands. Raw status strings are mapped through it at the
// boundary; nothing downstream sees a free-form string.
type Status string

const (
	StatusApproved    Status = "approved"
	StatusPending     Status = "pending"
	StatusInProcess   Status = "in_process"
	StatusAuthorized  Status = "authorized"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
	StatusRefunded    Status = "refunded"
	StatusChargedBack Status = "charged_back"
	StatusInMediation Status = "in_mediation"
)

// MapStatus converts a raw provider status string into the internal
// enumeration, rejecting anything unrecognized.
func MapStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusApproved, StatusPending, StatusInProcess, StatusAuthorized,
		StatusRejected, StatusCancelled, StatusRefunded, StatusChargedBack,
		StatusInMediation:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProviderStatus, raw)
	}
}

// Payment is the verified, authoritative view of one provider payment
// resource. OrderRef is the merchant-side order id the payment was created
// against (the provider's external_reference).
type Payment struct {
	ID       string
	Status   Status
	OrderRef string
}

// Fetcher re-fetches a payment resource from the originating provider.
// Notification payloads carry advisory status fields only; implementations
// must return the freshly fetched state.
type Fetcher interface {
	Name() string
	FetchPayment(ctx context.Context, paymentID string) (Payment, error)
}
