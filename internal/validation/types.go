package validation

// WebhookNotification is the JSON body shape of a provider webhook delivery.
// Only the resource id is taken from it; status fields in the payload are
// advisory and ignored.
type WebhookNotification struct {
	Type string `json:"type,omitempty"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ConfirmRequest is the payload for the delivery-confirmation endpoint.
type ConfirmRequest struct {
	Token string `json:"token" form:"token" validate:"required"`
}
