package dto

// WebhookAckResponse acknowledges a processed or accepted-duplicate webhook
// delivery so the provider stops retrying.
type WebhookAckResponse struct {
	Received bool `json:"received"`
	// Duplicate reports that the event had already been processed and this
	// delivery produced no side effects
	Duplicate bool `json:"duplicate,omitempty"`
}
