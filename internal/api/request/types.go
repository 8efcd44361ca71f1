package request

// ResumeSessionRequest is the request body for resuming a session
type ResumeSessionRequest struct {
	SessionToken string `json:"session_token"`
}

// ProviderTokenRequest is the request body for provider sign-in and linking
type ProviderTokenRequest struct {
	AccessToken string `json:"access_token"`
}

// SetNameRequest is the request body for setting the display name
type SetNameRequest struct {
	DisplayName string `json:"display_name"`
}

// PurchaseRequest is the request body for a virtual purchase
type PurchaseRequest struct {
	PurchaseID string `json:"purchase_id"`
}

// IdempotencyKeyHeader carries the optional purchase idempotency key
const IdempotencyKeyHeader = "Idempotency-Key"
