package kafka

import "time"

// Redemption event types consumed by the downstream analytics pipeline.
const (
	EventTokenIssued  = "token.issued"
	EventTokenSettled = "token.settled"
	EventTokenExpired = "token.expired"
)

// RedemptionEvent is the wire format for redemption lifecycle events.
// Delivery is best-effort; the ledger remains the source of truth.
type RedemptionEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
	TokenID       string    `json:"token_id"`
	PurchaseID    string    `json:"purchase_id"`
	VenueID       string    `json:"venue_id"`
	UserID        string    `json:"user_id,omitempty"`
	StaffID       string    `json:"staff_id,omitempty"`
	PourML        int       `json:"pour_ml,omitempty"`
	RemainingML   *int      `json:"remaining_ml,omitempty"`
	SchemaVersion string    `json:"schema_version"`
}
