package models

import "time"

// PaymentStatus tracks the purchase-confirmation lifecycle. Only confirmed
// purchases participate in redemption.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

// TokenStatus is the redemption token state machine. A token leaves
// Pending exactly once.
type TokenStatus string

const (
	TokenPending   TokenStatus = "pending"
	TokenRedeemed  TokenStatus = "redeemed"
	TokenExpired   TokenStatus = "expired"
	TokenCancelled TokenStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s TokenStatus) Terminal() bool {
	return s == TokenRedeemed || s == TokenExpired || s == TokenCancelled
}

// Venue represents venue master data (owned by the venue admin surface).
type Venue struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	IsOpen    bool      `json:"is_open"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bottle represents a catalog bottle available for purchase at a venue.
type Bottle struct {
	ID          string    `json:"id"`
	VenueID     string    `json:"venue_id"`
	Brand       string    `json:"brand"`
	Name        string    `json:"name"`
	PriceCents  int64     `json:"price_cents"`
	VolumeML    int       `json:"volume_ml"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PurchasedBottle is the volume ledger entry. TotalML is immutable after
// payment confirmation; RemainingML only ever decreases, and only inside
// the settlement transaction.
type PurchasedBottle struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	BottleID      string        `json:"bottle_id"`
	VenueID       string        `json:"venue_id"`
	TotalML       int           `json:"total_ml"`
	RemainingML   int           `json:"remaining_ml"`
	PriceCents    int64         `json:"price_cents"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMethod *string       `json:"payment_method,omitempty"`
	PurchasedAt   *time.Time    `json:"purchased_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// AcquiredAt returns the timestamp the freshness window is measured from.
// Falls back to row creation when the purchase was never stamped.
func (p *PurchasedBottle) AcquiredAt() time.Time {
	if p.PurchasedAt != nil {
		return *p.PurchasedAt
	}
	return p.CreatedAt
}

// RedemptionToken is a short-lived, single-use claim authorizing one pour
// against a purchased bottle. The secret is the scannable QR value.
type RedemptionToken struct {
	ID                string      `json:"id"`
	PurchaseID        string      `json:"purchase_id"`
	UserID            string      `json:"user_id"`
	VenueID           string      `json:"venue_id"`
	PourML            int         `json:"pour_ml"`
	Secret            string      `json:"-"`
	ExpiresAt         time.Time   `json:"expires_at"`
	Status            TokenStatus `json:"status"`
	RedeemedAt        *time.Time  `json:"redeemed_at,omitempty"`
	RedeemedByStaffID *string     `json:"redeemed_by_staff_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
