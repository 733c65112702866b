package cellarman

import (
	"time"

	"github.com/anishghanwat/StoreMyBottleApp/pkg/models"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// QRDisplayPayload is the denormalized payload rendered into the QR code
// client-side. It is derived at issuance time from joined master data and
// never persisted on the token.
type QRDisplayPayload struct {
	ID      string    `json:"id"`
	Venue   string    `json:"venue"`
	Bottle  string    `json:"bottle"`
	ML      int       `json:"ml"`
	Exp     time.Time `json:"exp"`
	Created time.Time `json:"created"`
}

// TokenResponse is returned on successful issuance.
type TokenResponse struct {
	ID         string           `json:"id"`
	PurchaseID string           `json:"purchase_id"`
	PourML     int              `json:"pour_ml"`
	Secret     string           `json:"qr_token"`
	QRData     QRDisplayPayload `json:"qr_data"`
	ExpiresAt  time.Time        `json:"qr_expires_at"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
}

// SettlementReceipt gives the scanning device enough context to show a
// receipt after a successful pour.
type SettlementReceipt struct {
	TokenID      string    `json:"token_id"`
	PourML       int       `json:"pour_ml"`
	RemainingML  int       `json:"remaining_ml"`
	TotalML      int       `json:"total_ml"`
	BottleBrand  string    `json:"bottle_brand"`
	BottleName   string    `json:"bottle_name"`
	CustomerName string    `json:"customer_name"`
	RedeemedAt   time.Time `json:"redeemed_at"`
}

// SettleTokenResponse is the bartender-facing outcome of a scan.
type SettleTokenResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Receipt *SettlementReceipt `json:"receipt,omitempty"`
}

// PurchaseResponse mirrors the ledger entry for customer-facing endpoints.
type PurchaseResponse = models.PurchasedBottle

// UserBottle is a purchased bottle decorated for the customer's shelf view.
type UserBottle struct {
	ID          string    `json:"id"`
	BottleID    string    `json:"bottleId"`
	VenueName   string    `json:"venueName"`
	BottleName  string    `json:"bottleName"`
	BottleBrand string    `json:"bottleBrand"`
	TotalML     int       `json:"totalMl"`
	RemainingML int       `json:"remainingMl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// UserBottleList wraps the customer's bottles.
type UserBottleList struct {
	Bottles []UserBottle `json:"bottles"`
	Total   int          `json:"total"`
}

// PendingPurchase is a purchase request awaiting bartender confirmation.
type PendingPurchase struct {
	ID            string    `json:"id"`
	CustomerName  string    `json:"customer_name"`
	BottleBrand   string    `json:"bottle_brand"`
	BottleName    string    `json:"bottle_name"`
	VolumeML      int       `json:"volume_ml"`
	PriceCents    int64     `json:"price_cents"`
	PaymentMethod *string   `json:"payment_method,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Status        string    `json:"status"`
}

// RedemptionHistoryItem is one row of a customer's or venue's redemption
// history.
type RedemptionHistoryItem struct {
	ID          string     `json:"id"`
	BottleBrand string     `json:"bottle_brand"`
	BottleName  string     `json:"bottle_name"`
	VenueName   string     `json:"venue_name"`
	PourML      int        `json:"pour_ml"`
	Status      string     `json:"status"`
	RedeemedAt  *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UserName    string     `json:"user_name,omitempty"`
}

// RedemptionHistoryList wraps redemption history rows.
type RedemptionHistoryList struct {
	Redemptions []RedemptionHistoryItem `json:"redemptions"`
	Total       int                     `json:"total"`
}
