// Package cellarman defines the request/response contracts for the
// cellarman HTTP API.
package cellarman

// CreatePurchaseRequest initiates a purchase (payment still pending).
type CreatePurchaseRequest struct {
	VenueID  string `json:"venue_id" binding:"required"`
	BottleID string `json:"bottle_id" binding:"required"`
}

// ConfirmPurchaseRequest confirms payment for a pending purchase.
type ConfirmPurchaseRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// ProcessPurchaseRequest is the bartender's confirm/reject decision for a
// pending purchase request.
type ProcessPurchaseRequest struct {
	Action string `json:"action" binding:"required,oneof=confirm reject"`
}

// IssueTokenRequest asks for a redemption QR against a purchased bottle.
type IssueTokenRequest struct {
	PurchaseID string `json:"purchase_id" binding:"required"`
	PourML     int    `json:"pour_ml" binding:"required"`
}

// SettleTokenRequest is submitted by the bartender's scanning device.
type SettleTokenRequest struct {
	Secret string `json:"qr_token" binding:"required"`
}
