package cellar

import (
	"context"
	"fmt"

	"github.com/anishghanwat/StoreMyBottleApp/pkg/kafka"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/logging"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/models"
)

// IssuedToken pairs a freshly created token with the denormalized context
// the client renders into the QR code.
type IssuedToken struct {
	Token   models.RedemptionToken
	Display DisplayInfo
}

// Issue creates a pending redemption token for one pour against the
// customer's bottle. The remaining-volume check here is advisory only:
// tokens do not reserve volume, so the authoritative check is repeated
// under the lock at settlement.
func (e *Engine) Issue(ctx context.Context, customerID, purchaseID string, pourML int) (*IssuedToken, error) {
	if !e.cfg.ValidPourSize(pourML) {
		e.countIssued("invalid_pour_size")
		return nil, fmt.Errorf("%w: %d ml not in %v", ErrInvalidPourSize, pourML, e.cfg.PourSizesML)
	}

	bottle, err := e.confirmedBottleForCustomer(ctx, purchaseID, customerID)
	if err != nil {
		e.countIssued("not_found")
		return nil, err
	}

	if bottle.RemainingML < pourML {
		e.countIssued("insufficient_volume")
		return nil, fmt.Errorf("%w: only %d ml left", ErrInsufficientVolume, bottle.RemainingML)
	}

	now := e.now().UTC()
	if now.After(bottle.AcquiredAt().Add(e.cfg.FreshnessWindow)) {
		e.countIssued("bottle_expired")
		return nil, ErrBottleExpired
	}

	secret, err := newSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}

	token := models.RedemptionToken{
		PurchaseID: bottle.ID,
		UserID:     bottle.UserID,
		VenueID:    bottle.VenueID,
		PourML:     pourML,
		Secret:     secret,
		ExpiresAt:  now.Add(e.cfg.TokenTTL),
		Status:     models.TokenPending,
	}

	err = e.db.QueryRowContext(ctx, `
		INSERT INTO cellarman.redemption_tokens
			(purchase_id, user_id, venue_id, pour_ml, secret, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING id, created_at, updated_at
	`, token.PurchaseID, token.UserID, token.VenueID, token.PourML,
		token.Secret, token.ExpiresAt).Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create redemption token: %w", err)
	}

	display, err := e.displayInfo(ctx, bottle.ID)
	if err != nil {
		return nil, err
	}

	e.countIssued("issued")
	e.logger.WithFields(logging.Fields{
		"token_id":    token.ID,
		"purchase_id": bottle.ID,
		"pour_ml":     pourML,
		"expires_at":  token.ExpiresAt,
	}).Info("Issued redemption token")

	e.publishEvent(ctx, &kafka.RedemptionEvent{
		EventType:  kafka.EventTokenIssued,
		TokenID:    token.ID,
		PurchaseID: bottle.ID,
		VenueID:    bottle.VenueID,
		UserID:     bottle.UserID,
		PourML:     pourML,
	})

	return &IssuedToken{Token: token, Display: *display}, nil
}
