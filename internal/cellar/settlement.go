package cellar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/lib/pq"

	"github.com/anishghanwat/StoreMyBottleApp/pkg/kafka"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/logging"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/models"
)

// Receipt is the settlement confirmation shown on the scanning device.
type Receipt struct {
	TokenID     string
	PourML      int
	RemainingML int
	TotalML     int
	Display     DisplayInfo
	RedeemedAt  time.Time
}

type settleResult struct {
	remainingML int
	totalML     int
}

// Settle validates a scanned token and, if eligible, debits the ledger
// and marks the token redeemed as one atomic unit. Exactly one Settle
// call for a given secret ever succeeds; concurrent duplicates observe
// ErrAlreadyUsed.
func (e *Engine) Settle(ctx context.Context, secret, staffID string) (*Receipt, error) {
	var t models.RedemptionToken
	err := e.db.QueryRowContext(ctx, `
		SELECT id, purchase_id, user_id, venue_id, pour_ml, expires_at, status, created_at
		FROM cellarman.redemption_tokens
		WHERE secret = $1
	`, secret).Scan(&t.ID, &t.PurchaseID, &t.UserID, &t.VenueID, &t.PourML,
		&t.ExpiresAt, &t.Status, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		e.countSettled("invalid_token")
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	switch t.Status {
	case models.TokenRedeemed:
		e.countSettled("already_used")
		return nil, ErrAlreadyUsed
	case models.TokenCancelled:
		e.countSettled("cancelled")
		return nil, ErrTokenCancelled
	}

	now := e.now().UTC()
	if now.After(t.ExpiresAt) {
		// Persist the lazy expiry flip even though this scan fails. The
		// status guard keeps a racing settlement's terminal state intact.
		if _, err := e.db.ExecContext(ctx, `
			UPDATE cellarman.redemption_tokens
			SET status = 'expired', updated_at = NOW()
			WHERE id = $1 AND status = 'pending'
		`, t.ID); err != nil {
			e.logger.WithError(err).WithField("token_id", t.ID).Warn("Failed to persist token expiry")
		}
		e.countSettled("expired")
		e.publishEvent(ctx, &kafka.RedemptionEvent{
			EventType:  kafka.EventTokenExpired,
			TokenID:    t.ID,
			PurchaseID: t.PurchaseID,
			VenueID:    t.VenueID,
			UserID:     t.UserID,
		})
		return nil, ErrTokenExpired
	}

	// Steps below commit the debit and the token transition atomically.
	// Transient serialization failures retry from the lock acquisition;
	// nothing is committed before that point.
	retry := retrypolicy.Builder[settleResult]().
		HandleIf(func(_ settleResult, err error) bool { return isTransientTxError(err) }).
		WithMaxRetries(2).
		Build()

	result, err := failsafe.Get(func() (settleResult, error) {
		return e.settleTx(ctx, &t, staffID, now)
	}, retry)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientVolume):
			e.countSettled("insufficient_volume")
		case errors.Is(err, ErrAlreadyUsed):
			e.countSettled("already_used")
		case errors.Is(err, ErrTokenCancelled):
			e.countSettled("cancelled")
		case errors.Is(err, ErrTokenExpired):
			e.countSettled("expired")
		default:
			e.countSettled("error")
		}
		return nil, err
	}

	display, err := e.displayInfo(ctx, t.PurchaseID)
	if err != nil {
		// The debit is committed; a receipt without master data context
		// is better than reporting failure for a successful pour.
		e.logger.WithError(err).WithField("purchase_id", t.PurchaseID).Warn("Failed to derive receipt context")
		display = &DisplayInfo{}
	}

	e.countSettled("settled")
	e.logger.WithFields(logging.Fields{
		"token_id":     t.ID,
		"purchase_id":  t.PurchaseID,
		"pour_ml":      t.PourML,
		"remaining_ml": result.remainingML,
		"staff_id":     staffID,
	}).Info("Settled redemption token")

	remaining := result.remainingML
	e.publishEvent(ctx, &kafka.RedemptionEvent{
		EventType:   kafka.EventTokenSettled,
		TokenID:     t.ID,
		PurchaseID:  t.PurchaseID,
		VenueID:     t.VenueID,
		UserID:      t.UserID,
		StaffID:     staffID,
		PourML:      t.PourML,
		RemainingML: &remaining,
	})

	return &Receipt{
		TokenID:     t.ID,
		PourML:      t.PourML,
		RemainingML: result.remainingML,
		TotalML:     result.totalML,
		Display:     *display,
		RedeemedAt:  now,
	}, nil
}

// settleTx performs the locked re-check, token transition and debit. Any
// error rolls the whole unit back; a partially applied settlement can
// never commit.
func (e *Engine) settleTx(ctx context.Context, t *models.RedemptionToken, staffID string, now time.Time) (settleResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return settleResult{}, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is best-effort

	remaining, total, err := lockLedgerEntry(tx, t.PurchaseID)
	if err != nil {
		return settleResult{}, err
	}

	// Re-check under the lock: other tokens against this bottle may have
	// settled since the issuance-time advisory check.
	if remaining < t.PourML {
		return settleResult{}, fmt.Errorf("%w: %d ml left, pour needs %d", ErrInsufficientVolume, remaining, t.PourML)
	}

	// Conditional transition defends against a settlement race where both
	// callers passed the pre-lock status check.
	res, err := tx.Exec(`
		UPDATE cellarman.redemption_tokens
		SET status = 'redeemed', redeemed_at = $2, redeemed_by_staff_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, t.ID, now, staffID)
	if err != nil {
		return settleResult{}, fmt.Errorf("failed to transition token: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return settleResult{}, fmt.Errorf("failed to read transition result: %w", err)
	}
	if rows != 1 {
		return settleResult{}, e.lostRaceError(tx, t.ID)
	}

	if err := debitLedgerEntry(tx, t.PurchaseID, t.PourML); err != nil {
		return settleResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return settleResult{}, fmt.Errorf("failed to commit settlement: %w", err)
	}

	return settleResult{remainingML: remaining - t.PourML, totalML: total}, nil
}

// lostRaceError maps the token's current state onto the right rejection
// after a conditional transition matched zero rows.
func (e *Engine) lostRaceError(tx *sql.Tx, tokenID string) error {
	var status models.TokenStatus
	if err := tx.QueryRow(`
		SELECT status FROM cellarman.redemption_tokens WHERE id = $1
	`, tokenID).Scan(&status); err != nil {
		return fmt.Errorf("failed to re-read token status: %w", err)
	}

	switch status {
	case models.TokenCancelled:
		return ErrTokenCancelled
	case models.TokenExpired:
		return ErrTokenExpired
	default:
		return ErrAlreadyUsed
	}
}

// isTransientTxError reports whether the settlement transaction hit a
// retryable Postgres condition (serialization failure or deadlock).
func isTransientTxError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
