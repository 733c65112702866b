package cellar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/anishghanwat/StoreMyBottleApp/pkg/models"
)

// Bottle loads a ledger entry by id. The returned remaining volume is a
// snapshot; authoritative reads happen under the settlement lock.
func (e *Engine) Bottle(ctx context.Context, purchaseID string) (*models.PurchasedBottle, error) {
	row := e.db.QueryRowContext(ctx, `
		SELECT id, user_id, bottle_id, venue_id, total_ml, remaining_ml,
		       price_cents, payment_status, payment_method, purchased_at,
		       created_at, updated_at
		FROM cellarman.purchased_bottles
		WHERE id = $1
	`, purchaseID)

	return scanPurchasedBottle(row)
}

// confirmedBottleForCustomer loads a ledger entry scoped to its owner,
// restricted to confirmed purchases. Used by the issuer's ownership check.
func (e *Engine) confirmedBottleForCustomer(ctx context.Context, purchaseID, customerID string) (*models.PurchasedBottle, error) {
	row := e.db.QueryRowContext(ctx, `
		SELECT id, user_id, bottle_id, venue_id, total_ml, remaining_ml,
		       price_cents, payment_status, payment_method, purchased_at,
		       created_at, updated_at
		FROM cellarman.purchased_bottles
		WHERE id = $1 AND user_id = $2 AND payment_status = 'confirmed'
	`, purchaseID, customerID)

	return scanPurchasedBottle(row)
}

func scanPurchasedBottle(row *sql.Row) (*models.PurchasedBottle, error) {
	var p models.PurchasedBottle
	err := row.Scan(&p.ID, &p.UserID, &p.BottleID, &p.VenueID, &p.TotalML,
		&p.RemainingML, &p.PriceCents, &p.PaymentStatus, &p.PaymentMethod,
		&p.PurchasedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load purchased bottle: %w", err)
	}
	return &p, nil
}

// lockLedgerEntry takes the row lock that serializes all settlements for
// one bottle. Settlements against different bottles never contend.
func lockLedgerEntry(tx *sql.Tx, purchaseID string) (remaining, total int, err error) {
	err = tx.QueryRow(`
		SELECT remaining_ml, total_ml
		FROM cellarman.purchased_bottles
		WHERE id = $1
		FOR UPDATE
	`, purchaseID).Scan(&remaining, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to lock ledger entry: %w", err)
	}
	return remaining, total, nil
}

// debitLedgerEntry decreases remaining volume. Must only run inside the
// transaction holding the row lock from lockLedgerEntry; the WHERE guard
// makes a shortfall impossible to commit even if a caller skips the
// re-check.
func debitLedgerEntry(tx *sql.Tx, purchaseID string, amountML int) error {
	res, err := tx.Exec(`
		UPDATE cellarman.purchased_bottles
		SET remaining_ml = remaining_ml - $2, updated_at = NOW()
		WHERE id = $1 AND remaining_ml >= $2
	`, purchaseID, amountML)
	if err != nil {
		return fmt.Errorf("failed to debit ledger entry: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read debit result: %w", err)
	}
	if rows != 1 {
		return ErrInsufficientVolume
	}
	return nil
}
