package cellar

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func pendingTokenRow(tokenID string, pourML int, expiresAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(tokenColumns).AddRow(
		tokenID, "purchase-1", "user-1", "venue-1", pourML, expiresAt,
		"pending", testNow.Add(-time.Minute),
	)
}

func expectTokenLookup(mock sqlmock.Sqlmock, secret string, rows *sqlmock.Rows) {
	mock.ExpectQuery("SELECT id, purchase_id, user_id, venue_id, pour_ml, expires_at, status, created_at").
		WithArgs(secret).
		WillReturnRows(rows)
}

func TestSettleDebitsBottleAndRedeemsToken(t *testing.T) {
	engine, mock := newTestEngine(t)

	expectTokenLookup(mock, "secret-1", pendingTokenRow("token-1", 60, testNow.Add(10*time.Minute)))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT remaining_ml, total_ml").
		WithArgs("purchase-1").
		WillReturnRows(sqlmock.NewRows([]string{"remaining_ml", "total_ml"}).AddRow(750, 750))
	mock.ExpectExec("UPDATE cellarman.redemption_tokens").
		WithArgs("token-1", testNow, "staff-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE cellarman.purchased_bottles").
		WithArgs("purchase-1", 60).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT v.name, b.brand, b.name, u.name").
		WithArgs("purchase-1").
		WillReturnRows(displayRows())

	receipt, err := engine.Settle(context.Background(), "secret-1", "staff-1")
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	if receipt.RemainingML != 690 {
		t.Errorf("expected 690 ml remaining after debit, got %d", receipt.RemainingML)
	}
	if receipt.TotalML != 750 {
		t.Errorf("expected total 750 ml, got %d", receipt.TotalML)
	}
	if receipt.PourML != 60 {
		t.Errorf("expected pour of 60 ml, got %d", receipt.PourML)
	}
	if !receipt.RedeemedAt.Equal(testNow) {
		t.Errorf("expected redeemed_at %v, got %v", testNow, receipt.RedeemedAt)
	}

	expectationsMet(t, mock)
}

func TestSettleRejectsUnknownSecret(t *testing.T) {
	engine, mock := newTestEngine(t)

	expectTokenLookup(mock, "bogus", sqlmock.NewRows(tokenColumns))

	_, err := engine.Settle(context.Background(), "bogus", "staff-1")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestSettleRejectsAlreadyRedeemedToken(t *testing.T) {
	engine, mock := newTestEngine(t)

	rows := sqlmock.NewRows(tokenColumns).AddRow(
		"token-1", "purchase-1", "user-1", "venue-1", 45,
		testNow.Add(10*time.Minute), "redeemed", testNow.Add(-time.Minute))
	expectTokenLookup(mock, "secret-1", rows)

	_, err := engine.Settle(context.Background(), "secret-1", "staff-1")
	if !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestSettleRejectsCancelledToken(t *testing.T) {
	engine, mock := newTestEngine(t)

	rows := sqlmock.NewRows(tokenColumns).AddRow(
		"token-1", "purchase-1", "user-1", "venue-1", 45,
		testNow.Add(10*time.Minute), "cancelled", testNow.Add(-time.Minute))
	expectTokenLookup(mock, "secret-1", rows)

	_, err := engine.Settle(context.Background(), "secret-1", "staff-1")
	if !errors.Is(err, ErrTokenCancelled) {
		t.Fatalf("expected ErrTokenCancelled, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestSettlePersistsLazyExpiry(t *testing.T) {
	engine, mock := newTestEngine(t)

	expectTokenLookup(mock, "secret-1", pendingTokenRow("token-1", 45, testNow.Add(-time.Second)))

	// The scan fails, but the stale token is flipped to expired on disk.
	mock.ExpectExec("UPDATE cellarman.redemption_tokens").
		WithArgs("token-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := engine.Settle(context.Background(), "secret-1", "staff-1")
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestSettleRejectsInsufficientVolumeUnderLock(t *testing.T) {
	engine, mock := newTestEngine(t)

	expectTokenLookup(mock, "secret-1", pendingTokenRow("token-1", 45, testNow.Add(10*time.Minute)))

	// Another token drained the bottle between issuance and this scan.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT remaining_ml, total_ml").
		WithArgs("purchase-1").
		WillReturnRows(sqlmock.NewRows([]string{"remaining_ml", "total_ml"}).AddRow(40, 750))
	mock.ExpectRollback()

	_, err := engine.Settle(context.Background(), "secret-1", "staff-1")
	if !errors.Is(err, ErrInsufficientVolume) {
		t.Fatalf("expected ErrInsufficientVolume, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestSettleLostTransitionRaceMapsToAlreadyUsed(t *testing.T) {
	engine, mock := newTestEngine(t)

	expectTokenLookup(mock, "secret-1", pendingTokenRow("token-1", 45, testNow.Add(10*time.Minute)))

	// A concurrent scan redeemed the token after our pre-lock status check.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT remaining_ml, total_ml").
		WithArgs("purchase-1").
		WillReturnRows(sqlmock.NewRows([]string{"remaining_ml", "total_ml"}).AddRow(750, 750))
	mock.ExpectExec("UPDATE cellarman.redemption_tokens").
		WithArgs("token-1", testNow, "staff-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM cellarman.redemption_tokens").
		WithArgs("token-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("redeemed"))
	mock.ExpectRollback()

	_, err := engine.Settle(context.Background(), "secret-1", "staff-1")
	if !errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestSettleRetriesTransientSerializationFailure(t *testing.T) {
	engine, mock := newTestEngine(t)

	expectTokenLookup(mock, "secret-1", pendingTokenRow("token-1", 30, testNow.Add(10*time.Minute)))

	// First attempt hits a serialization failure on the row lock.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT remaining_ml, total_ml").
		WithArgs("purchase-1").
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	// Second attempt goes through cleanly.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT remaining_ml, total_ml").
		WithArgs("purchase-1").
		WillReturnRows(sqlmock.NewRows([]string{"remaining_ml", "total_ml"}).AddRow(120, 750))
	mock.ExpectExec("UPDATE cellarman.redemption_tokens").
		WithArgs("token-1", testNow, "staff-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE cellarman.purchased_bottles").
		WithArgs("purchase-1", 30).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT v.name, b.brand, b.name, u.name").
		WithArgs("purchase-1").
		WillReturnRows(displayRows())

	receipt, err := engine.Settle(context.Background(), "secret-1", "staff-1")
	if err != nil {
		t.Fatalf("Settle failed after retry: %v", err)
	}
	if receipt.RemainingML != 90 {
		t.Errorf("expected 90 ml remaining, got %d", receipt.RemainingML)
	}

	expectationsMet(t, mock)
}

func TestIsTransientTxError(t *testing.T) {
	if isTransientTxError(nil) {
		t.Error("nil error should not be transient")
	}
	if isTransientTxError(errors.New("plain error")) {
		t.Error("plain error should not be transient")
	}
	if !isTransientTxError(&pq.Error{Code: "40001"}) {
		t.Error("serialization failure should be transient")
	}
	if !isTransientTxError(&pq.Error{Code: "40P01"}) {
		t.Error("deadlock should be transient")
	}
	if isTransientTxError(&pq.Error{Code: "23505"}) {
		t.Error("unique violation should not be transient")
	}
}
