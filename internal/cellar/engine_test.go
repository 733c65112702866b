package cellar

import (
	"io"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/anishghanwat/StoreMyBottleApp/pkg/logging"
)

var testNow = time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)

var bottleColumns = []string{
	"id", "user_id", "bottle_id", "venue_id", "total_ml", "remaining_ml",
	"price_cents", "payment_status", "payment_method", "purchased_at",
	"created_at", "updated_at",
}

var tokenColumns = []string{
	"id", "purchase_id", "user_id", "venue_id", "pour_ml", "expires_at",
	"status", "created_at",
}

func testLogger() logging.Logger {
	logger := logging.NewLogger()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewEngine(db, testLogger(), DefaultConfig(), opts...), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet database expectations: %v", err)
	}
}

func confirmedBottleRow(purchaseID, userID string, totalML, remainingML int, purchasedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(bottleColumns).AddRow(
		purchaseID, userID, "bottle-1", "venue-1", totalML, remainingML,
		int64(450000), "confirmed", nil, purchasedAt, purchasedAt, purchasedAt,
	)
}

func displayRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"venue_name", "brand", "bottle_name", "customer_name"}).
		AddRow("The Oak Room", "Glenfiddich", "12 Year Old", "Asha Patel")
}
