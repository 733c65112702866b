package handlers

import (
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	api "github.com/anishghanwat/StoreMyBottleApp/pkg/api/cellarman"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/models"
)

func TestCreatePurchase(t *testing.T) {
	mock, router := setupTest(t, "user-1", "")
	router.POST("/purchases", CreatePurchase)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, venue_id, brand, name, price_cents, volume_ml").
		WithArgs("bottle-1", "venue-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "venue_id", "brand", "name", "price_cents", "volume_ml"}).
			AddRow("bottle-1", "venue-1", "Glenfiddich", "12 Year Old", int64(450000), 750))
	mock.ExpectQuery("INSERT INTO cellarman.purchased_bottles").
		WithArgs("user-1", "bottle-1", "venue-1", 750, 750, int64(450000)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("purchase-1", now, now))

	w := doJSON(t, router, http.MethodPost, "/purchases",
		api.CreatePurchaseRequest{VenueID: "venue-1", BottleID: "bottle-1"})
	expectStatus(t, w, http.StatusOK)

	var resp models.PurchasedBottle
	decodeBody(t, w, &resp)
	if resp.ID != "purchase-1" {
		t.Errorf("expected purchase id purchase-1, got %s", resp.ID)
	}
	if resp.RemainingML != resp.TotalML {
		t.Errorf("new purchase must start full: remaining %d, total %d", resp.RemainingML, resp.TotalML)
	}
	if resp.PaymentStatus != models.PaymentPending {
		t.Errorf("expected pending payment, got %s", resp.PaymentStatus)
	}

	expectMet(t, mock)
}

func TestCreatePurchaseBottleNotFound(t *testing.T) {
	mock, router := setupTest(t, "user-1", "")
	router.POST("/purchases", CreatePurchase)

	mock.ExpectQuery("SELECT id, venue_id, brand, name, price_cents, volume_ml").
		WithArgs("bottle-missing", "venue-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "venue_id", "brand", "name", "price_cents", "volume_ml"}))

	w := doJSON(t, router, http.MethodPost, "/purchases",
		api.CreatePurchaseRequest{VenueID: "venue-1", BottleID: "bottle-missing"})
	expectStatus(t, w, http.StatusNotFound)

	expectMet(t, mock)
}

func TestConfirmPurchase(t *testing.T) {
	mock, router := setupTest(t, "user-1", "")
	router.POST("/purchases/:purchase_id/confirm", ConfirmPurchase)

	now := time.Now().UTC()
	method := "card"
	mock.ExpectExec("UPDATE cellarman.purchased_bottles").
		WithArgs("purchase-1", "user-1", "card", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, user_id, bottle_id, venue_id, total_ml, remaining_ml").
		WithArgs("purchase-1", "user-1").
		WillReturnRows(sqlmock.NewRows(bottleColumns).AddRow(
			"purchase-1", "user-1", "bottle-1", "venue-1", 750, 750,
			int64(450000), "confirmed", method, now, now, now))

	w := doJSON(t, router, http.MethodPost, "/purchases/purchase-1/confirm",
		api.ConfirmPurchaseRequest{PaymentMethod: "card"})
	expectStatus(t, w, http.StatusOK)

	var resp models.PurchasedBottle
	decodeBody(t, w, &resp)
	if resp.PaymentStatus != models.PaymentConfirmed {
		t.Errorf("expected confirmed payment, got %s", resp.PaymentStatus)
	}
	if resp.PurchasedAt == nil {
		t.Error("expected purchased_at to be stamped on confirmation")
	}

	expectMet(t, mock)
}

func TestConfirmPurchaseAlreadyProcessed(t *testing.T) {
	mock, router := setupTest(t, "user-1", "")
	router.POST("/purchases/:purchase_id/confirm", ConfirmPurchase)

	mock.ExpectExec("UPDATE cellarman.purchased_bottles").
		WithArgs("purchase-1", "user-1", "card", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT payment_status FROM cellarman.purchased_bottles").
		WithArgs("purchase-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"payment_status"}).AddRow("confirmed"))

	w := doJSON(t, router, http.MethodPost, "/purchases/purchase-1/confirm",
		api.ConfirmPurchaseRequest{PaymentMethod: "card"})
	expectStatus(t, w, http.StatusBadRequest)

	expectMet(t, mock)
}

func TestConfirmPurchaseNotFound(t *testing.T) {
	mock, router := setupTest(t, "user-1", "")
	router.POST("/purchases/:purchase_id/confirm", ConfirmPurchase)

	mock.ExpectExec("UPDATE cellarman.purchased_bottles").
		WithArgs("purchase-missing", "user-1", "card", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT payment_status FROM cellarman.purchased_bottles").
		WithArgs("purchase-missing", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"payment_status"}))

	w := doJSON(t, router, http.MethodPost, "/purchases/purchase-missing/confirm",
		api.ConfirmPurchaseRequest{PaymentMethod: "card"})
	expectStatus(t, w, http.StatusNotFound)

	expectMet(t, mock)
}

func TestProcessPurchaseReject(t *testing.T) {
	mock, router := setupTest(t, "staff-1", "venue-1")
	router.POST("/purchases/:purchase_id/process", ProcessPurchase)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE cellarman.purchased_bottles").
		WithArgs("purchase-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, user_id, bottle_id, venue_id, total_ml, remaining_ml").
		WithArgs("purchase-1").
		WillReturnRows(sqlmock.NewRows(bottleColumns).AddRow(
			"purchase-1", "user-1", "bottle-1", "venue-1", 750, 750,
			int64(450000), "failed", nil, nil, now, now))

	w := doJSON(t, router, http.MethodPost, "/purchases/purchase-1/process",
		api.ProcessPurchaseRequest{Action: "reject"})
	expectStatus(t, w, http.StatusOK)

	var resp models.PurchasedBottle
	decodeBody(t, w, &resp)
	if resp.PaymentStatus != models.PaymentFailed {
		t.Errorf("expected failed payment, got %s", resp.PaymentStatus)
	}

	expectMet(t, mock)
}

func TestProcessPurchaseInvalidAction(t *testing.T) {
	mock, router := setupTest(t, "staff-1", "venue-1")
	router.POST("/purchases/:purchase_id/process", ProcessPurchase)

	w := doJSON(t, router, http.MethodPost, "/purchases/purchase-1/process",
		map[string]string{"action": "maybe"})
	expectStatus(t, w, http.StatusBadRequest)

	expectMet(t, mock)
}

func TestGetMyBottles(t *testing.T) {
	mock, router := setupTest(t, "user-1", "")
	router.GET("/purchases/my-bottles", GetMyBottles)

	purchased := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT p.id, p.bottle_id, v.name, b.name, b.brand, p.total_ml, p.remaining_ml").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "bottle_id", "venue", "name", "brand", "total_ml", "remaining_ml", "purchased_at", "created_at",
		}).AddRow("purchase-1", "bottle-1", "The Oak Room", "12 Year Old", "Glenfiddich", 750, 690, purchased, purchased))

	w := doJSON(t, router, http.MethodGet, "/purchases/my-bottles", nil)
	expectStatus(t, w, http.StatusOK)

	var resp api.UserBottleList
	decodeBody(t, w, &resp)
	if resp.Total != 1 {
		t.Fatalf("expected 1 bottle, got %d", resp.Total)
	}
	wantExpiry := purchased.Add(30 * 24 * time.Hour)
	if !resp.Bottles[0].ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expected freshness deadline %v, got %v", wantExpiry, resp.Bottles[0].ExpiresAt)
	}

	expectMet(t, mock)
}

func TestGetPendingPurchasesForbiddenForOtherVenue(t *testing.T) {
	mock, router := setupTest(t, "staff-1", "venue-1")
	router.GET("/purchases/venue/:venue_id/pending", GetPendingPurchases)

	w := doJSON(t, router, http.MethodGet, "/purchases/venue/venue-2/pending", nil)
	expectStatus(t, w, http.StatusForbidden)

	expectMet(t, mock)
}

func TestGetPendingPurchases(t *testing.T) {
	mock, router := setupTest(t, "staff-1", "venue-1")
	router.GET("/purchases/venue/:venue_id/pending", GetPendingPurchases)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT p.id, u.name, b.brand, b.name, p.total_ml, p.price_cents").
		WithArgs("venue-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer", "brand", "name", "total_ml", "price_cents", "payment_method", "created_at", "status",
		}).AddRow("purchase-1", "Asha Patel", "Glenfiddich", "12 Year Old", 750, int64(450000), nil, now, "pending"))

	w := doJSON(t, router, http.MethodGet, "/purchases/venue/venue-1/pending", nil)
	expectStatus(t, w, http.StatusOK)

	var resp []api.PendingPurchase
	decodeBody(t, w, &resp)
	if len(resp) != 1 {
		t.Fatalf("expected 1 pending purchase, got %d", len(resp))
	}
	if resp[0].CustomerName != "Asha Patel" {
		t.Errorf("unexpected customer name: %q", resp[0].CustomerName)
	}

	expectMet(t, mock)
}
