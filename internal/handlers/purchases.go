package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	api "github.com/anishghanwat/StoreMyBottleApp/pkg/api/cellarman"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/ctxkeys"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/logging"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/middleware"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/models"
)

func currentUserID(c middleware.Context) string {
	return c.GetString(string(ctxkeys.KeyUserID))
}

func currentVenueID(c middleware.Context) string {
	return c.GetString(string(ctxkeys.KeyVenueID))
}

// CreatePurchase initiates a purchase; payment confirmation happens later
// via ConfirmPurchase or the bartender's ProcessPurchase.
func CreatePurchase(c middleware.Context) {
	userID := currentUserID(c)

	var req api.CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var bottle models.Bottle
	err := db.QueryRow(`
		SELECT id, venue_id, brand, name, price_cents, volume_ml
		FROM cellarman.bottles
		WHERE id = $1 AND venue_id = $2 AND is_available = true
	`, req.BottleID, req.VenueID).Scan(&bottle.ID, &bottle.VenueID, &bottle.Brand,
		&bottle.Name, &bottle.PriceCents, &bottle.VolumeML)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Bottle not found or not available"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Failed to look up bottle")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create purchase"})
		return
	}

	purchase := models.PurchasedBottle{
		UserID:        userID,
		BottleID:      bottle.ID,
		VenueID:       bottle.VenueID,
		TotalML:       bottle.VolumeML,
		RemainingML:   bottle.VolumeML,
		PriceCents:    bottle.PriceCents,
		PaymentStatus: models.PaymentPending,
	}

	err = db.QueryRow(`
		INSERT INTO cellarman.purchased_bottles
			(user_id, bottle_id, venue_id, total_ml, remaining_ml, price_cents, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING id, created_at, updated_at
	`, purchase.UserID, purchase.BottleID, purchase.VenueID, purchase.TotalML,
		purchase.RemainingML, purchase.PriceCents).Scan(&purchase.ID, &purchase.CreatedAt, &purchase.UpdatedAt)
	if err != nil {
		logger.WithError(err).Error("Failed to create purchase")
		countPurchase("create", "error")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create purchase"})
		return
	}

	countPurchase("create", "ok")
	logger.WithFields(logging.Fields{
		"purchase_id": purchase.ID,
		"bottle_id":   bottle.ID,
		"venue_id":    bottle.VenueID,
	}).Info("Created purchase")

	c.JSON(http.StatusOK, purchase)
}

// ConfirmPurchase confirms payment for the customer's own pending
// purchase. This is where the ledger entry becomes live: purchased_at is
// stamped and the freshness window starts counting.
func ConfirmPurchase(c middleware.Context) {
	userID := currentUserID(c)
	purchaseID := c.Param("purchase_id")

	var req api.ConfirmPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	res, err := db.Exec(`
		UPDATE cellarman.purchased_bottles
		SET payment_status = 'confirmed', payment_method = $3, purchased_at = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND payment_status = 'pending'
	`, purchaseID, userID, req.PaymentMethod, time.Now().UTC())
	if err != nil {
		logger.WithError(err).Error("Failed to confirm purchase")
		countPurchase("confirm", "error")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to confirm purchase"})
		return
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		// Distinguish "not yours / missing" from "already processed"
		var status string
		err := db.QueryRow(`
			SELECT payment_status FROM cellarman.purchased_bottles
			WHERE id = $1 AND user_id = $2
		`, purchaseID, userID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Purchase not found"})
			return
		}
		if err != nil {
			logger.WithError(err).Error("Failed to re-read purchase status")
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to confirm purchase"})
			return
		}
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Purchase already processed"})
		return
	}

	countPurchase("confirm", "ok")
	fetchPurchase(c, purchaseID, userID)
}

// ProcessPurchase is the bartender's confirm/reject decision for a
// pending purchase request at their venue.
func ProcessPurchase(c middleware.Context) {
	purchaseID := c.Param("purchase_id")

	var req api.ProcessPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Action must be confirm or reject"})
		return
	}

	var res sql.Result
	var err error
	if req.Action == "confirm" {
		// Cash is the default when the bartender confirms in person.
		res, err = db.Exec(`
			UPDATE cellarman.purchased_bottles
			SET payment_status = 'confirmed',
			    payment_method = COALESCE(payment_method, 'cash'),
			    purchased_at = $2, updated_at = NOW()
			WHERE id = $1 AND payment_status = 'pending'
		`, purchaseID, time.Now().UTC())
	} else {
		res, err = db.Exec(`
			UPDATE cellarman.purchased_bottles
			SET payment_status = 'failed', updated_at = NOW()
			WHERE id = $1 AND payment_status = 'pending'
		`, purchaseID)
	}
	if err != nil {
		logger.WithError(err).Error("Failed to process purchase")
		countPurchase("process", "error")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to process purchase"})
		return
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		var exists bool
		if err := db.QueryRow(`
			SELECT EXISTS(SELECT 1 FROM cellarman.purchased_bottles WHERE id = $1)
		`, purchaseID).Scan(&exists); err == nil && !exists {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Purchase not found"})
			return
		}
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Purchase already processed"})
		return
	}

	countPurchase("process", "ok")
	fetchPurchase(c, purchaseID, "")
}

// fetchPurchase loads a purchase and writes it as the response. userID
// scopes the lookup when non-empty.
func fetchPurchase(c middleware.Context, purchaseID, userID string) {
	query := `
		SELECT id, user_id, bottle_id, venue_id, total_ml, remaining_ml,
		       price_cents, payment_status, payment_method, purchased_at,
		       created_at, updated_at
		FROM cellarman.purchased_bottles
		WHERE id = $1`
	args := []interface{}{purchaseID}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	var p models.PurchasedBottle
	err := db.QueryRow(query, args...).Scan(&p.ID, &p.UserID, &p.BottleID, &p.VenueID,
		&p.TotalML, &p.RemainingML, &p.PriceCents, &p.PaymentStatus, &p.PaymentMethod,
		&p.PurchasedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Purchase not found"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Failed to fetch purchase")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch purchase"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// GetPurchase returns one of the customer's purchases.
func GetPurchase(c middleware.Context) {
	fetchPurchase(c, c.Param("purchase_id"), currentUserID(c))
}

// GetMyBottles returns the customer's shelf: confirmed bottles with
// volume left, decorated with the freshness deadline.
func GetMyBottles(c middleware.Context) {
	listUserBottles(c, `
		SELECT p.id, p.bottle_id, v.name, b.name, b.brand, p.total_ml, p.remaining_ml,
		       p.purchased_at, p.created_at
		FROM cellarman.purchased_bottles p
		JOIN cellarman.bottles b ON b.id = p.bottle_id
		JOIN cellarman.venues v ON v.id = p.venue_id
		WHERE p.user_id = $1 AND p.payment_status = 'confirmed' AND p.remaining_ml > 0
		ORDER BY p.created_at DESC
	`)
}

// GetPurchaseHistory returns all of the customer's confirmed purchases.
func GetPurchaseHistory(c middleware.Context) {
	listUserBottles(c, `
		SELECT p.id, p.bottle_id, v.name, b.name, b.brand, p.total_ml, p.remaining_ml,
		       p.purchased_at, p.created_at
		FROM cellarman.purchased_bottles p
		JOIN cellarman.bottles b ON b.id = p.bottle_id
		JOIN cellarman.venues v ON v.id = p.venue_id
		WHERE p.user_id = $1 AND p.payment_status = 'confirmed'
		ORDER BY p.created_at DESC
	`)
}

func listUserBottles(c middleware.Context, query string) {
	userID := currentUserID(c)

	rows, err := db.Query(query, userID)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch user bottles")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch bottles"})
		return
	}
	defer rows.Close()

	freshness := engine.Config().FreshnessWindow
	bottles := []api.UserBottle{}
	for rows.Next() {
		var ub api.UserBottle
		var purchasedAt *time.Time
		var createdAt time.Time
		if err := rows.Scan(&ub.ID, &ub.BottleID, &ub.VenueName, &ub.BottleName,
			&ub.BottleBrand, &ub.TotalML, &ub.RemainingML, &purchasedAt, &createdAt); err != nil {
			logger.WithError(err).Error("Error scanning user bottle")
			continue
		}
		acquired := createdAt
		if purchasedAt != nil {
			acquired = *purchasedAt
		}
		ub.ExpiresAt = acquired.Add(freshness)
		bottles = append(bottles, ub)
	}

	c.JSON(http.StatusOK, api.UserBottleList{Bottles: bottles, Total: len(bottles)})
}

// GetPendingPurchases lists purchase requests awaiting confirmation at
// the bartender's venue.
func GetPendingPurchases(c middleware.Context) {
	venueID := c.Param("venue_id")
	if staffVenue := currentVenueID(c); staffVenue != "" && staffVenue != venueID {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Not authorized for this venue"})
		return
	}

	rows, err := db.Query(`
		SELECT p.id, u.name, b.brand, b.name, p.total_ml, p.price_cents,
		       p.payment_method, p.created_at, p.payment_status
		FROM cellarman.purchased_bottles p
		JOIN cellarman.users u ON u.id = p.user_id
		JOIN cellarman.bottles b ON b.id = p.bottle_id
		WHERE p.venue_id = $1 AND p.payment_status = 'pending'
		ORDER BY p.created_at DESC
	`, venueID)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch pending purchases")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch pending purchases"})
		return
	}
	defer rows.Close()

	pending := []api.PendingPurchase{}
	for rows.Next() {
		var pp api.PendingPurchase
		if err := rows.Scan(&pp.ID, &pp.CustomerName, &pp.BottleBrand, &pp.BottleName,
			&pp.VolumeML, &pp.PriceCents, &pp.PaymentMethod, &pp.CreatedAt, &pp.Status); err != nil {
			logger.WithError(err).Error("Error scanning pending purchase")
			continue
		}
		pending = append(pending, pp)
	}

	c.JSON(http.StatusOK, pending)
}
