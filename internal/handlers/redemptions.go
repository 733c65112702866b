package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/anishghanwat/StoreMyBottleApp/internal/cellar"
	api "github.com/anishghanwat/StoreMyBottleApp/pkg/api/cellarman"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/middleware"
)

// GenerateRedemptionQR issues a single-use redemption token for one pour
// against the customer's bottle.
func GenerateRedemptionQR(c middleware.Context) {
	userID := currentUserID(c)

	var req api.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	issued, err := engine.Issue(c.Request.Context(), userID, req.PurchaseID, req.PourML)
	if err != nil {
		switch {
		case errors.Is(err, cellar.ErrNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Purchase not found or not confirmed"})
		case errors.Is(err, cellar.ErrInvalidPourSize):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: pourSizeError()})
		case errors.Is(err, cellar.ErrInsufficientVolume):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, cellar.ErrBottleExpired):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Bottle has expired (valid for 30 days)"})
		default:
			logger.WithError(err).Error("Failed to issue redemption token")
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to generate QR code"})
		}
		return
	}

	token := issued.Token
	c.JSON(http.StatusOK, api.TokenResponse{
		ID:         token.ID,
		PurchaseID: token.PurchaseID,
		PourML:     token.PourML,
		Secret:     token.Secret,
		QRData: api.QRDisplayPayload{
			ID:      token.Secret,
			Venue:   issued.Display.VenueName,
			Bottle:  issued.Display.BottleLabel(),
			ML:      token.PourML,
			Exp:     token.ExpiresAt,
			Created: token.CreatedAt,
		},
		ExpiresAt: token.ExpiresAt,
		Status:    string(token.Status),
		CreatedAt: token.CreatedAt,
	})
}

func pourSizeError() string {
	sizes := engine.Config().PourSizesML
	msg := "Invalid pour size. Must be "
	for i, ml := range sizes {
		if i > 0 {
			if i == len(sizes)-1 {
				msg += " or "
			} else {
				msg += ", "
			}
		}
		msg += strconv.Itoa(ml)
	}
	return msg + " ml"
}

// ValidateRedemptionQR settles a scanned token: debits the bottle and
// marks the token redeemed, exactly once. Rejections come back as
// success=false with a reason the bartender can act on.
func ValidateRedemptionQR(c middleware.Context) {
	staffID := currentUserID(c)

	var req api.SettleTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	receipt, err := engine.Settle(c.Request.Context(), req.Secret, staffID)
	if err != nil {
		if cellar.IsRejection(err) {
			c.JSON(http.StatusOK, api.SettleTokenResponse{
				Success: false,
				Message: rejectionMessage(err),
			})
			return
		}
		logger.WithError(err).Error("Settlement failed")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to process redemption"})
		return
	}

	c.JSON(http.StatusOK, api.SettleTokenResponse{
		Success: true,
		Message: "Successfully redeemed " + strconv.Itoa(receipt.PourML) + " ml",
		Receipt: &api.SettlementReceipt{
			TokenID:      receipt.TokenID,
			PourML:       receipt.PourML,
			RemainingML:  receipt.RemainingML,
			TotalML:      receipt.TotalML,
			BottleBrand:  receipt.Display.BottleBrand,
			BottleName:   receipt.Display.BottleName,
			CustomerName: receipt.Display.CustomerName,
			RedeemedAt:   receipt.RedeemedAt,
		},
	})
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, cellar.ErrInvalidToken):
		return "Invalid QR code"
	case errors.Is(err, cellar.ErrAlreadyUsed):
		return "QR code already used"
	case errors.Is(err, cellar.ErrTokenExpired):
		return "QR code expired"
	case errors.Is(err, cellar.ErrTokenCancelled):
		return "QR code cancelled"
	case errors.Is(err, cellar.ErrInsufficientVolume):
		return "Insufficient volume in bottle"
	case errors.Is(err, cellar.ErrNotFound):
		return "Purchase not found"
	default:
		return err.Error()
	}
}

// GetRedemptionHistory returns the customer's redemption history.
func GetRedemptionHistory(c middleware.Context) {
	userID := currentUserID(c)

	rows, err := db.Query(`
		SELECT r.id, b.brand, b.name, v.name, r.pour_ml, r.status, r.redeemed_at, r.created_at
		FROM cellarman.redemption_tokens r
		JOIN cellarman.purchased_bottles p ON p.id = r.purchase_id
		JOIN cellarman.bottles b ON b.id = p.bottle_id
		JOIN cellarman.venues v ON v.id = r.venue_id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC
	`, userID)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch redemption history")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch history"})
		return
	}
	defer rows.Close()

	items := []api.RedemptionHistoryItem{}
	for rows.Next() {
		var item api.RedemptionHistoryItem
		if err := rows.Scan(&item.ID, &item.BottleBrand, &item.BottleName, &item.VenueName,
			&item.PourML, &item.Status, &item.RedeemedAt, &item.CreatedAt); err != nil {
			logger.WithError(err).Error("Error scanning redemption history row")
			continue
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, api.RedemptionHistoryList{Redemptions: items, Total: len(items)})
}

// GetVenueRecentRedemptions returns the latest settled pours at the
// bartender's venue.
func GetVenueRecentRedemptions(c middleware.Context) {
	venueID := c.Param("venue_id")
	if currentVenueID(c) != venueID {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Not authorized to view this venue's redemptions"})
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	rows, err := db.Query(`
		SELECT r.id, b.brand, b.name, v.name, r.pour_ml, r.status, r.redeemed_at, r.created_at, u.name
		FROM cellarman.redemption_tokens r
		JOIN cellarman.purchased_bottles p ON p.id = r.purchase_id
		JOIN cellarman.bottles b ON b.id = p.bottle_id
		JOIN cellarman.venues v ON v.id = r.venue_id
		JOIN cellarman.users u ON u.id = r.user_id
		WHERE r.venue_id = $1 AND r.status = 'redeemed'
		ORDER BY r.redeemed_at DESC
		LIMIT $2
	`, venueID, limit)
	if err != nil {
		logger.WithError(err).Error("Failed to fetch venue redemptions")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch redemptions"})
		return
	}
	defer rows.Close()

	items := []api.RedemptionHistoryItem{}
	for rows.Next() {
		var item api.RedemptionHistoryItem
		if err := rows.Scan(&item.ID, &item.BottleBrand, &item.BottleName, &item.VenueName,
			&item.PourML, &item.Status, &item.RedeemedAt, &item.CreatedAt, &item.UserName); err != nil {
			logger.WithError(err).Error("Error scanning venue redemption row")
			continue
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, api.RedemptionHistoryList{Redemptions: items, Total: len(items)})
}

// GetRedemption returns one of the customer's redemption tokens with its
// derived QR payload.
func GetRedemption(c middleware.Context) {
	userID := currentUserID(c)
	redemptionID := c.Param("redemption_id")

	var resp api.TokenResponse
	var venueName, bottleBrand, bottleName string
	err := db.QueryRow(`
		SELECT r.id, r.purchase_id, r.pour_ml, r.secret, r.expires_at, r.status, r.created_at,
		       v.name, b.brand, b.name
		FROM cellarman.redemption_tokens r
		JOIN cellarman.purchased_bottles p ON p.id = r.purchase_id
		JOIN cellarman.bottles b ON b.id = p.bottle_id
		JOIN cellarman.venues v ON v.id = r.venue_id
		WHERE r.id = $1 AND r.user_id = $2
	`, redemptionID, userID).Scan(&resp.ID, &resp.PurchaseID, &resp.PourML, &resp.Secret,
		&resp.ExpiresAt, &resp.Status, &resp.CreatedAt, &venueName, &bottleBrand, &bottleName)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Redemption not found"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Failed to fetch redemption")
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch redemption"})
		return
	}

	resp.QRData = api.QRDisplayPayload{
		ID:      resp.Secret,
		Venue:   venueName,
		Bottle:  bottleBrand + " " + bottleName,
		ML:      resp.PourML,
		Exp:     resp.ExpiresAt,
		Created: resp.CreatedAt,
	}

	c.JSON(http.StatusOK, resp)
}
