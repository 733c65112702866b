package cellar

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/anishghanwat/StoreMyBottleApp/pkg/logging"
)

// DisplayInfo is the denormalized master-data context rendered into QR
// payloads and settlement receipts. It is always derived from the venue
// and catalog rows, never persisted on the token, so it cannot drift from
// the ledger.
type DisplayInfo struct {
	VenueName    string `json:"venue_name"`
	BottleBrand  string `json:"bottle_brand"`
	BottleName   string `json:"bottle_name"`
	CustomerName string `json:"customer_name"`
}

// BottleLabel renders the catalog label shown on receipts.
func (d DisplayInfo) BottleLabel() string {
	return d.BottleBrand + " " + d.BottleName
}

// DisplayCache is a read-through Redis cache for DisplayInfo keyed by
// purchase id. Master data changes rarely, so a short TTL keeps reads off
// the join without a true invalidation protocol.
type DisplayCache struct {
	client goredis.UniversalClient
	logger logging.Logger
	ttl    time.Duration
}

// NewDisplayCache creates a display cache with the given entry TTL.
func NewDisplayCache(client goredis.UniversalClient, logger logging.Logger, ttl time.Duration) *DisplayCache {
	return &DisplayCache{client: client, logger: logger, ttl: ttl}
}

func displayKey(purchaseID string) string {
	return "cellarman:display:" + purchaseID
}

// Get returns the cached DisplayInfo, or nil on miss or cache error.
func (dc *DisplayCache) Get(ctx context.Context, purchaseID string) *DisplayInfo {
	raw, err := dc.client.Get(ctx, displayKey(purchaseID)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			dc.logger.WithError(err).Debug("Display cache read failed")
		}
		return nil
	}

	var info DisplayInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		dc.logger.WithError(err).Warn("Corrupt display cache entry")
		return nil
	}
	return &info
}

// Set stores DisplayInfo best-effort.
func (dc *DisplayCache) Set(ctx context.Context, purchaseID string, info *DisplayInfo) {
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := dc.client.Set(ctx, displayKey(purchaseID), raw, dc.ttl).Err(); err != nil {
		dc.logger.WithError(err).Debug("Display cache write failed")
	}
}

// displayInfo derives the QR/receipt context for a purchase, consulting
// the cache first and falling back to the master-data join.
func (e *Engine) displayInfo(ctx context.Context, purchaseID string) (*DisplayInfo, error) {
	if e.cache != nil {
		if info := e.cache.Get(ctx, purchaseID); info != nil {
			return info, nil
		}
	}

	var info DisplayInfo
	err := e.db.QueryRowContext(ctx, `
		SELECT v.name, b.brand, b.name, u.name
		FROM cellarman.purchased_bottles p
		JOIN cellarman.venues v ON v.id = p.venue_id
		JOIN cellarman.bottles b ON b.id = p.bottle_id
		JOIN cellarman.users u ON u.id = p.user_id
		WHERE p.id = $1
	`, purchaseID).Scan(&info.VenueName, &info.BottleBrand, &info.BottleName, &info.CustomerName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load display info: %w", err)
	}

	if e.cache != nil {
		e.cache.Set(ctx, purchaseID, &info)
	}
	return &info, nil
}
