package cellar

import (
	"context"
	"fmt"

	"github.com/anishghanwat/StoreMyBottleApp/pkg/models"
)

// Eligible reports whether a token can still be settled. Settlement
// itself re-derives this; exported for read paths that want to show a
// live status without mutating anything.
func (e *Engine) Eligible(t *models.RedemptionToken) bool {
	return t.Status == models.TokenPending && !e.now().UTC().After(t.ExpiresAt)
}

// ExpireStale flips elapsed pending tokens to expired in bulk. This is
// reporting hygiene only: settlement performs the same check lazily, so
// correctness never depends on this running.
func (e *Engine) ExpireStale(ctx context.Context) (int64, error) {
	res, err := e.db.ExecContext(ctx, `
		UPDATE cellarman.redemption_tokens
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'pending' AND expires_at < $1
	`, e.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale tokens: %w", err)
	}

	swept, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read sweep result: %w", err)
	}

	if swept > 0 {
		if e.metrics != nil && e.metrics.TokensSwept != nil {
			e.metrics.TokensSwept.Add(float64(swept))
		}
		e.logger.WithField("count", swept).Info("Expired stale redemption tokens")
	}
	return swept, nil
}
