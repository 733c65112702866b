package cellar

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/anishghanwat/StoreMyBottleApp/pkg/models"
)

func TestExpireStaleSweepsPendingTokens(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectExec("UPDATE cellarman.redemption_tokens").
		WithArgs(testNow).
		WillReturnResult(sqlmock.NewResult(0, 3))

	swept, err := engine.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("ExpireStale failed: %v", err)
	}
	if swept != 3 {
		t.Errorf("expected 3 tokens swept, got %d", swept)
	}

	expectationsMet(t, mock)
}

func TestExpireStaleNothingToSweep(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectExec("UPDATE cellarman.redemption_tokens").
		WithArgs(testNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	swept, err := engine.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("ExpireStale failed: %v", err)
	}
	if swept != 0 {
		t.Errorf("expected nothing swept, got %d", swept)
	}

	expectationsMet(t, mock)
}

func TestEligible(t *testing.T) {
	engine, _ := newTestEngine(t)

	cases := []struct {
		name  string
		token models.RedemptionToken
		want  bool
	}{
		{
			name:  "pending inside window",
			token: models.RedemptionToken{Status: models.TokenPending, ExpiresAt: testNow.Add(time.Minute)},
			want:  true,
		},
		{
			name:  "pending at exact expiry",
			token: models.RedemptionToken{Status: models.TokenPending, ExpiresAt: testNow},
			want:  true,
		},
		{
			name:  "pending past expiry",
			token: models.RedemptionToken{Status: models.TokenPending, ExpiresAt: testNow.Add(-time.Second)},
			want:  false,
		},
		{
			name:  "redeemed",
			token: models.RedemptionToken{Status: models.TokenRedeemed, ExpiresAt: testNow.Add(time.Minute)},
			want:  false,
		},
		{
			name:  "cancelled",
			token: models.RedemptionToken{Status: models.TokenCancelled, ExpiresAt: testNow.Add(time.Minute)},
			want:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.Eligible(&tc.token); got != tc.want {
				t.Errorf("Eligible = %v, want %v", got, tc.want)
			}
		})
	}
}
