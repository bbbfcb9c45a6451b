package model

import (
	"testing"
	"time"
)

func TestRentalExpiry(t *testing.T) {
	created := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	r := &Rental{CreatedAt: created, ExpiresAt: created.Add(15 * time.Minute)}

	tests := []struct {
		name          string
		at            time.Time
		wantExpired   bool
		wantRemaining time.Duration
	}{
		{"just created", created, false, 15 * time.Minute},
		{"mid lease", created.Add(10 * time.Minute), false, 5 * time.Minute},
		{"exactly at expiry", created.Add(15 * time.Minute), false, 0},
		{"past expiry", created.Add(16 * time.Minute), true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Expired(tt.at); got != tt.wantExpired {
				t.Fatalf("Expired = %v, want %v", got, tt.wantExpired)
			}
			if got := r.Remaining(tt.at); got != tt.wantRemaining {
				t.Fatalf("Remaining = %s, want %s", got, tt.wantRemaining)
			}
		})
	}
}
