package usecase_test

import (
	"testing"

	"github.com/iho/cashdesk/internal/usecase"
)

func TestFeePolicy_Commission(t *testing.T) {
	tests := []struct {
		name   string
		rate   float64
		amount int64
		want   int64
	}{
		{"zero rate charges nothing", 0, 10000, 0},
		{"whole percent", 1, 10000, 100},
		{"fractional percent rounds half up", 1.5, 1000, 15},
		{"rounds half up on ties", 1, 50, 1},
		{"rounds down below the midpoint", 1, 49, 0},
		{"zero amount", 2, 0, 0},
		{"negative amount charges nothing", 2, -500, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := usecase.NewFeePolicy(tt.rate)
			if got := policy.Commission(tt.amount); got != tt.want {
				t.Errorf("Commission(%d) at %v%% = %d, want %d", tt.amount, tt.rate, got, tt.want)
			}
		})
	}
}
