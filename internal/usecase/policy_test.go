package usecase_test

import (
	"testing"

	"github.com/iho/cashdesk/internal/domain"
	"github.com/iho/cashdesk/internal/usecase"
)

func TestEligibilityPolicies(t *testing.T) {
	policies := usecase.DefaultEligibility()

	rich := &domain.Party{ID: "c1", Role: domain.RoleCashier, Balance: 5000, Active: true}
	poor := &domain.Party{ID: "c2", Role: domain.RoleCashier, Balance: 100, Active: true}
	inactive := &domain.Party{ID: "c3", Role: domain.RoleCashier, Balance: 5000, Active: false}

	tests := []struct {
		name     string
		category domain.Category
		cashier  *domain.Party
		amount   int64
		want     bool
	}{
		{"deposit ignores float", domain.CategoryDeposit, poor, 1000, true},
		{"deposit rejects inactive", domain.CategoryDeposit, inactive, 1000, false},
		{"withdrawal requires float", domain.CategoryWithdrawal, rich, 1000, true},
		{"withdrawal rejects thin float", domain.CategoryWithdrawal, poor, 1000, false},
		{"withdrawal exact float passes", domain.CategoryWithdrawal, rich, 5000, true},
		{"withdrawal rejects inactive", domain.CategoryWithdrawal, inactive, 1000, false},
		{"unknown category falls back to deposit policy", domain.CategoryRefund, poor, 1000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policies.For(tt.category).Eligible(tt.cashier, tt.amount); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
