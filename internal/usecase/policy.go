package usecase

import "github.com/iho/cashdesk/internal/domain"

// CashierEligibility decides which available cashiers may take a request.
// Deposits and withdrawals use different predicates and the business rules
// behind them change independently of the state machine, so this is a
// swappable policy value rather than inline conditionals.
type CashierEligibility interface {
	Eligible(cashier *domain.Party, amount int64) bool
}

// AnyAvailable accepts every active cashier. Used for deposits, where the
// cashier receives money and needs no float.
type AnyAvailable struct{}

func (AnyAvailable) Eligible(cashier *domain.Party, amount int64) bool {
	return cashier.Active
}

// SufficientFloat accepts cashiers whose own balance covers the amount.
// Used for withdrawals, where the cashier pays out of their float.
type SufficientFloat struct{}

func (SufficientFloat) Eligible(cashier *domain.Party, amount int64) bool {
	return cashier.Active && cashier.Balance >= amount
}

// EligibilityPolicies bundles the per-category predicates.
type EligibilityPolicies struct {
	Deposit    CashierEligibility
	Withdrawal CashierEligibility
}

// DefaultEligibility returns the standard policy set.
func DefaultEligibility() EligibilityPolicies {
	return EligibilityPolicies{
		Deposit:    AnyAvailable{},
		Withdrawal: SufficientFloat{},
	}
}

// For returns the predicate for a category. Categories without a dedicated
// policy fall back to the deposit predicate.
func (p EligibilityPolicies) For(category domain.Category) CashierEligibility {
	if category == domain.CategoryWithdrawal {
		return p.Withdrawal
	}
	return p.Deposit
}
