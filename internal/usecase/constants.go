package usecase

import (
	"time"

	"github.com/iho/cashdesk/internal/domain"
)

// referencePrefixes maps a category to its human-readable reference prefix.
var referencePrefixes = map[domain.Category]string{
	domain.CategoryDeposit:         "DEP",
	domain.CategoryWithdrawal:      "WDR",
	domain.CategoryEntryFee:        "FEE",
	domain.CategoryPrize:           "PRZ",
	domain.CategoryRefund:          "RFD",
	domain.CategoryTransfer:        "TRF",
	domain.CategoryCommission:      "COM",
	domain.CategoryBonus:           "BON",
	domain.CategoryAdminAdjustment: "ADJ",
}

// categoryDirections maps a category to its balance direction relative to
// the player.
var categoryDirections = map[domain.Category]domain.Direction{
	domain.CategoryDeposit:         domain.DirectionCredit,
	domain.CategoryWithdrawal:      domain.DirectionDebit,
	domain.CategoryEntryFee:        domain.DirectionDebit,
	domain.CategoryPrize:           domain.DirectionCredit,
	domain.CategoryRefund:          domain.DirectionCredit,
	domain.CategoryTransfer:        domain.DirectionDebit,
	domain.CategoryCommission:      domain.DirectionDebit,
	domain.CategoryBonus:           domain.DirectionCredit,
	domain.CategoryAdminAdjustment: domain.DirectionCredit,
}

const (
	defaultListLimit = 20
	maxListLimit     = 100

	// referenceCacheTTL bounds staleness for cached terminal lookups.
	referenceCacheTTL = 5 * time.Minute
)
