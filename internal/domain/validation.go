package domain

import (
	"errors"
	"fmt"
	"regexp"
)

// Validation errors
var (
	ErrAmountTooLarge   = errors.New("amount exceeds maximum allowed")
	ErrAmountTooSmall   = errors.New("amount below minimum allowed")
	ErrMetadataTooLarge = errors.New("metadata size exceeds limit")
	ErrInvalidReference = errors.New("invalid reference format")
)

// Validation constants
const (
	MaxMetadataSize = 10240 // 10KB

	// MaxTransactionAmount caps a single request at 1 billion minor units.
	MaxTransactionAmount int64 = 1_000_000_000
)

// References look like DEP-01J8X2... / WDR-01J8X2... (prefix + ULID).
var referenceRegex = regexp.MustCompile(`^[A-Z]{3}-[0-9A-HJKMNP-TV-Z]{26}$`)

// ValidateAmount validates a requested amount against the configured minimum.
func ValidateAmount(amount, minimum int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if amount < minimum {
		return fmt.Errorf("%w: minimum is %d", ErrAmountTooSmall, minimum)
	}

	if amount > MaxTransactionAmount {
		return fmt.Errorf("%w: maximum is %d", ErrAmountTooLarge, MaxTransactionAmount)
	}

	return nil
}

// ValidateReference validates a transaction reference string.
func ValidateReference(ref string) error {
	if !referenceRegex.MatchString(ref) {
		return fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	return nil
}

// ValidateMetadata validates metadata size
func ValidateMetadata(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}

	// Estimate size (rough approximation)
	size := 0
	for k, v := range metadata {
		size += len(k)
		size += len(fmt.Sprintf("%v", v))
	}

	if size > MaxMetadataSize {
		return fmt.Errorf("%w: metadata size %d bytes exceeds limit of %d bytes", ErrMetadataTooLarge, size, MaxMetadataSize)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
