package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAmountLimits(t *testing.T) {
	t.Parallel()

	if err := ValidateAmount(5000, 1000); err != nil {
		t.Fatalf("expected valid amount, got %v", err)
	}

	if err := ValidateAmount(0, 1000); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}

	if err := ValidateAmount(-500, 1000); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}

	if err := ValidateAmount(999, 1000); !errors.Is(err, ErrAmountTooSmall) {
		t.Fatalf("expected ErrAmountTooSmall, got %v", err)
	}

	if err := ValidateAmount(MaxTransactionAmount+1, 1000); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
}

func TestValidateReference(t *testing.T) {
	t.Parallel()

	if err := ValidateReference("DEP-01J8X2M3N4P5Q6R7S8T9V0W1X2"); err != nil {
		t.Fatalf("expected valid reference, got %v", err)
	}

	for _, ref := range []string{"", "DEP-", "dep-01J8X2M3N4P5Q6R7S8T9V0W1X2", "DEPOSIT-123"} {
		if err := ValidateReference(ref); !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("expected ErrInvalidReference for %q, got %v", ref, err)
		}
	}
}

func TestValidateMetadata(t *testing.T) {
	t.Parallel()

	if err := ValidateMetadata(nil); err != nil {
		t.Fatalf("expected nil metadata to be allowed, got %v", err)
	}

	valid := map[string]any{"origin": "telegram", "device": "android"}
	if err := ValidateMetadata(valid); err != nil {
		t.Fatalf("expected valid metadata, got %v", err)
	}

	oversized := map[string]any{
		"payload": strings.Repeat("x", MaxMetadataSize),
	}
	if err := ValidateMetadata(oversized); !errors.Is(err, ErrMetadataTooLarge) {
		t.Fatalf("expected ErrMetadataTooLarge, got %v", err)
	}
}

func TestValidatePagination(t *testing.T) {
	t.Parallel()

	limit, offset := ValidatePagination(0, -5)
	if limit != 50 || offset != 0 {
		t.Fatalf("expected defaults 50/0, got %d/%d", limit, offset)
	}

	limit, _ = ValidatePagination(5000, 0)
	if limit != 1000 {
		t.Fatalf("expected limit clamped to 1000, got %d", limit)
	}
}
