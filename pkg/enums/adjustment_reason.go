package enums

import "fmt"

// AdjustmentReason maps to the adjustment_reason_enum enum in Postgres.
type AdjustmentReason string

const (
	AdjustmentReasonPaymentCorrection AdjustmentReason = "payment_correction"
	AdjustmentReasonPromo             AdjustmentReason = "promo"
	AdjustmentReasonSupportFix        AdjustmentReason = "support_fix"
	AdjustmentReasonManual            AdjustmentReason = "manual"
)

var validAdjustmentReasons = []AdjustmentReason{
	AdjustmentReasonPaymentCorrection,
	AdjustmentReasonPromo,
	AdjustmentReasonSupportFix,
	AdjustmentReasonManual,
}

// AdjustmentReasons returns the canonical reason set in declaration order.
func AdjustmentReasons() []AdjustmentReason {
	out := make([]AdjustmentReason, len(validAdjustmentReasons))
	copy(out, validAdjustmentReasons)
	return out
}

// IsValid reports whether the value matches the canonical reason enum.
func (r AdjustmentReason) IsValid() bool {
	for _, candidate := range validAdjustmentReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAdjustmentReason converts raw input into AdjustmentReason.
func ParseAdjustmentReason(value string) (AdjustmentReason, error) {
	for _, candidate := range validAdjustmentReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid adjustment reason %q", value)
}
