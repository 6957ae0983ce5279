package ledgerclient

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
)

// DefaultMaxAbsDelta is the fallback bound on a single adjustment. The
// authoritative bound is server-side policy; consoles mirror it so fat-finger
// entries never leave the form.
const DefaultMaxAbsDelta = 10000

// Policy carries the locally-enforced validation knobs.
type Policy struct {
	MaxAbsDelta int
}

// DefaultPolicy returns the standard console policy.
func DefaultPolicy() Policy {
	return Policy{MaxAbsDelta: DefaultMaxAbsDelta}
}

func (p Policy) maxAbsDelta() int {
	if p.MaxAbsDelta <= 0 {
		return DefaultMaxAbsDelta
	}
	return p.MaxAbsDelta
}

// Draft is the operator's in-progress adjustment before submission.
type Draft struct {
	UserAutomationID uuid.UUID
	DeltaTokens      int
	Reason           enums.AdjustmentReason
	Note             string
	RelatedPaymentID *uuid.UUID
}

// Validate checks the draft against the policy and returns every violation
// as a human-readable message. An empty slice means the draft may be
// submitted. The check is pure: no I/O, no draft mutation.
func (p Policy) Validate(d Draft) []string {
	var violations []string

	if d.DeltaTokens == 0 {
		violations = append(violations, "delta_tokens cannot be zero")
	}
	if bound := p.maxAbsDelta(); d.DeltaTokens < -bound || d.DeltaTokens > bound {
		violations = append(violations, fmt.Sprintf("delta_tokens out of bounds (allowed range %d to %d)", -bound, bound))
	}
	if strings.TrimSpace(string(d.Reason)) == "" {
		violations = append(violations, "reason is required")
	} else if !d.Reason.IsValid() {
		violations = append(violations, fmt.Sprintf("reason must be one of: %s", strings.Join(reasonNames(), ", ")))
	}

	return violations
}

func reasonNames() []string {
	reasons := enums.AdjustmentReasons()
	names := make([]string, len(reasons))
	for i, r := range reasons {
		names[i] = string(r)
	}
	return names
}
