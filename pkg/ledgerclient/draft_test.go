package ledgerclient_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	"github.com/zimmerhq/zimmer-admin-api/pkg/ledgerclient"
)

func validDraft() ledgerclient.Draft {
	return ledgerclient.Draft{
		UserAutomationID: uuid.New(),
		DeltaTokens:      50,
		Reason:           enums.AdjustmentReasonPromo,
	}
}

func TestValidateZeroDelta(t *testing.T) {
	draft := validDraft()
	draft.DeltaTokens = 0

	violations := ledgerclient.DefaultPolicy().Validate(draft)
	if !containsSubstring(violations, "cannot be zero") {
		t.Fatalf("expected zero-delta violation, got %v", violations)
	}
}

func TestValidateDeltaBounds(t *testing.T) {
	policy := ledgerclient.DefaultPolicy()

	cases := []struct {
		name   string
		delta  int
		inside bool
	}{
		{"far below bound", -15000, false},
		{"just below bound", -10001, false},
		{"lower bound", -10000, true},
		{"negative inside", -600, true},
		{"positive inside", 9999, true},
		{"upper bound", 10000, true},
		{"just above bound", 10001, false},
		{"far above bound", 15000, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft := validDraft()
			draft.DeltaTokens = tc.delta
			violations := policy.Validate(draft)
			got := containsSubstring(violations, "out of bounds")
			if tc.inside && got {
				t.Fatalf("delta %d flagged out of bounds: %v", tc.delta, violations)
			}
			if !tc.inside && !got {
				t.Fatalf("delta %d missing out-of-bounds violation: %v", tc.delta, violations)
			}
		})
	}
}

func TestValidateReason(t *testing.T) {
	policy := ledgerclient.DefaultPolicy()

	draft := validDraft()
	draft.Reason = ""
	if violations := policy.Validate(draft); !containsSubstring(violations, "reason is required") {
		t.Fatalf("expected missing-reason violation, got %v", violations)
	}

	draft.Reason = "goodwill"
	if violations := policy.Validate(draft); !containsSubstring(violations, "reason must be one of") {
		t.Fatalf("expected unknown-reason violation, got %v", violations)
	}

	for _, reason := range enums.AdjustmentReasons() {
		draft.Reason = reason
		if violations := policy.Validate(draft); len(violations) != 0 {
			t.Fatalf("reason %q unexpectedly rejected: %v", reason, violations)
		}
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	draft := ledgerclient.Draft{UserAutomationID: uuid.New(), DeltaTokens: 0}

	violations := ledgerclient.DefaultPolicy().Validate(draft)
	if len(violations) != 2 {
		t.Fatalf("expected both zero-delta and reason violations, got %v", violations)
	}
}

func TestValidateConfigurableBound(t *testing.T) {
	policy := ledgerclient.Policy{MaxAbsDelta: 500}

	draft := validDraft()
	draft.DeltaTokens = 501
	if violations := policy.Validate(draft); !containsSubstring(violations, "out of bounds") {
		t.Fatalf("expected tightened bound to reject 501, got %v", violations)
	}

	draft.DeltaTokens = 500
	if violations := policy.Validate(draft); len(violations) != 0 {
		t.Fatalf("expected 500 inside tightened bound, got %v", violations)
	}
}

func containsSubstring(violations []string, want string) bool {
	for _, v := range violations {
		if strings.Contains(v, want) {
			return true
		}
	}
	return false
}
