package ledgerclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
)

// State is the lifecycle position of one adjustment intent.
type State string

const (
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateApplied    State = "applied"
	StateAbandoned  State = "abandoned"
)

// ErrNotEditable is returned when an operation requires the editing state.
var ErrNotEditable = errors.New("ledgerclient: intent is no longer editable")

// ErrDraftInvalid is returned by Submit while validation violations remain.
var ErrDraftInvalid = errors.New("ledgerclient: draft has validation violations")

// Submitter is the write half of the ledger client, split out so intents can
// be driven against fakes.
type Submitter interface {
	Submit(ctx context.Context, req AdjustmentRequest) (*AppliedAdjustment, error)
}

// Intent owns one adjustment attempt against one subscription: the draft, the
// idempotency key, and the state machine around submission.
//
// The key is minted exactly once, when the intent opens. Failed submissions
// keep it, so a retry of the same logical intent cannot double-apply. The key
// is retired on success or abandonment; the next intent for the same target
// gets a fresh one.
type Intent struct {
	target         uuid.UUID
	currentBalance int

	draft      Draft
	violations []string
	key        uuid.UUID
	state      State

	policy    Policy
	submitter Submitter
	sink      Sink

	applied *AppliedAdjustment
}

// NewIntent opens a new adjustment intent for one subscription, seeded with
// the last known authoritative balance.
func NewIntent(target uuid.UUID, currentBalance int, submitter Submitter, policy Policy, sink Sink) (*Intent, error) {
	if target == uuid.Nil {
		return nil, fmt.Errorf("ledgerclient: target subscription is required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("ledgerclient: submitter is required")
	}
	if sink == nil {
		sink = NopSink{}
	}

	it := &Intent{
		target:         target,
		currentBalance: currentBalance,
		draft:          Draft{UserAutomationID: target},
		key:            uuid.New(),
		state:          StateEditing,
		policy:         policy,
		submitter:      submitter,
		sink:           sink,
	}
	it.violations = it.policy.Validate(it.draft)
	return it, nil
}

// State returns the current lifecycle state.
func (it *Intent) State() State { return it.state }

// Key returns the idempotency key for this intent. It is uuid.Nil once the
// intent is applied or abandoned.
func (it *Intent) Key() uuid.UUID { return it.key }

// Draft returns a copy of the current draft.
func (it *Intent) Draft() Draft { return it.draft }

// Violations returns the messages from the last validation run.
func (it *Intent) Violations() []string { return it.violations }

// CanSubmit reports whether the draft is valid and the intent is editable.
func (it *Intent) CanSubmit() bool {
	return it.state == StateEditing && len(it.violations) == 0
}

// PreviewBalance is the optimistic balance shown before confirmation.
func (it *Intent) PreviewBalance() int {
	return Project(it.currentBalance, it.draft.DeltaTokens)
}

// Applied returns the server's record once the intent has applied.
func (it *Intent) Applied() *AppliedAdjustment { return it.applied }

// SetDelta updates the draft delta and re-validates.
func (it *Intent) SetDelta(delta int) error {
	return it.edit(func(d *Draft) { d.DeltaTokens = delta })
}

// SetReason updates the draft reason and re-validates.
func (it *Intent) SetReason(reason enums.AdjustmentReason) error {
	return it.edit(func(d *Draft) { d.Reason = reason })
}

// SetNote updates the free-text justification.
func (it *Intent) SetNote(note string) error {
	return it.edit(func(d *Draft) { d.Note = note })
}

// SetRelatedPayment links the adjustment to the payment it corrects.
func (it *Intent) SetRelatedPayment(paymentID *uuid.UUID) error {
	return it.edit(func(d *Draft) { d.RelatedPaymentID = paymentID })
}

func (it *Intent) edit(apply func(*Draft)) error {
	if it.state != StateEditing {
		return ErrNotEditable
	}
	apply(&it.draft)
	it.violations = it.policy.Validate(it.draft)
	return nil
}

// Submit sends the draft to the ledger. On success the intent is terminal:
// the balance reconciles to the server's echo and the key is retired. A
// transient failure or rejection returns the intent to editing with the same
// key, so the operator may retry safely.
func (it *Intent) Submit(ctx context.Context) (*AppliedAdjustment, error) {
	if it.state != StateEditing {
		return nil, ErrNotEditable
	}
	if len(it.violations) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDraftInvalid, strings.Join(it.violations, "; "))
	}

	it.state = StateSubmitting

	applied, err := it.submitter.Submit(ctx, AdjustmentRequest{
		UserAutomationID: it.draft.UserAutomationID,
		DeltaTokens:      it.draft.DeltaTokens,
		Reason:           it.draft.Reason,
		Note:             it.draft.Note,
		RelatedPaymentID: it.draft.RelatedPaymentID,
		IdempotencyKey:   it.key,
	})
	if err != nil {
		it.state = StateEditing
		it.notifyFailure(err)
		return nil, err
	}

	it.state = StateApplied
	it.applied = applied
	it.currentBalance = applied.BalanceAfter
	it.key = uuid.Nil
	it.sink.Notify(NotifySuccess, fmt.Sprintf("adjustment of %+d tokens applied, balance is now %d", applied.DeltaTokens, applied.BalanceAfter))
	return applied, nil
}

// Abandon closes the intent without ever touching the network and discards
// the idempotency key.
func (it *Intent) Abandon() error {
	if it.state != StateEditing {
		return ErrNotEditable
	}
	it.state = StateAbandoned
	it.key = uuid.Nil
	return nil
}

func (it *Intent) notifyFailure(err error) {
	switch {
	case IsAuth(err):
		it.sink.Notify(NotifyError, "session expired, sign in again")
	case IsTransient(err):
		it.sink.Notify(NotifyWarning, "ledger temporarily unavailable, submitting again is safe")
	default:
		detail := "invalid request"
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Detail != "" {
			detail = apiErr.Detail
		}
		it.sink.Notify(NotifyError, detail)
	}
}
