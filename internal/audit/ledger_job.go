package audit

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/zimmerhq/zimmer-admin-api/pkg/logger"
)

const defaultFindingLimit = 500

// LedgerJobParams configures the ledger integrity job.
type LedgerJobParams struct {
	Logger *logger.Logger
	Store  Store
	Limit  int
}

// NewLedgerJob builds the job that verifies ledger invariants against the
// live database. A passing run means every subscription balance is
// non-negative, reconstructible from its history, and every idempotency key
// appears at most once.
func NewLedgerJob(params LedgerJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("audit store required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultFindingLimit
	}
	return &ledgerJob{logg: params.Logger, store: params.Store, limit: limit}, nil
}

type ledgerJob struct {
	logg  *logger.Logger
	store Store
	limit int
}

func (j *ledgerJob) Name() string { return "ledger-integrity" }

func (j *ledgerJob) Run(ctx context.Context) error {
	var errs error

	negatives, err := j.store.ListNegativeBalances(ctx, j.limit)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list negative balances: %w", err))
	}
	for _, finding := range negatives {
		findingCtx := j.logg.WithFields(ctx, map[string]any{
			"user_automation_id": finding.UserAutomationID,
			"tokens_remaining":   finding.TokensRemaining,
		})
		j.logg.Warn(findingCtx, "subscription balance is negative")
		errs = multierr.Append(errs, fmt.Errorf("negative balance on subscription %s: %d",
			finding.UserAutomationID, finding.TokensRemaining))
	}

	mismatches, err := j.store.ListBalanceMismatches(ctx, j.limit)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list balance mismatches: %w", err))
	}
	for _, finding := range mismatches {
		findingCtx := j.logg.WithFields(ctx, map[string]any{
			"user_automation_id": finding.UserAutomationID,
			"tokens_remaining":   finding.TokensRemaining,
			"expected":           finding.Expected,
		})
		j.logg.Warn(findingCtx, "subscription balance disagrees with its history")
		errs = multierr.Append(errs, fmt.Errorf("balance mismatch on subscription %s: stored %d, expected %d",
			finding.UserAutomationID, finding.TokensRemaining, finding.Expected))
	}

	duplicates, err := j.store.ListDuplicateIdempotencyKeys(ctx, j.limit)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list duplicate idempotency keys: %w", err))
	}
	for _, finding := range duplicates {
		findingCtx := j.logg.WithFields(ctx, map[string]any{
			"idempotency_key": finding.IdempotencyKey,
			"count":           finding.Count,
		})
		j.logg.Warn(findingCtx, "idempotency key applied more than once")
		errs = multierr.Append(errs, fmt.Errorf("idempotency key %s applied %d times",
			finding.IdempotencyKey, finding.Count))
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"negative_balances":  len(negatives),
		"balance_mismatches": len(mismatches),
		"duplicate_keys":     len(duplicates),
	})
	j.logg.Info(reportCtx, "ledger integrity sweep complete")
	return errs
}
