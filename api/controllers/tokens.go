package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zimmerhq/zimmer-admin-api/api/middleware"
	"github.com/zimmerhq/zimmer-admin-api/api/responses"
	"github.com/zimmerhq/zimmer-admin-api/api/validators"
	"github.com/zimmerhq/zimmer-admin-api/internal/adjustments"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	pkgerrors "github.com/zimmerhq/zimmer-admin-api/pkg/errors"
	"github.com/zimmerhq/zimmer-admin-api/pkg/logger"
	"github.com/zimmerhq/zimmer-admin-api/pkg/pagination"
)

const idempotencyKeyHeader = "Idempotency-Key"

type adjustRequest struct {
	UserAutomationID string  `json:"user_automation_id" validate:"required,uuid4"`
	DeltaTokens      int     `json:"delta_tokens"`
	Reason           string  `json:"reason"`
	Note             string  `json:"note,omitempty"`
	RelatedPaymentID *string `json:"related_payment_id,omitempty" validate:"omitempty,uuid4"`
	IdempotencyKey   string  `json:"idempotency_key,omitempty" validate:"omitempty,uuid4"`
}

type adjustmentDTO struct {
	ID               uuid.UUID              `json:"id"`
	UserAutomationID uuid.UUID              `json:"user_automation_id"`
	AdminID          uuid.UUID              `json:"admin_id"`
	DeltaTokens      int                    `json:"delta_tokens"`
	Reason           enums.AdjustmentReason `json:"reason"`
	Note             string                 `json:"note,omitempty"`
	RelatedPaymentID *uuid.UUID             `json:"related_payment_id,omitempty"`
	IdempotencyKey   uuid.UUID              `json:"idempotency_key"`
	BalanceAfter     int                    `json:"balance_after"`
	CreatedAt        time.Time              `json:"created_at"`
}

type adjustmentPageDTO struct {
	Items    []adjustmentDTO `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type balanceDTO struct {
	UserAutomationID uuid.UUID `json:"user_automation_id"`
	TokensRemaining  int       `json:"tokens_remaining"`
}

func adjustmentToDTO(row *models.TokenAdjustment) adjustmentDTO {
	return adjustmentDTO{
		ID:               row.ID,
		UserAutomationID: row.UserAutomationID,
		AdminID:          row.AdminID,
		DeltaTokens:      row.DeltaTokens,
		Reason:           row.Reason,
		Note:             row.Note,
		RelatedPaymentID: row.RelatedPaymentID,
		IdempotencyKey:   row.IdempotencyKey,
		BalanceAfter:     row.BalanceAfter,
		CreatedAt:        row.CreatedAt,
	}
}

// TokensAdjust applies one balance adjustment. A replayed idempotency key
// returns the originally applied record with 200 instead of 201.
func TokensAdjust(svc adjustments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		adminID, err := uuid.Parse(middleware.AdminIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin context missing"))
			return
		}

		var body adjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := body.toApplyInput(adminID, r.Header.Get(idempotencyKeyHeader))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		applied, replayed, err := svc.Apply(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, adjustmentToDTO(applied))
	}
}

func (b adjustRequest) toApplyInput(adminID uuid.UUID, headerKey string) (adjustments.ApplyInput, error) {
	target, err := uuid.Parse(b.UserAutomationID)
	if err != nil {
		return adjustments.ApplyInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_automation_id")
	}

	// The header wins when both carry a key; clients are expected to send
	// the same value in both places.
	rawKey := strings.TrimSpace(headerKey)
	if rawKey == "" {
		rawKey = strings.TrimSpace(b.IdempotencyKey)
	}
	if rawKey == "" {
		return adjustments.ApplyInput{}, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	key, err := uuid.Parse(rawKey)
	if err != nil {
		return adjustments.ApplyInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid idempotency key")
	}

	input := adjustments.ApplyInput{
		UserAutomationID: target,
		AdminID:          adminID,
		DeltaTokens:      b.DeltaTokens,
		Reason:           enums.AdjustmentReason(strings.TrimSpace(b.Reason)),
		Note:             strings.TrimSpace(b.Note),
		IdempotencyKey:   key,
	}
	if b.RelatedPaymentID != nil {
		paymentID, err := uuid.Parse(*b.RelatedPaymentID)
		if err != nil {
			return adjustments.ApplyInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid related_payment_id")
		}
		input.RelatedPaymentID = &paymentID
	}
	return input, nil
}

// TokensList serves the filtered, newest-first adjustment history.
func TokensList(svc adjustments.Service, logg *logger.Logger, defaultPageSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		input, err := parseListInput(r, defaultPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, total, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page := adjustmentPageDTO{
			Items:    make([]adjustmentDTO, 0, len(items)),
			Total:    total,
			Page:     input.Page,
			PageSize: input.PageSize,
		}
		for i := range items {
			page.Items = append(page.Items, adjustmentToDTO(&items[i]))
		}
		responses.WriteSuccess(w, page)
	}
}

func parseListInput(r *http.Request, defaultPageSize int) (adjustments.ListInput, error) {
	var input adjustments.ListInput

	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
	if err != nil {
		return input, err
	}
	pageSize, err := validators.ParseQueryInt(r, "page_size", defaultPageSize, 1, 100)
	if err != nil {
		return input, err
	}
	params := pagination.Params{Page: page, PageSize: pageSize}.Normalize()
	input.Page = params.Page
	input.PageSize = params.PageSize

	if input.UserID, err = validators.ParseQueryUUID(r, "user_id"); err != nil {
		return input, err
	}
	if input.AutomationID, err = validators.ParseQueryUUID(r, "automation_id"); err != nil {
		return input, err
	}
	if input.AdminID, err = validators.ParseQueryUUID(r, "admin_id"); err != nil {
		return input, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("reason")); raw != "" {
		reason, err := enums.ParseAdjustmentReason(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason filter")
		}
		input.Reason = &reason
	}
	if input.StartDate, err = validators.ParseQueryDate(r, "start_date"); err != nil {
		return input, err
	}
	if input.EndDate, err = validators.ParseQueryDate(r, "end_date"); err != nil {
		return input, err
	}
	return input, nil
}

// TokensBalance serves the authoritative balance for one subscription.
func TokensBalance(svc adjustments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "userAutomationID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id"))
			return
		}

		snapshot, err := svc.Balance(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, balanceDTO{
			UserAutomationID: snapshot.UserAutomationID,
			TokensRemaining:  snapshot.TokensRemaining,
		})
	}
}
