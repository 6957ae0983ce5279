package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zimmerhq/zimmer-admin-api/api/responses"
	"github.com/zimmerhq/zimmer-admin-api/api/validators"
	paysvc "github.com/zimmerhq/zimmer-admin-api/internal/payments"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	pkgerrors "github.com/zimmerhq/zimmer-admin-api/pkg/errors"
	"github.com/zimmerhq/zimmer-admin-api/pkg/logger"
)

type createPaymentRequest struct {
	UserAutomationID string `json:"user_automation_id" validate:"required,uuid4"`
	Amount           string `json:"amount" validate:"required"`
	Currency         string `json:"currency,omitempty"`
	TokensPurchased  int    `json:"tokens_purchased" validate:"required,min=1"`
}

type markPaidRequest struct {
	RefNumber string `json:"ref_number" validate:"required"`
}

// PaymentsCreate records a pending gateway payment.
func PaymentsCreate(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var body createPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subID, err := uuid.Parse(body.UserAutomationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_automation_id"))
			return
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(body.Amount))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		payment, err := svc.Create(r.Context(), paysvc.CreateInput{
			UserAutomationID: subID,
			Amount:           amount,
			Currency:         strings.TrimSpace(body.Currency),
			TokensPurchased:  body.TokensPurchased,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

func PaymentsGet(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "paymentID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		payment, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func PaymentsList(svc paysvc.Service, logg *logger.Logger, defaultPageSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pageSize, err := validators.ParseQueryInt(r, "page_size", defaultPageSize, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := paysvc.ListInput{Page: page, PageSize: pageSize}
		if input.UserAutomationID, err = validators.ParseQueryUUID(r, "user_automation_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePaymentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			input.Status = &status
		}
		if input.StartDate, err = validators.ParseQueryDate(r, "start_date"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.EndDate, err = validators.ParseQueryDate(r, "end_date"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payments, total, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, pageDTO[models.Payment]{
			Items:    payments,
			Total:    total,
			Page:     page,
			PageSize: pageSize,
		})
	}
}

// PaymentsMarkPaid settles a pending payment and credits its tokens.
func PaymentsMarkPaid(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "paymentID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		var body markPaidRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.MarkPaid(r.Context(), id, strings.TrimSpace(body.RefNumber))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func PaymentsMarkFailed(svc paysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "paymentID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		payment, err := svc.MarkFailed(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}
