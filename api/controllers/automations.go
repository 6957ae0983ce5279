package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zimmerhq/zimmer-admin-api/api/responses"
	"github.com/zimmerhq/zimmer-admin-api/api/validators"
	autosvc "github.com/zimmerhq/zimmer-admin-api/internal/automations"
	subsvc "github.com/zimmerhq/zimmer-admin-api/internal/subscriptions"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db/models"
	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
	pkgerrors "github.com/zimmerhq/zimmer-admin-api/pkg/errors"
	"github.com/zimmerhq/zimmer-admin-api/pkg/logger"
)

type createAutomationRequest struct {
	Name          string `json:"name" validate:"required"`
	Description   string `json:"description,omitempty"`
	PricePerToken string `json:"price_per_token" validate:"required"`
}

type updateAutomationRequest struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	PricePerToken *string `json:"price_per_token,omitempty"`
	Status        *string `json:"status,omitempty"`
}

type createSubscriptionRequest struct {
	UserID       string `json:"user_id" validate:"required,uuid4"`
	AutomationID string `json:"automation_id" validate:"required,uuid4"`
	DemoTokens   int    `json:"demo_tokens" validate:"omitempty,min=0"`
}

type setSubscriptionStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AutomationsCreate adds a product to the automation catalog.
func AutomationsCreate(svc autosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "automation service unavailable"))
			return
		}

		var body createAutomationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := decimal.NewFromString(strings.TrimSpace(body.PricePerToken))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price_per_token"))
			return
		}

		automation, err := svc.Create(r.Context(), autosvc.CreateInput{
			Name:          body.Name,
			Description:   body.Description,
			PricePerToken: price,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, automation)
	}
}

func AutomationsGet(svc autosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "automation service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "automationID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid automation id"))
			return
		}

		automation, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, automation)
	}
}

func AutomationsList(svc autosvc.Service, logg *logger.Logger, defaultPageSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "automation service unavailable"))
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

		input := autosvc.ListInput{Page: page, PageSize: pageSize}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseAutomationStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			input.Status = &status
		}

		automations, total, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, pageDTO[models.Automation]{
			Items:    automations,
			Total:    total,
			Page:     page,
			PageSize: pageSize,
		})
	}
}

func AutomationsUpdate(svc autosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "automation service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "automationID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid automation id"))
			return
		}

		var body updateAutomationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := autosvc.UpdateInput{Name: body.Name, Description: body.Description}
		if body.PricePerToken != nil {
			price, err := decimal.NewFromString(strings.TrimSpace(*body.PricePerToken))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price_per_token"))
				return
			}
			input.PricePerToken = &price
		}
		if body.Status != nil {
			status, err := enums.ParseAutomationStatus(strings.TrimSpace(*body.Status))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Status = &status
		}

		automation, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, automation)
	}
}

// SubscriptionsCreate grants a user access to an automation with optional demo tokens.
func SubscriptionsCreate(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		var body createSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := uuid.Parse(body.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id"))
			return
		}
		automationID, err := uuid.Parse(body.AutomationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid automation_id"))
			return
		}

		sub, err := svc.Create(r.Context(), subsvc.CreateInput{
			UserID:       userID,
			AutomationID: automationID,
			DemoTokens:   body.DemoTokens,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sub)
	}
}

func SubscriptionsGet(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "userAutomationID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id"))
			return
		}

		sub, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}

// SubscriptionsListByUser returns every subscription held by one panel user.
func SubscriptionsListByUser(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		subs, err := svc.ListByUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, subs)
	}
}

func SubscriptionsSetStatus(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "userAutomationID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id"))
			return
		}

		var body setSubscriptionStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseUserAutomationStatus(strings.TrimSpace(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		if err := svc.SetStatus(r.Context(), id, status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(status)})
	}
}
