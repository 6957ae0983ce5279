// Package ledgerclient is the staff-console client for the token adjustment
// ledger. It validates adjustment drafts locally, submits them with
// client-minted idempotency keys, and reads back history and balances for
// audit review. The server remains the sole authority over balances; this
// package never persists one.
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zimmerhq/zimmer-admin-api/pkg/enums"
)

// DefaultTimeout bounds every ledger call. A timed-out submission is treated
// as transient and may be resubmitted with the same idempotency key.
const DefaultTimeout = 30 * time.Second

const dateParamLayout = "2006-01-02"

// TokenSource supplies the bearer token attached to every request. Session
// handling lives outside this package; tests inject static sources.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticTokenSource is a fixed bearer token.
type StaticTokenSource string

func (s StaticTokenSource) AccessToken(context.Context) (string, error) {
	return string(s), nil
}

// Client talks JSON-over-HTTP to the ledger endpoints under a base URL such
// as https://api.zimmer.example/api/admin/v1.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client, typically to shorten
// timeouts in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds a ledger client rooted at baseURL.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("ledgerclient: base URL is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("ledgerclient: token source is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AdjustmentRequest is the write payload for one adjustment intent.
type AdjustmentRequest struct {
	UserAutomationID uuid.UUID              `json:"user_automation_id"`
	DeltaTokens      int                    `json:"delta_tokens"`
	Reason           enums.AdjustmentReason `json:"reason"`
	Note             string                 `json:"note,omitempty"`
	RelatedPaymentID *uuid.UUID             `json:"related_payment_id,omitempty"`
	IdempotencyKey   uuid.UUID              `json:"idempotency_key"`
}

// AppliedAdjustment is the server's view of a ledgered adjustment.
type AppliedAdjustment struct {
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

// ListFilter narrows the adjustment history query. Nil fields are omitted;
// populated fields combine with AND.
type ListFilter struct {
	UserID       *uuid.UUID
	AutomationID *uuid.UUID
	AdminID      *uuid.UUID
	Reason       *enums.AdjustmentReason
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}

// AdjustmentPage is one page of history, newest first, with the total row
// count for page math.
type AdjustmentPage struct {
	Items    []AppliedAdjustment `json:"items"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// BalanceSnapshot is the authoritative balance read used to reconcile the
// optimistic preview after a submission.
type BalanceSnapshot struct {
	UserAutomationID uuid.UUID `json:"user_automation_id"`
	TokensRemaining  int       `json:"tokens_remaining"`
}

// Submit posts one adjustment. The caller owns the idempotency key lifecycle:
// reusing the key on retry after a transient failure is safe because the
// server applies at most one mutation per key.
func (c *Client) Submit(ctx context.Context, req AdjustmentRequest) (*AppliedAdjustment, error) {
	if req.IdempotencyKey == uuid.Nil {
		return nil, fmt.Errorf("ledgerclient: idempotency key is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ledgerclient: encode adjustment: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/tokens/adjust", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey.String())

	return doJSON[AppliedAdjustment](c, httpReq)
}

// List fetches one page of adjustment history matching the filter.
func (c *Client) List(ctx context.Context, filter ListFilter) (*AdjustmentPage, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, "/tokens/adjustments", nil)
	if err != nil {
		return nil, err
	}
	httpReq.URL.RawQuery = filter.query().Encode()

	return doJSON[AdjustmentPage](c, httpReq)
}

// Balance reads the authoritative current balance for one subscription.
func (c *Client) Balance(ctx context.Context, userAutomationID uuid.UUID) (*BalanceSnapshot, error) {
	if userAutomationID == uuid.Nil {
		return nil, fmt.Errorf("ledgerclient: user automation id is required")
	}

	httpReq, err := c.newRequest(ctx, http.MethodGet, "/tokens/balance/"+userAutomationID.String(), nil)
	if err != nil {
		return nil, err
	}

	return doJSON[BalanceSnapshot](c, httpReq)
}

func (f ListFilter) query() url.Values {
	q := url.Values{}
	if f.UserID != nil {
		q.Set("user_id", f.UserID.String())
	}
	if f.AutomationID != nil {
		q.Set("automation_id", f.AutomationID.String())
	}
	if f.AdminID != nil {
		q.Set("admin_id", f.AdminID.String())
	}
	if f.Reason != nil {
		q.Set("reason", string(*f.Reason))
	}
	if f.StartDate != nil {
		q.Set("start_date", f.StartDate.UTC().Format(dateParamLayout))
	}
	if f.EndDate != nil {
		q.Set("end_date", f.EndDate.UTC().Format(dateParamLayout))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return q
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("ledgerclient: build request: %w", err)
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, &APIError{Kind: KindAuth, Detail: "could not obtain access token", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doJSON executes the request and decodes the success envelope strictly, so a
// shape mismatch fails loudly instead of rendering garbage downstream.
func doJSON[T any](c *Client, req *http.Request) (*T, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindTransient, Detail: "ledger unreachable, retry is safe", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, errorFromResponse(resp)
	}

	var envelope struct {
		Data T `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("ledgerclient: decode response: %w", err)
	}
	return &envelope.Data, nil
}

func errorFromResponse(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		apiErr.Kind = KindAuth
		apiErr.Detail = "session expired or invalid"
	case resp.StatusCode >= 500:
		apiErr.Kind = KindTransient
		apiErr.Detail = "ledger temporarily unavailable, retry is safe"
	default:
		apiErr.Kind = KindRejection
		apiErr.Detail = "invalid request"
	}

	// The error body may carry either the API envelope or a bare detail
	// field; decode leniently and keep the richest message available.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}

	var parsed struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}

	apiErr.Code = parsed.Error.Code
	if apiErr.Kind == KindRejection || apiErr.Kind == KindAuth {
		if parsed.Error.Message != "" {
			apiErr.Detail = parsed.Error.Message
		} else if parsed.Detail != "" {
			apiErr.Detail = parsed.Detail
		}
	}
	return apiErr
}
