// Package billing is the boundary to the payment gateway. The gateway is a
// black box to the entitlement core: it reports success or failure and a
// transaction id, and confirmed purchases funnel into the entitlement
// service's AttachPlan, which is the single write path for associations.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	stripe "github.com/stripe/stripe-go/v82"

	"workhub/internal/types"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via GatewayConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// ChargeRequest describes one purchase attempt.
type ChargeRequest struct {
	OrganizationUUID string
	PlanSlug         string
	AmountCents      int64
	Currency         string
	IdempotencyKey   string
}

// ChargeResult is the gateway's verdict on a purchase attempt.
type ChargeResult struct {
	Succeeded     bool
	TransactionID string
	FailureCode   string
}

// Gateway is the payment black box consumed by the purchase flow.
type Gateway interface {
	// Checkout attempts the charge and reports the outcome. Declined cards
	// are a successful call with Succeeded=false; errors are reserved for
	// the provider being unreachable or misbehaving.
	Checkout(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// GatewayConfig holds the configuration for creating a StripeGateway.
type GatewayConfig struct {
	SecretKey string
	BaseURL   string // Override for testing; defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeGateway implements Gateway against the Stripe REST API. All calls
// pass through a circuit breaker so a degraded provider fails fast instead
// of stalling request handlers behind timeouts.
type StripeGateway struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	secretKey  string
	baseURL    string
	logger     *slog.Logger
}

// NewStripeGateway creates a StripeGateway. The httpClient timeout should be
// around 20 seconds; the breaker opens after 5 consecutive failures and
// probes again after 30 seconds.
func NewStripeGateway(httpClient *http.Client, cfg GatewayConfig) *StripeGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "stripe",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &StripeGateway{
		httpClient: httpClient,
		breaker:    cb,
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

// stripePaymentIntent is the subset of the PaymentIntent response we read.
type stripePaymentIntent struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	LastError_ *struct {
		Code string `json:"code"`
	} `json:"last_payment_error"`
}

// Checkout implements Gateway by creating and confirming a PaymentIntent.
func (g *StripeGateway) Checkout(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := url.Values{}
	params.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	params.Set("currency", strings.ToLower(req.Currency))
	params.Set("confirm", "true")
	params.Set("metadata[org_uuid]", req.OrganizationUUID)
	params.Set("metadata[plan_slug]", req.PlanSlug)

	resp, err := g.doPost(ctx, "/v1/payment_intents", params, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamPayment, "failed to read payment provider response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var intent stripePaymentIntent
		if err := json.Unmarshal(body, &intent); err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamPayment, "failed to decode payment provider response", err)
		}
		result := &ChargeResult{
			Succeeded:     intent.Status == "succeeded",
			TransactionID: intent.ID,
		}
		if !result.Succeeded && intent.LastError_ != nil {
			result.FailureCode = intent.LastError_.Code
		}
		return result, nil

	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden:
		// Declined: a definitive answer, not a provider failure.
		return &ChargeResult{Succeeded: false, FailureCode: "card_declined"}, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, types.NewAppError(types.ErrCodeUpstreamRateLimit, "payment provider rate limited", nil)

	default:
		g.logger.Error("unexpected payment provider response",
			slog.Int("status", resp.StatusCode),
		)
		return nil, types.NewAppError(types.ErrCodeUpstreamPayment,
			fmt.Sprintf("payment provider returned status %d", resp.StatusCode), nil)
	}
}

// doPost sends a form-encoded POST through the circuit breaker.
func (g *StripeGateway) doPost(ctx context.Context, path string, params url.Values, idempotencyKey string) (*http.Response, error) {
	resp, err := g.breaker.Execute(func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			g.baseURL+path, strings.NewReader(params.Encode()))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+g.secretKey)
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		httpReq.Header.Set("Stripe-Version", stripe.APIVersion)
		if idempotencyKey != "" {
			httpReq.Header.Set("Idempotency-Key", idempotencyKey)
		}
		resp, err := g.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()
			return nil, fmt.Errorf("payment provider server error: %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, types.NewAppError(types.ErrCodeUpstreamPayment, "payment provider circuit open", err)
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamPayment, "payment provider unreachable", err)
	}
	return resp, nil
}

// ValidateWebhookPayload verifies a webhook signature against the endpoint
// secret. Thin wrapper so callers need no direct stripe-go dependency.
func ValidateWebhookPayload(payload []byte, sigHeader, secret string) error {
	return stripe.ValidatePayload(payload, sigHeader, secret)
}

// Compile-time interface assertion.
var _ Gateway = (*StripeGateway)(nil)
