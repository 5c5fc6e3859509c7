package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avrportal/tindago-backend/pkg/config"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/logger"
)

var (
	errSecretKeyRequired     = errors.New("paymongo secret key is required")
	errWebhookSecretRequired = errors.New("paymongo webhook secret is required")
	errLoggerRequired        = errors.New("paymongo logger is required")
)

// Client exposes the PayMongo primitives the platform needs with centralized
// auth, logging, and error mapping. PayMongo has no official Go SDK, so this
// wraps the REST API directly.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	secretKey     string
	webhookSecret string
	returnURL     string
	logger        *logger.Logger
}

// NewClient initializes the PayMongo wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PayMongoConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.paymongo.com/v1"
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       baseURL,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		returnURL:     cfg.ReturnURL,
		logger:        logg,
	}

	logg.Info(ctx, "paymongo client initialized")
	return c, nil
}

// WebhookSecret returns the signing secret used to verify inbound events.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// ReturnURL returns the configured e-wallet redirect return URL.
func (c *Client) ReturnURL() string {
	if c == nil {
		return ""
	}
	return c.returnURL
}

// PaymentIntent is the subset of the gateway intent resource the platform
// consumes.
type PaymentIntent struct {
	ID            string
	ClientKey     string
	Status        string
	NextActionURL string
	LastError     string
	// PaymentID is the captured payment resource, present once the intent
	// succeeded. Refunds are keyed by it.
	PaymentID string
}

// CreateIntentParams describe a new collection attempt.
type CreateIntentParams struct {
	Amount      decimal.Decimal
	Currency    string
	Methods     []string
	Description string
}

// AttachParams bind an e-wallet payment method to an intent.
type AttachParams struct {
	IntentID   string
	ClientKey  string
	MethodType string
	ReturnURL  string
}

// Refund is the subset of the gateway refund resource the platform consumes.
type Refund struct {
	ID     string
	Status string
}

// CreatePaymentIntent opens a new intent at the gateway.
func (c *Client) CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error) {
	if params.Amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent amount must be positive")
	}
	currency := params.Currency
	if currency == "" {
		currency = "PHP"
	}
	body := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"amount":                 amountToCentavos(params.Amount),
				"currency":               currency,
				"payment_method_allowed": params.Methods,
				"description":            params.Description,
			},
		},
	}

	c.log(ctx, "request", "create_payment_intent", map[string]any{
		"amount":   amountToCentavos(params.Amount),
		"currency": currency,
		"methods":  params.Methods,
	})

	var resp intentResponse
	if err := c.do(ctx, http.MethodPost, "/payment_intents", body, &resp); err != nil {
		c.log(ctx, "error", "create_payment_intent", map[string]any{"error": err.Error()})
		return nil, err
	}

	intent := resp.toIntent()
	c.log(ctx, "response", "create_payment_intent", map[string]any{
		"intent_id": intent.ID,
		"status":    intent.Status,
	})
	return intent, nil
}

// AttachEwallet creates an e-wallet payment method and attaches it to the
// intent, yielding the redirect URL the buyer must authenticate at.
func (c *Client) AttachEwallet(ctx context.Context, params AttachParams) (*PaymentIntent, error) {
	if params.IntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id required")
	}
	if params.MethodType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method type required")
	}
	returnURL := params.ReturnURL
	if returnURL == "" {
		returnURL = c.returnURL
	}

	methodBody := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"type": params.MethodType,
			},
		},
	}
	var methodResp methodResponse
	if err := c.do(ctx, http.MethodPost, "/payment_methods", methodBody, &methodResp); err != nil {
		c.log(ctx, "error", "create_payment_method", map[string]any{"error": err.Error()})
		return nil, err
	}

	attachBody := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"payment_method": methodResp.Data.ID,
				"client_key":     params.ClientKey,
				"return_url":     returnURL,
			},
		},
	}

	c.log(ctx, "request", "attach_payment_method", map[string]any{
		"intent_id":   params.IntentID,
		"method_type": params.MethodType,
	})

	var resp intentResponse
	path := fmt.Sprintf("/payment_intents/%s/attach", params.IntentID)
	if err := c.do(ctx, http.MethodPost, path, attachBody, &resp); err != nil {
		c.log(ctx, "error", "attach_payment_method", map[string]any{"error": err.Error()})
		return nil, err
	}

	intent := resp.toIntent()
	c.log(ctx, "response", "attach_payment_method", map[string]any{
		"intent_id": intent.ID,
		"status":    intent.Status,
	})
	return intent, nil
}

// GetPaymentIntent fetches the current gateway state of an intent.
func (c *Client) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id required")
	}
	var resp intentResponse
	if err := c.do(ctx, http.MethodGet, "/payment_intents/"+intentID, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toIntent(), nil
}

// CreateRefund requests a refund of the captured payment.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (*Refund, error) {
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if reason == "" {
		reason = "requested_by_customer"
	}
	body := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				"amount":     amountToCentavos(amount),
				"payment_id": paymentID,
				"reason":     reason,
			},
		},
	}

	c.log(ctx, "request", "create_refund", map[string]any{
		"payment_id": paymentID,
		"amount":     amountToCentavos(amount),
	})

	var resp refundResponse
	if err := c.do(ctx, http.MethodPost, "/refunds", body, &resp); err != nil {
		c.log(ctx, "error", "create_refund", map[string]any{"error": err.Error()})
		return nil, err
	}
	return &Refund{ID: resp.Data.ID, Status: resp.Data.Attributes.Status}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Authorization", "Basic "+basicAuth(c.secretKey))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}

	if resp.StatusCode >= 400 {
		return mapGatewayError(resp.StatusCode, raw)
	}

	if dest != nil {
		if err := json.Unmarshal(raw, dest); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
		}
	}
	return nil
}

func mapGatewayError(status int, raw []byte) error {
	var parsed struct {
		Errors []struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	detail := ""
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Errors) > 0 {
		detail = parsed.Errors[0].Detail
	}
	msg := fmt.Sprintf("payment gateway rejected request (HTTP %d)", status)
	err := pkgerrors.New(pkgerrors.CodeDependency, msg)
	if detail != "" {
		err = err.WithDetails(map[string]any{"detail": detail})
	}
	return err
}

func basicAuth(secretKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(secretKey + ":"))
}

func amountToCentavos(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (c *Client) log(ctx context.Context, phase, operation string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	merged := map[string]any{"gateway": "paymongo", "phase": phase, "operation": operation}
	for k, v := range fields {
		merged[k] = v
	}
	c.logger.Info(c.logger.WithFields(ctx, merged), "paymongo."+operation)
}

type intentResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			ClientKey  string `json:"client_key"`
			Status     string `json:"status"`
			NextAction *struct {
				Redirect struct {
					URL string `json:"url"`
				} `json:"redirect"`
			} `json:"next_action"`
			LastPaymentError *struct {
				Detail string `json:"detail"`
			} `json:"last_payment_error"`
			Payments []struct {
				ID string `json:"id"`
			} `json:"payments"`
		} `json:"attributes"`
	} `json:"data"`
}

func (r intentResponse) toIntent() *PaymentIntent {
	intent := &PaymentIntent{
		ID:        r.Data.ID,
		ClientKey: r.Data.Attributes.ClientKey,
		Status:    r.Data.Attributes.Status,
	}
	if r.Data.Attributes.NextAction != nil {
		intent.NextActionURL = r.Data.Attributes.NextAction.Redirect.URL
	}
	if r.Data.Attributes.LastPaymentError != nil {
		intent.LastError = r.Data.Attributes.LastPaymentError.Detail
	}
	if len(r.Data.Attributes.Payments) > 0 {
		intent.PaymentID = r.Data.Attributes.Payments[0].ID
	}
	return intent
}

type methodResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type refundResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status string `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
}
