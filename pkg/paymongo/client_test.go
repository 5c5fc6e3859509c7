package paymongo

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avrportal/tindago-backend/pkg/config"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/logger"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), config.PayMongoConfig{
		SecretKey:     "sk_test_abc",
		WebhookSecret: "whsk_test_abc",
		BaseURL:       baseURL,
		ReturnURL:     "https://app.example.com/payments/return",
	}, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})

	_, err := NewClient(context.Background(), config.PayMongoConfig{WebhookSecret: "whsk"}, logg)
	assert.ErrorIs(t, err, errSecretKeyRequired)

	_, err = NewClient(context.Background(), config.PayMongoConfig{SecretKey: "sk"}, logg)
	assert.ErrorIs(t, err, errWebhookSecretRequired)

	_, err = NewClient(context.Background(), config.PayMongoConfig{SecretKey: "sk", WebhookSecret: "whsk"}, nil)
	assert.ErrorIs(t, err, errLoggerRequired)
}

func TestCreatePaymentIntentSendsCentavosAndAuth(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payment_intents", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"data":{"id":"pi_123","attributes":{"client_key":"pi_123_client","status":"awaiting_payment_method"}}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	intent, err := client.CreatePaymentIntent(context.Background(), CreateIntentParams{
		Amount:   decimal.RequireFromString("249.50"),
		Methods:  []string{"gcash"},
		Currency: "PHP",
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_client", intent.ClientKey)
	assert.Equal(t, "awaiting_payment_method", intent.Status)
	assert.Equal(t, "Basic "+basicAuth("sk_test_abc"), gotAuth)

	attrs := gotBody["data"].(map[string]any)["attributes"].(map[string]any)
	assert.Equal(t, float64(24950), attrs["amount"])
	assert.Equal(t, "PHP", attrs["currency"])
}

func TestCreatePaymentIntentRejectsNonPositiveAmount(t *testing.T) {
	client := newTestClient(t, "http://localhost:0")

	_, err := client.CreatePaymentIntent(context.Background(), CreateIntentParams{Amount: decimal.Zero})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestAttachEwalletReturnsRedirectURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payment_methods":
			fmt.Fprint(w, `{"data":{"id":"pm_456"}}`)
		case "/payment_intents/pi_123/attach":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			attrs := body["data"].(map[string]any)["attributes"].(map[string]any)
			assert.Equal(t, "pm_456", attrs["payment_method"])
			assert.Equal(t, "https://app.example.com/payments/return", attrs["return_url"])
			fmt.Fprint(w, `{"data":{"id":"pi_123","attributes":{"status":"awaiting_next_action","next_action":{"redirect":{"url":"https://gateway.example.com/auth/pi_123"}}}}}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	intent, err := client.AttachEwallet(context.Background(), AttachParams{
		IntentID:   "pi_123",
		ClientKey:  "pi_123_client",
		MethodType: "gcash",
	})
	require.NoError(t, err)

	assert.Equal(t, "awaiting_next_action", intent.Status)
	assert.Equal(t, "https://gateway.example.com/auth/pi_123", intent.NextActionURL)
}

func TestGatewayErrorMapsToDependencyCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errors":[{"code":"parameter_invalid","detail":"amount below minimum"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetPaymentIntent(context.Background(), "pi_123")
	require.Error(t, err)

	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeDependency, appErr.Code())
}

func TestCreateRefundDefaultsReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/refunds", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		attrs := body["data"].(map[string]any)["attributes"].(map[string]any)
		assert.Equal(t, "requested_by_customer", attrs["reason"])
		assert.Equal(t, "pay_789", attrs["payment_id"])
		fmt.Fprint(w, `{"data":{"id":"ref_001","attributes":{"status":"pending"}}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	refund, err := client.CreateRefund(context.Background(), "pay_789", decimal.RequireFromString("100.00"), "")
	require.NoError(t, err)

	assert.Equal(t, "ref_001", refund.ID)
	assert.Equal(t, "pending", refund.Status)
}

func signWebhook(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", timestamp, payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsk_test_abc"
	payload := []byte(`{"data":{"id":"evt_1"}}`)
	sig := signWebhook(secret, "1725148800", payload)

	t.Run("valid live signature", func(t *testing.T) {
		header := "t=1725148800,te=deadbeef,li=" + sig
		assert.NoError(t, VerifyWebhookSignature(payload, header, secret))
	})

	t.Run("valid test signature", func(t *testing.T) {
		header := "t=1725148800,te=" + sig + ",li="
		assert.NoError(t, VerifyWebhookSignature(payload, header, secret))
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := "t=1725148800,li=" + sig
		err := VerifyWebhookSignature([]byte(`{"data":{"id":"evt_2"}}`), header, secret)
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
	})

	t.Run("missing header", func(t *testing.T) {
		err := VerifyWebhookSignature(payload, "", secret)
		require.Error(t, err)
	})

	t.Run("malformed header", func(t *testing.T) {
		err := VerifyWebhookSignature(payload, "nonsense", secret)
		require.Error(t, err)
	})
}

func TestParseWebhookEvent(t *testing.T) {
	payload := []byte(`{
		"data": {
			"id": "evt_abc",
			"attributes": {
				"type": "payment.paid",
				"data": {
					"id": "pay_789",
					"attributes": {"payment_intent_id": "pi_123"}
				}
			}
		}
	}`)

	event, err := ParseWebhookEvent(payload)
	require.NoError(t, err)

	assert.Equal(t, "evt_abc", event.ID)
	assert.Equal(t, EventPaymentPaid, event.Type)
	assert.Equal(t, "pi_123", event.IntentID)
	assert.Equal(t, "pay_789", event.PaymentID)

	_, err = ParseWebhookEvent([]byte(`{"data":{}}`))
	require.Error(t, err)
}
