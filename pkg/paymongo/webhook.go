package paymongo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
)

// Webhook event types delivered for payment intents.
const (
	EventPaymentPaid   = "payment.paid"
	EventPaymentFailed = "payment.failed"
)

// WebhookEvent is the parsed inbound gateway notification.
type WebhookEvent struct {
	ID            string
	Type          string
	IntentID      string
	PaymentID     string
	FailureDetail string
}

// VerifyWebhookSignature checks the Paymongo-Signature header against the
// raw request body. The header carries a timestamp and separate test and
// live mode HMAC-SHA256 signatures of "<timestamp>.<body>".
func VerifyWebhookSignature(payload []byte, header, secret string) error {
	if strings.TrimSpace(header) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing webhook signature")
	}

	var timestamp, testSig, liveSig string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "te":
			testSig = value
		case "li":
			liveSig = value
		}
	}
	if timestamp == "" || (testSig == "" && liveSig == "") {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed webhook signature")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if hmac.Equal([]byte(expected), []byte(liveSig)) || hmac.Equal([]byte(expected), []byte(testSig)) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
}

// ParseWebhookEvent decodes the raw webhook body into the fields the
// platform consumes.
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var raw struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Type string `json:"type"`
				Data struct {
					ID         string `json:"id"`
					Attributes struct {
						PaymentIntentID string `json:"payment_intent_id"`
						FailedMessage   string `json:"failed_message"`
					} `json:"attributes"`
				} `json:"data"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload")
	}
	if raw.Data.ID == "" || raw.Data.Attributes.Type == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing event id or type")
	}
	return &WebhookEvent{
		ID:            raw.Data.ID,
		Type:          raw.Data.Attributes.Type,
		IntentID:      raw.Data.Attributes.Data.Attributes.PaymentIntentID,
		PaymentID:     raw.Data.Attributes.Data.ID,
		FailureDetail: raw.Data.Attributes.Data.Attributes.FailedMessage,
	}, nil
}
