package controllers

import (
	"net/http"

	"github.com/avrportal/tindago-backend/api/responses"
	paymentsvc "github.com/avrportal/tindago-backend/internal/payments"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/logger"
)

// PaymentStart opens (or retries) the gateway payment for an order. Cash
// orders settle at the counter and skip the gateway entirely.
func PaymentStart(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		buyerID, err := buyerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.StartPayment(r.Context(), orderID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newStartPaymentResponse(result))
	}
}

// PaymentReconcile blocks until the payment resolves or the poll budget
// runs out, then reports the outcome. A timeout is a successful response,
// not an error.
func PaymentReconcile(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		buyerID, err := buyerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.Reconcile(r.Context(), orderID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}

type startPaymentResponse struct {
	CashOnPickup bool                 `json:"cash_on_pickup"`
	Intent       *paymentIntentDetail `json:"intent,omitempty"`
	ClientKey    string               `json:"client_key,omitempty"`
	CheckoutURL  *string              `json:"checkout_url,omitempty"`
}

func newStartPaymentResponse(result *paymentsvc.StartResult) startPaymentResponse {
	resp := startPaymentResponse{
		CashOnPickup: result.CashOnPickup,
		ClientKey:    result.ClientKey,
		CheckoutURL:  result.CheckoutURL,
	}
	if result.Intent != nil {
		resp.Intent = &paymentIntentDetail{
			ID:                result.Intent.ID,
			Status:            result.Intent.Status,
			Method:            result.Intent.Method,
			Amount:            result.Intent.Amount,
			ProviderReference: result.Intent.ProviderReference,
			NextActionURL:     result.Intent.NextActionURL,
			FailureReason:     result.Intent.FailureReason,
		}
	}
	return resp
}
