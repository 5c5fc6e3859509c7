package controllers

import (
	"io"
	"net/http"

	"github.com/avrportal/tindago-backend/api/responses"
	paymongohook "github.com/avrportal/tindago-backend/internal/webhooks/paymongo"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/logger"
)

const webhookBodyLimit = 1 << 20

// PayMongoWebhook receives gateway deliveries. The body is read raw because
// the signature covers the exact bytes on the wire.
func PayMongoWebhook(svc *paymongohook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		if err := svc.Handle(r.Context(), payload, r.Header.Get("Paymongo-Signature")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
