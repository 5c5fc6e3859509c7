package controllers

import (
	"net/http"

	"github.com/avrportal/tindago-backend/api/middleware"
	"github.com/avrportal/tindago-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if buyer := middleware.BuyerIDFromContext(r.Context()); buyer != "" {
			payload["subject_id"] = buyer
		}
		responses.WriteSuccess(w, payload)
	}
}
