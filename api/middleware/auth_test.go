package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/avrportal/tindago-backend/pkg/auth"
	"github.com/avrportal/tindago-backend/pkg/config"
	"github.com/avrportal/tindago-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "tindago", TokenTTL: time.Hour}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	mw := Auth(testJWTConfig(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/123", nil)
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	mw := Auth(testJWTConfig(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/123", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthSeedsContextFromClaims(t *testing.T) {
	cfg := testJWTConfig()
	buyerID := uuid.New()
	businessID := uuid.New()

	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		SubjectID:  buyerID,
		BusinessID: &businessID,
		Role:       enums.ActorRoleBusiness,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	mw := Auth(cfg, nil)
	var gotSubject, gotBusiness, gotRole string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = BuyerIDFromContext(r.Context())
		gotBusiness = BusinessIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/123", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if gotSubject != buyerID.String() {
		t.Fatalf("subject id not propagated, got %q", gotSubject)
	}
	if gotBusiness != businessID.String() {
		t.Fatalf("business id not propagated, got %q", gotBusiness)
	}
	if gotRole != string(enums.ActorRoleBusiness) {
		t.Fatalf("role not propagated, got %q", gotRole)
	}
}
