package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeConflict, http.StatusConflict},
		{CodeStateConflict, http.StatusUnprocessableEntity},
		{CodeDependency, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Fatalf("code %s: expected status %d, got %d", tc.code, tc.status, got)
		}
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal metadata, got %+v", meta)
	}
}

func TestAsUnwrapsThroughChain(t *testing.T) {
	base := New(CodeConflict, "insufficient stock")
	wrapped := fmt.Errorf("creating order: %w", base)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeConflict {
		t.Fatalf("expected conflict code, got %s", typed.Code())
	}
}

func TestWithDetailsRoundTrip(t *testing.T) {
	err := New(CodeValidation, "bad payload").WithDetails(map[string]string{"items": "is required"})
	details, ok := err.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details type %T", err.Details())
	}
	if details["items"] != "is required" {
		t.Fatalf("details lost: %+v", details)
	}
}
