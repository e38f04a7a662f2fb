package weberr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResponseThroughWrapping(t *testing.T) {
	base := errors.New("cart is empty")
	err := fmt.Errorf("checking out: %w", BadRequest(base))

	body, status, ok := Response(err)
	if !ok {
		t.Fatal("expected a response to be attached")
	}
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", status, http.StatusBadRequest)
	}
	if diff := cmp.Diff(&ErrorResponse{Error: "cart is empty"}, body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, base) {
		t.Error("expected the original error to stay reachable")
	}
}

func TestResponseMissing(t *testing.T) {
	if _, _, ok := Response(errors.New("plain")); ok {
		t.Fatal("plain errors carry no response")
	}
}

func TestFieldsMerged(t *testing.T) {
	inner := Wrap(errors.New("boom"), WithFields(map[string]interface{}{"cart_id": "a", "provider": "stripe"}))
	outer := Wrap(fmt.Errorf("outer: %w", inner), WithField("cart_id", "b"))

	got, ok := Fields(outer)
	if !ok {
		t.Fatal("expected fields")
	}

	want := map[string]interface{}{"cart_id": "b", "provider": "stripe"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldsMissing(t *testing.T) {
	got, ok := Fields(errors.New("plain"))
	if ok || got != nil {
		t.Fatalf("got %v, %v; want nil, false", got, ok)
	}
}
