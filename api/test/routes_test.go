package test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestRouteErrors(t *testing.T) {
	env := NewTestEnv(t, envOptions{})

	tests := []struct {
		method  string
		path    string
		status  int
		message string
	}{
		{http.MethodGet, "/checkout/sessions", http.StatusMethodNotAllowed, "Method not allowed"},
		{http.MethodPut, "/checkout/sessions", http.StatusMethodNotAllowed, "Method not allowed"},
		{http.MethodGet, "/nowhere", http.StatusNotFound, "the resource could not be found"},
		{http.MethodGet, "/carts/not-a-uuid", http.StatusBadRequest, "cart id: ID is not in its proper form"},
		{http.MethodGet, "/products/99", http.StatusNotFound, "the resource could not be found"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r, err := http.NewRequest(tt.method, env.URL+tt.path, strings.NewReader(""))
			if err != nil {
				t.Fatal(err)
			}

			w, err := env.Server.Client().Do(r)
			if err != nil {
				t.Fatal(err)
			}
			defer w.Body.Close()

			if w.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", w.StatusCode, tt.status)
			}
			if ct := w.Header.Get("Content-Type"); ct != "application/json" {
				t.Fatalf("content type = %q", ct)
			}

			var body struct {
				Error string `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Error != tt.message {
				t.Fatalf("error = %q, want %q", body.Error, tt.message)
			}
			if w.Header.Get("X-Request-Id") == "" {
				t.Fatal("missing request id")
			}
		})
	}
}

func TestWebhookRouteOnlyForStripe(t *testing.T) {
	env := NewTestEnv(t, envOptions{provider: "paypal"})

	w, err := env.Server.Client().Post(env.URL+"/checkout/webhook", "application/json", strings.NewReader(`{"type": "checkout.session.completed"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.StatusCode, http.StatusNotFound)
	}
}
