package product

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

const catalogJSON = `[
  {"id": 1, "name": "Submariner", "model": "16610", "price": 9500, "images": ["/DSC_3715", "/DSC_3716.jpg"], "description": "Steel diver", "available": true},
  {"id": 2, "name": "Daytona", "model": "116520", "price": 1250.5, "images": [], "description": "Chronograph", "available": false}
]`

var decimalCmp = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSource(t *testing.T) {
	src := NewSource("file://"+writeCatalog(t, catalogJSON), time.Second)

	got, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("listing: %v", err)
	}

	want := []Product{
		{ID: 1, Name: "Submariner", Model: "16610", Price: decimal.NewFromInt(9500), Images: []string{"/DSC_3715", "/DSC_3716.jpg"}, Description: "Steel diver", Available: true},
		{ID: 2, Name: "Daytona", Model: "116520", Price: decimal.RequireFromString("1250.5"), Images: []string{}, Description: "Chronograph"},
	}
	if diff := cmp.Diff(want, got, decimalCmp); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSourceRejectsBadCatalogs(t *testing.T) {
	tests := map[string]string{
		"malformed":      `[{"id": 1,`,
		"negative price": `[{"id": 1, "name": "X", "price": -1}]`,
		"missing name":   `[{"id": 1, "price": 10}]`,
		"duplicate id":   `[{"id": 1, "name": "X", "price": 1}, {"id": 1, "name": "Y", "price": 2}]`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			src := FileSource{Path: writeCatalog(t, body)}
			if _, err := src.List(context.Background()); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestFileSourceMissing(t *testing.T) {
	src := FileSource{Path: filepath.Join(t.TempDir(), "nope.json")}
	if _, err := src.List(context.Background()); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(catalogJSON))
	}))
	defer srv.Close()

	src := NewSource(srv.URL+"/products.json", time.Second)
	got, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d products, want 2", len(got))
	}

	missing := NewSource(srv.URL+"/missing.json", time.Second)
	_, err = missing.List(context.Background())
	if err == nil || err.Error() != "HTTP error! status: 404" {
		t.Fatalf("got %v, want HTTP error! status: 404", err)
	}
}

func TestFind(t *testing.T) {
	src := FileSource{Path: writeCatalog(t, catalogJSON)}

	p, err := Find(context.Background(), src, 2)
	if err != nil {
		t.Fatalf("finding: %v", err)
	}
	if p.Name != "Daytona" {
		t.Errorf("name = %q, want Daytona", p.Name)
	}

	_, err = Find(context.Background(), src, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
