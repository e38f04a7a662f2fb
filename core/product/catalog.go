package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/83west/storefront/validate"
)

var ErrNotFound = errors.New("product not found")

// Source yields the whole catalog. It is read on every call; nothing is
// cached between views.
type Source interface {
	List(ctx context.Context) ([]Product, error)
}

// NewSource picks a Source for location: an http(s) URL is fetched, anything
// else (optionally prefixed with file://) is read from disk.
func NewSource(location string, timeout time.Duration) Source {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return &HTTPSource{URL: location, Client: &http.Client{Timeout: timeout}}
	default:
		return FileSource{Path: strings.TrimPrefix(location, "file://")}
	}
}

type FileSource struct {
	Path string
}

func (s FileSource) List(ctx context.Context) ([]Product, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	return decode(f)
}

type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) List(ctx context.Context) ([]Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error! status: %d", resp.StatusCode)
	}

	return decode(resp.Body)
}

// decode parses and checks a whole catalog document. One bad product fails
// the document.
func decode(r io.Reader) ([]Product, error) {
	var products []Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	seen := make(map[int]struct{}, len(products))
	for i, p := range products {
		if err := validate.Check(p); err != nil {
			return nil, fmt.Errorf("product[%d]: %w", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("product[%d]: duplicate id %d", i, p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	if products == nil {
		products = []Product{}
	}
	return products, nil
}

func Find(ctx context.Context, src Source, id int) (Product, error) {
	products, err := src.List(ctx)
	if err != nil {
		return Product{}, err
	}

	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("product[%d]: %w", id, ErrNotFound)
}
