package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// StorageKey namespaces persisted carts in shared backends.
const StorageKey = "83WestCart"

var (
	ErrNotFound = errors.New("cart not found")

	// ErrMalformed marks stored data that cannot be decoded into lines.
	ErrMalformed = errors.New("malformed cart")
)

// Line is one product in a cart. The display fields are a snapshot taken when
// the product was first added; later catalog changes do not reach it.
type Line struct {
	ProductID int             `json:"id"`
	Name      string          `json:"name" validate:"required"`
	Model     string          `json:"model,omitempty"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
	Images    []string        `json:"images,omitempty"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
}

// Cart is the client view of a store.
type Cart struct {
	ID         string          `json:"id"`
	Items      []Line          `json:"items"`
	Open       bool            `json:"open"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TotalItems int             `json:"totalItems"`
}

// Persister is the durable side of a cart. Load returns ErrNotFound when
// nothing was ever saved under cartID and ErrMalformed when the stored value
// cannot be decoded. Any other error means the backend could not be read.
type Persister interface {
	Load(ctx context.Context, cartID string) ([]Line, error)
	Save(ctx context.Context, cartID string, lines []Line) error
}

// Encode serializes lines for byte oriented backends, keeping their order.
func Encode(lines []Line) ([]byte, error) {
	if lines == nil {
		lines = []Line{}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encoding cart lines: %w", err)
	}
	return b, nil
}

func Decode(b []byte) ([]Line, error) {
	var lines []Line
	if err := json.Unmarshal(b, &lines); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return lines, nil
}

func subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

func totalItems(lines []Line) int {
	n := 0
	for _, l := range lines {
		n = addQuantity(n, l.Quantity)
	}
	return n
}

// addQuantity adds b to a, saturating at math.MaxInt.
func addQuantity(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		if l.Images != nil {
			l.Images = append([]string(nil), l.Images...)
		}
		out[i] = l
	}
	return out
}
