package product

import "github.com/shopspring/decimal"

// Product is a catalog entry. Price is in whole currency units.
type Product struct {
	ID          int             `json:"id" validate:"gte=0"`
	Name        string          `json:"name" validate:"required"`
	Model       string          `json:"model"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Images      []string        `json:"images"`
	Description string          `json:"description"`
	Available   bool            `json:"available"`
}
