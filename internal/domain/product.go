package domain

import (
	"errors"
	"strings"
)

// Product is a catalog item with a unit price and remaining stock.
type Product struct {
	ID    int64
	Name  string
	Price float64
	Stock int
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("product name is required")
	}
	if p.Price <= 0 {
		return errors.New("product price must be positive")
	}
	if p.Stock < 0 {
		return errors.New("product stock must be >= 0")
	}
	return nil
}
