package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents an item in the catalogue.
type Product struct {
	ID           string          `json:"id" db:"id"`
	SKU          string          `json:"sku" db:"sku"`
	Name         string          `json:"name" db:"name"`
	Description  string          `json:"description" db:"description"`
	Category     string          `json:"category" db:"category"`
	Brand        string          `json:"brand" db:"brand"`
	Price        decimal.Decimal `json:"price" db:"price"`
	CountInStock int             `json:"countInStock" db:"count_in_stock"`
	Rating       decimal.Decimal `json:"rating" db:"rating"`
	NumReviews   int             `json:"numReviews" db:"num_reviews"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

// ProductRequest is the admin payload for creating or editing a product.
type ProductRequest struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Category     string           `json:"category"`
	Brand        string           `json:"brand"`
	Price        *decimal.Decimal `json:"price"`
	CountInStock *int             `json:"countInStock"`
}

// StockAdjustment reports the outcome of a stock decrement.
// Oversold is the part of the requested amount that could not be covered by stock.
type StockAdjustment struct {
	ProductID string `json:"productId"`
	Before    int    `json:"before"`
	After     int    `json:"after"`
	Oversold  int    `json:"oversold"`
}
