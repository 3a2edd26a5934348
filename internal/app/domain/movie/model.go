package movie

import "time"

// Movie is a catalog entry available for rental or purchase.
type Movie struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Stock        int       `json:"stock"`
	RentalPrice  float64   `json:"rental_price"`
	SalePrice    float64   `json:"sale_price"`
	Availability bool      `json:"availability"`
	Images       []string  `json:"images,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpdatableFields is the whitelist for single-field patches. Values arriving
// as strings are coerced to the column type before they reach the store.
var UpdatableFields = map[string]struct{}{
	"title":        {},
	"description":  {},
	"stock":        {},
	"rental_price": {},
	"sale_price":   {},
	"availability": {},
}

// ListQuery captures catalog listing parameters.
type ListQuery struct {
	Sort         string
	Order        string
	Limit        int
	Offset       int
	Title        string
	Availability *bool
}

// SortKeys is the whitelist of sortable columns.
var SortKeys = map[string]struct{}{
	"id":           {},
	"title":        {},
	"stock":        {},
	"rental_price": {},
	"sale_price":   {},
}
