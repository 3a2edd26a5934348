package order

import (
	"fmt"
	"math"
	"time"
)

// Type distinguishes rentals from purchases.
type Type string

const (
	TypeRental   Type = "rental"
	TypePurchase Type = "purchase"
)

// Rental policy. The penalty accrues per started day past the expected
// return date, as a fraction of the price paid.
const (
	RentalPeriodDays       = 7
	DelayPenaltyRatePerDay = 0.10
)

// ParseType validates a raw order type value.
func ParseType(value string) (Type, error) {
	switch Type(value) {
	case TypeRental:
		return TypeRental, nil
	case TypePurchase:
		return TypePurchase, nil
	}
	return "", fmt.Errorf("invalid order type %q", value)
}

// Order records a rental or purchase of a movie.
type Order struct {
	ID                 int64      `json:"id"`
	UserID             int64      `json:"user_id"`
	MovieID            int64      `json:"movie_id"`
	Type               Type       `json:"order_type"`
	PricePaid          float64    `json:"price_paid"`
	OrderedAt          time.Time  `json:"order_datetime"`
	ExpectedReturnDate *time.Time `json:"expected_return_date,omitempty"`
	ReturnedDate       *time.Time `json:"returned_date,omitempty"`
	DelayPenaltyPaid   float64    `json:"delay_penalty_paid"`
}

// DelayPenalty computes the late-return penalty for a rental returned on the
// given date. Returns zero when the order has no expected return date or the
// return is on time.
func (o Order) DelayPenalty(returned time.Time) float64 {
	if o.ExpectedReturnDate == nil {
		return 0
	}
	late := returned.Sub(*o.ExpectedReturnDate)
	if late <= 0 {
		return 0
	}
	days := int(math.Ceil(late.Hours() / 24))
	penalty := o.PricePaid * DelayPenaltyRatePerDay * float64(days)
	return math.Round(penalty*100) / 100
}
