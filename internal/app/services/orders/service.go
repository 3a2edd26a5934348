package orders

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/filmbay/rental-service/internal/app/domain/order"
	"github.com/filmbay/rental-service/internal/app/metrics"
	"github.com/filmbay/rental-service/internal/app/storage"
	"github.com/filmbay/rental-service/internal/auth"
	"github.com/filmbay/rental-service/internal/errors"
	"github.com/filmbay/rental-service/pkg/logger"
)

// Service manages rental and purchase orders.
type Service struct {
	store  storage.OrderStore
	movies storage.MovieStore
	log    *logger.Logger
	now    func() time.Time
}

// New constructs an order service.
func New(store storage.OrderStore, movies storage.MovieStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("orders")
	}
	return &Service{store: store, movies: movies, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Place records a rental or purchase of a movie for the caller. The price is
// always taken from the catalog, never from the request. Rentals carry an
// expected return date and decrement stock.
func (s *Service) Place(ctx context.Context, caller auth.Caller, movieID int64, orderType string) (order.Order, error) {
	typ, err := order.ParseType(orderType)
	if err != nil {
		return order.Order{}, errors.BadRequest(err.Error())
	}

	m, err := s.movies.GetMovie(ctx, movieID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return order.Order{}, errors.NotFound("movie not found")
		}
		return order.Order{}, err
	}
	if !m.Availability || m.Stock <= 0 {
		return order.Order{}, errors.BadRequest("movie is not available")
	}

	now := s.now()
	o := order.Order{
		UserID:    caller.ID,
		MovieID:   movieID,
		Type:      typ,
		OrderedAt: now,
	}

	switch typ {
	case order.TypeRental:
		o.PricePaid = m.RentalPrice
		due := truncateToDate(now.AddDate(0, 0, order.RentalPeriodDays))
		o.ExpectedReturnDate = &due
	case order.TypePurchase:
		o.PricePaid = m.SalePrice
	}

	// the conditional decrement is the stock reservation; concurrent orders
	// for the last copy race here and exactly one wins
	if err := s.movies.AdjustStock(ctx, movieID, -1); err != nil {
		switch {
		case stderrors.Is(err, storage.ErrOutOfStock):
			return order.Order{}, errors.BadRequest("movie is not available")
		case stderrors.Is(err, storage.ErrNotFound):
			return order.Order{}, errors.NotFound("movie not found")
		}
		return order.Order{}, err
	}

	created, err := s.store.CreateOrder(ctx, o)
	if err != nil {
		// best effort undo of the stock decrement
		_ = s.movies.AdjustStock(ctx, movieID, +1)
		return order.Order{}, err
	}

	metrics.RecordOrderPlaced(string(typ))
	s.log.WithContext(ctx).Infof("order %d placed (%s of movie %d)", created.ID, typ, movieID)
	return created, nil
}

// Return records the return of a rented movie, restores stock and applies
// the late penalty when the return date is past the expected one. The order
// owner or an admin may return it.
func (s *Service) Return(ctx context.Context, caller auth.Caller, orderID int64, returnedDate time.Time) (order.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return order.Order{}, errors.NotFound("order not found")
		}
		return order.Order{}, err
	}

	if o.UserID != caller.ID && !caller.IsAdmin() {
		return order.Order{}, errors.Forbidden("not your order")
	}
	if o.Type != order.TypeRental {
		return order.Order{}, errors.BadRequest("only rentals can be returned")
	}
	if o.ReturnedDate != nil {
		return order.Order{}, errors.BadRequest("order already returned")
	}

	returned := truncateToDate(returnedDate)
	if returned.Before(truncateToDate(o.OrderedAt)) {
		return order.Order{}, errors.BadRequest("returned_date precedes the order date")
	}

	o.ReturnedDate = &returned
	o.DelayPenaltyPaid = o.DelayPenalty(returned)

	updated, err := s.store.UpdateOrder(ctx, o)
	if err != nil {
		return order.Order{}, err
	}

	if err := s.movies.AdjustStock(ctx, o.MovieID, +1); err != nil {
		s.log.WithContext(ctx).WithError(err).Warnf("restore stock for movie %d", o.MovieID)
	}

	if updated.DelayPenaltyPaid > 0 {
		metrics.RecordLateReturn(updated.DelayPenaltyPaid)
		s.log.WithContext(ctx).Infof("order %d returned late, penalty %.2f", orderID, updated.DelayPenaltyPaid)
	} else {
		s.log.WithContext(ctx).Infof("order %d returned", orderID)
	}
	return updated, nil
}

// ListForUser returns the caller's order history. Admins may list any user.
func (s *Service) ListForUser(ctx context.Context, caller auth.Caller, userID int64) ([]order.Order, error) {
	if caller.ID != userID && !caller.IsAdmin() {
		return nil, errors.Forbidden("not your orders")
	}
	return s.store.ListOrdersByUser(ctx, userID)
}

// Overdue returns unreturned rentals whose expected return date has passed.
func (s *Service) Overdue(ctx context.Context, asOf time.Time) ([]order.Order, error) {
	return s.store.ListOverdueRentals(ctx, asOf)
}

func truncateToDate(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
