package movies

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/filmbay/rental-service/internal/app/domain/movie"
	"github.com/filmbay/rental-service/internal/app/storage"
	"github.com/filmbay/rental-service/internal/auth"
	"github.com/filmbay/rental-service/internal/errors"
	"github.com/filmbay/rental-service/pkg/logger"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// Cache is an optional read-through cache for movie lookups.
type Cache interface {
	GetMovie(ctx context.Context, id int64) (movie.Movie, bool)
	SetMovie(ctx context.Context, m movie.Movie)
	InvalidateMovie(ctx context.Context, id int64)
}

// Service manages the movie catalog.
type Service struct {
	store storage.MovieStore
	log   *logger.Logger
	cache Cache
}

// Option customises service construction.
type Option func(*Service)

// WithCache attaches a read-through cache.
func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// New constructs a movie service.
func New(store storage.MovieStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("movies")
	}
	s := &Service{store: store, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a movie to the catalog. Admin only.
func (s *Service) Create(ctx context.Context, caller auth.Caller, m movie.Movie) (movie.Movie, error) {
	if !caller.IsAdmin() {
		return movie.Movie{}, errors.Forbidden("admin role required")
	}
	if strings.TrimSpace(m.Title) == "" {
		return movie.Movie{}, errors.BadRequest("title is required")
	}
	if m.RentalPrice < 0 || m.SalePrice < 0 {
		return movie.Movie{}, errors.BadRequest("prices must not be negative")
	}
	if m.Stock < 0 {
		return movie.Movie{}, errors.BadRequest("stock must not be negative")
	}

	created, err := s.store.CreateMovie(ctx, m)
	if err != nil {
		return movie.Movie{}, err
	}
	s.log.WithContext(ctx).Infof("movie %d created", created.ID)
	return created, nil
}

// Get returns a single movie. Public.
func (s *Service) Get(ctx context.Context, id int64) (movie.Movie, error) {
	if s.cache != nil {
		if m, ok := s.cache.GetMovie(ctx, id); ok {
			return m, nil
		}
	}

	m, err := s.store.GetMovie(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return movie.Movie{}, errors.NotFound("movie not found")
		}
		return movie.Movie{}, err
	}

	if s.cache != nil {
		s.cache.SetMovie(ctx, m)
	}
	return m, nil
}

// List returns catalog entries. Callers without the admin role only ever see
// available movies, whatever filter they ask for.
func (s *Service) List(ctx context.Context, caller auth.Caller, q movie.ListQuery) ([]movie.Movie, error) {
	if _, ok := movie.SortKeys[q.Sort]; !ok {
		q.Sort = "title"
	}
	if !strings.EqualFold(q.Order, "desc") {
		q.Order = "asc"
	}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if !caller.IsAdmin() {
		available := true
		q.Availability = &available
	}

	return s.store.ListMovies(ctx, q)
}

// UpdateField patches a single whitelisted field. Admin only. The field name
// is validated against the whitelist and the value coerced to the column
// type, so nothing caller-controlled reaches the SQL text.
func (s *Service) UpdateField(ctx context.Context, caller auth.Caller, id int64, field, value string) (movie.Movie, error) {
	if !caller.IsAdmin() {
		return movie.Movie{}, errors.Forbidden("admin role required")
	}
	if _, ok := movie.UpdatableFields[field]; !ok {
		return movie.Movie{}, errors.BadRequest("field is not updatable")
	}

	m, err := s.store.GetMovie(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return movie.Movie{}, errors.NotFound("movie not found")
		}
		return movie.Movie{}, err
	}

	if err := applyField(&m, field, value); err != nil {
		return movie.Movie{}, err
	}

	updated, err := s.store.UpdateMovie(ctx, m)
	if err != nil {
		return movie.Movie{}, err
	}
	if s.cache != nil {
		s.cache.InvalidateMovie(ctx, id)
	}
	s.log.WithContext(ctx).Infof("movie %d field %s updated", id, field)
	return updated, nil
}

// Delete removes a movie. Admin only. A movie referenced by orders or
// interactions cannot be deleted; it is flagged unavailable instead and
// softDisabled reports that outcome.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, id int64) (softDisabled bool, err error) {
	if !caller.IsAdmin() {
		return false, errors.Forbidden("admin role required")
	}

	err = s.store.DeleteMovie(ctx, id)
	switch {
	case err == nil:
		if s.cache != nil {
			s.cache.InvalidateMovie(ctx, id)
		}
		s.log.WithContext(ctx).Infof("movie %d deleted", id)
		return false, nil

	case stderrors.Is(err, storage.ErrNotFound):
		return false, errors.NotFound("movie not found")

	case stderrors.Is(err, storage.ErrReferenced):
		if updErr := s.store.SetMovieAvailability(ctx, id, false); updErr != nil {
			return false, updErr
		}
		if s.cache != nil {
			s.cache.InvalidateMovie(ctx, id)
		}
		s.log.WithContext(ctx).Warnf("movie %d is referenced; set unavailable instead of deleting", id)
		return true, nil

	default:
		return false, err
	}
}

func applyField(m *movie.Movie, field, value string) error {
	switch field {
	case "title":
		if strings.TrimSpace(value) == "" {
			return errors.BadRequest("title must not be empty")
		}
		m.Title = value
	case "description":
		m.Description = value
	case "stock":
		stock, err := strconv.Atoi(value)
		if err != nil || stock < 0 {
			return errors.BadRequest("stock must be a non-negative integer")
		}
		m.Stock = stock
	case "rental_price":
		price, err := strconv.ParseFloat(value, 64)
		if err != nil || price < 0 {
			return errors.BadRequest("rental_price must be a non-negative number")
		}
		m.RentalPrice = price
	case "sale_price":
		price, err := strconv.ParseFloat(value, 64)
		if err != nil || price < 0 {
			return errors.BadRequest("sale_price must be a non-negative number")
		}
		m.SalePrice = price
	case "availability":
		avail, err := strconv.ParseBool(value)
		if err != nil {
			return errors.BadRequest("availability must be a boolean")
		}
		m.Availability = avail
	}
	return nil
}
