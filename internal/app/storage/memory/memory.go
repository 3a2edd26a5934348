package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/filmbay/rental-service/internal/app/domain/interaction"
	"github.com/filmbay/rental-service/internal/app/domain/movie"
	"github.com/filmbay/rental-service/internal/app/domain/order"
	"github.com/filmbay/rental-service/internal/app/domain/user"
	"github.com/filmbay/rental-service/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	users        map[int64]user.User
	usersByName  map[string]int64
	usersByEmail map[string]int64
	movies       map[int64]movie.Movie
	orders       map[int64]order.Order
	interactions map[int64]interaction.Interaction
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.MovieStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.InteractionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		users:        make(map[int64]user.User),
		usersByName:  make(map[string]int64),
		usersByEmail: make(map[string]int64),
		movies:       make(map[int64]movie.Movie),
		orders:       make(map[int64]order.Order),
		interactions: make(map[int64]interaction.Interaction),
	}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByName[u.Username]; exists {
		return user.User{}, storage.ErrDuplicate
	}
	if _, exists := s.usersByEmail[u.Email]; exists {
		return user.User{}, storage.ErrDuplicate
	}

	u.ID = s.nextIDLocked()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	s.usersByName[u.Username] = u.ID
	s.usersByEmail[u.Email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[username]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) UpdateUserRole(_ context.Context, id int64, role user.Role) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return u, nil
}

// MovieStore implementation ---------------------------------------------------

func (s *Store) CreateMovie(_ context.Context, m movie.Movie) (movie.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextIDLocked()
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.Images = cloneStrings(m.Images)

	s.movies[m.ID] = m
	return cloneMovie(m), nil
}

func (s *Store) GetMovie(_ context.Context, id int64) (movie.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.movies[id]
	if !ok {
		return movie.Movie{}, storage.ErrNotFound
	}
	return cloneMovie(m), nil
}

func (s *Store) ListMovies(_ context.Context, q movie.ListQuery) ([]movie.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []movie.Movie
	for _, m := range s.movies {
		if q.Title != "" && !strings.Contains(strings.ToLower(m.Title), strings.ToLower(q.Title)) {
			continue
		}
		if q.Availability != nil && m.Availability != *q.Availability {
			continue
		}
		result = append(result, cloneMovie(m))
	}

	sortMovies(result, q.Sort, q.Order)

	if q.Offset > 0 {
		if q.Offset >= len(result) {
			return nil, nil
		}
		result = result[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(result) {
		result = result[:q.Limit]
	}
	return result, nil
}

func (s *Store) UpdateMovie(_ context.Context, m movie.Movie) (movie.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.movies[m.ID]
	if !ok {
		return movie.Movie{}, storage.ErrNotFound
	}

	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()
	m.Images = cloneStrings(m.Images)

	s.movies[m.ID] = m
	return cloneMovie(m), nil
}

func (s *Store) AdjustStock(_ context.Context, id int64, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.movies[id]
	if !ok {
		return storage.ErrNotFound
	}
	if m.Stock+delta < 0 {
		return storage.ErrOutOfStock
	}
	m.Stock += delta
	m.UpdatedAt = time.Now().UTC()
	s.movies[id] = m
	return nil
}

func (s *Store) SetMovieAvailability(_ context.Context, id int64, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.movies[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.Availability = available
	m.UpdatedAt = time.Now().UTC()
	s.movies[id] = m
	return nil
}

func (s *Store) DeleteMovie(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.movies[id]; !ok {
		return storage.ErrNotFound
	}
	for _, o := range s.orders {
		if o.MovieID == id {
			return storage.ErrReferenced
		}
	}
	for _, in := range s.interactions {
		if in.MovieID == id {
			return storage.ErrReferenced
		}
	}
	delete(s.movies, id)
	return nil
}

// OrderStore implementation ---------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, o order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.nextIDLocked()
	s.orders[o.ID] = o
	return o, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, storage.ErrNotFound
	}
	return o, nil
}

func (s *Store) UpdateOrder(_ context.Context, o order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; !ok {
		return order.Order{}, storage.ErrNotFound
	}
	s.orders[o.ID] = o
	return o, nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID int64) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []order.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) ListOverdueRentals(_ context.Context, asOf time.Time) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []order.Order
	for _, o := range s.orders {
		if o.Type != order.TypeRental || o.ReturnedDate != nil || o.ExpectedReturnDate == nil {
			continue
		}
		if o.ExpectedReturnDate.Before(asOf) {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// InteractionStore implementation ---------------------------------------------

func (s *Store) CreateInteraction(_ context.Context, in interaction.Interaction) (interaction.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.movies[in.MovieID]; !ok {
		return interaction.Interaction{}, storage.ErrNotFound
	}

	in.ID = s.nextIDLocked()
	s.interactions[in.ID] = in
	return in, nil
}

func (s *Store) ListMovieInteractions(_ context.Context, movieID int64) ([]interaction.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []interaction.Interaction
	for _, in := range s.interactions {
		if in.MovieID == movieID {
			result = append(result, in)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func sortMovies(movies []movie.Movie, key, direction string) {
	desc := strings.EqualFold(direction, "desc")
	less := func(i, j int) bool {
		a, b := movies[i], movies[j]
		if desc {
			a, b = b, a
		}
		switch key {
		case "title":
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case "stock":
			return a.Stock < b.Stock
		case "rental_price":
			return a.RentalPrice < b.RentalPrice
		case "sale_price":
			return a.SalePrice < b.SalePrice
		default:
			return a.ID < b.ID
		}
	}
	sort.SliceStable(movies, less)
}

func cloneMovie(m movie.Movie) movie.Movie {
	m.Images = cloneStrings(m.Images)
	return m
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
