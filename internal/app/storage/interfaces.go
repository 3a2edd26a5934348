package storage

import (
	"context"
	"errors"
	"time"

	"github.com/filmbay/rental-service/internal/app/domain/interaction"
	"github.com/filmbay/rental-service/internal/app/domain/movie"
	"github.com/filmbay/rental-service/internal/app/domain/order"
	"github.com/filmbay/rental-service/internal/app/domain/user"
)

// Sentinel errors shared by all store implementations so services can react
// without knowing the backend.
var (
	ErrNotFound   = errors.New("record not found")
	ErrDuplicate  = errors.New("record already exists")
	ErrReferenced = errors.New("record referenced by other resources")
	ErrOutOfStock = errors.New("stock exhausted")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	UpdateUserRole(ctx context.Context, id int64, role user.Role) (user.User, error)
}

// MovieStore persists catalog entries.
type MovieStore interface {
	CreateMovie(ctx context.Context, m movie.Movie) (movie.Movie, error)
	GetMovie(ctx context.Context, id int64) (movie.Movie, error)
	ListMovies(ctx context.Context, q movie.ListQuery) ([]movie.Movie, error)
	UpdateMovie(ctx context.Context, m movie.Movie) (movie.Movie, error)
	// AdjustStock changes a movie's stock by delta in a single atomic step.
	// A decrement that would take stock below zero returns ErrOutOfStock and
	// leaves the row untouched.
	AdjustStock(ctx context.Context, id int64, delta int) error
	// SetMovieAvailability flips only the availability flag, leaving the
	// rest of the row alone.
	SetMovieAvailability(ctx context.Context, id int64, available bool) error
	DeleteMovie(ctx context.Context, id int64) error
}

// OrderStore persists rental and purchase orders.
type OrderStore interface {
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id int64) (order.Order, error)
	UpdateOrder(ctx context.Context, o order.Order) (order.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]order.Order, error)
	ListOverdueRentals(ctx context.Context, asOf time.Time) ([]order.Order, error)
}

// InteractionStore persists movie interactions.
type InteractionStore interface {
	CreateInteraction(ctx context.Context, in interaction.Interaction) (interaction.Interaction, error)
	ListMovieInteractions(ctx context.Context, movieID int64) ([]interaction.Interaction, error)
}
