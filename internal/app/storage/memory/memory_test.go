package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/filmbay/rental-service/internal/app/domain/interaction"
	"github.com/filmbay/rental-service/internal/app/domain/movie"
	"github.com/filmbay/rental-service/internal/app/domain/order"
	"github.com/filmbay/rental-service/internal/app/domain/user"
	"github.com/filmbay/rental-service/internal/app/storage"
)

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	store := New()

	if _, err := store.CreateUser(ctx, user.User{Username: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if _, err := store.CreateUser(ctx, user.User{Username: "alice", Email: "other@example.com"}); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("duplicate username should return ErrDuplicate, got %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{Username: "bob", Email: "alice@example.com"}); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("duplicate email should return ErrDuplicate, got %v", err)
	}
}

func TestListMoviesFilterSortPage(t *testing.T) {
	ctx := context.Background()
	store := New()

	seed := []movie.Movie{
		{Title: "Alien", Stock: 1, RentalPrice: 3, Availability: true},
		{Title: "Aliens", Stock: 5, RentalPrice: 4, Availability: true},
		{Title: "Blade Runner", Stock: 2, RentalPrice: 5, Availability: false},
	}
	for _, m := range seed {
		if _, err := store.CreateMovie(ctx, m); err != nil {
			t.Fatalf("CreateMovie failed: %v", err)
		}
	}

	t.Run("TitleSubstring", func(t *testing.T) {
		list, err := store.ListMovies(ctx, movie.ListQuery{Title: "alien"})
		if err != nil {
			t.Fatalf("ListMovies failed: %v", err)
		}
		if len(list) != 2 {
			t.Errorf("expected 2 matches, got %d", len(list))
		}
	})

	t.Run("AvailabilityFilter", func(t *testing.T) {
		unavailable := false
		list, err := store.ListMovies(ctx, movie.ListQuery{Availability: &unavailable})
		if err != nil {
			t.Fatalf("ListMovies failed: %v", err)
		}
		if len(list) != 1 || list[0].Title != "Blade Runner" {
			t.Errorf("expected only Blade Runner, got %v", list)
		}
	})

	t.Run("SortStockDesc", func(t *testing.T) {
		list, err := store.ListMovies(ctx, movie.ListQuery{Sort: "stock", Order: "desc"})
		if err != nil {
			t.Fatalf("ListMovies failed: %v", err)
		}
		if list[0].Stock != 5 || list[len(list)-1].Stock != 1 {
			t.Errorf("unexpected stock order: %v", list)
		}
	})

	t.Run("Pagination", func(t *testing.T) {
		list, err := store.ListMovies(ctx, movie.ListQuery{Sort: "title", Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("ListMovies failed: %v", err)
		}
		if len(list) != 1 || list[0].Title != "Aliens" {
			t.Errorf("expected page [Aliens], got %v", list)
		}
	})

	t.Run("OffsetPastEnd", func(t *testing.T) {
		list, err := store.ListMovies(ctx, movie.ListQuery{Offset: 10})
		if err != nil {
			t.Fatalf("ListMovies failed: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("expected empty page, got %v", list)
		}
	})
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()
	store := New()

	m, err := store.CreateMovie(ctx, movie.Movie{Title: "Alien", Stock: 1, Availability: true})
	if err != nil {
		t.Fatalf("CreateMovie failed: %v", err)
	}

	t.Run("Decrement", func(t *testing.T) {
		if err := store.AdjustStock(ctx, m.ID, -1); err != nil {
			t.Fatalf("AdjustStock failed: %v", err)
		}
		got, err := store.GetMovie(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetMovie failed: %v", err)
		}
		if got.Stock != 0 {
			t.Errorf("expected stock 0, got %d", got.Stock)
		}
	})

	t.Run("BelowZero", func(t *testing.T) {
		if err := store.AdjustStock(ctx, m.ID, -1); !errors.Is(err, storage.ErrOutOfStock) {
			t.Errorf("expected ErrOutOfStock, got %v", err)
		}
		got, err := store.GetMovie(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetMovie failed: %v", err)
		}
		if got.Stock != 0 {
			t.Errorf("failed decrement must leave stock at 0, got %d", got.Stock)
		}
	})

	t.Run("Increment", func(t *testing.T) {
		if err := store.AdjustStock(ctx, m.ID, +2); err != nil {
			t.Fatalf("AdjustStock failed: %v", err)
		}
		got, err := store.GetMovie(ctx, m.ID)
		if err != nil {
			t.Fatalf("GetMovie failed: %v", err)
		}
		if got.Stock != 2 {
			t.Errorf("expected stock 2, got %d", got.Stock)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if err := store.AdjustStock(ctx, 999, -1); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteMovieReferenced(t *testing.T) {
	ctx := context.Background()
	store := New()

	m, err := store.CreateMovie(ctx, movie.Movie{Title: "Alien", Availability: true})
	if err != nil {
		t.Fatalf("CreateMovie failed: %v", err)
	}

	t.Run("ByOrder", func(t *testing.T) {
		if _, err := store.CreateOrder(ctx, order.Order{MovieID: m.ID, UserID: 1, Type: order.TypePurchase, OrderedAt: time.Now()}); err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		if err := store.DeleteMovie(ctx, m.ID); !errors.Is(err, storage.ErrReferenced) {
			t.Errorf("expected ErrReferenced, got %v", err)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if err := store.DeleteMovie(ctx, 999); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestInteractionsRequireMovie(t *testing.T) {
	ctx := context.Background()
	store := New()

	if _, err := store.CreateInteraction(ctx, interaction.Interaction{MovieID: 42, UserID: 1, Type: interaction.TypeLike}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOverdueRentals(t *testing.T) {
	ctx := context.Background()
	store := New()

	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	returned := due.AddDate(0, 0, -1)

	seed := []order.Order{
		{UserID: 1, MovieID: 1, Type: order.TypeRental, ExpectedReturnDate: &due},
		{UserID: 1, MovieID: 2, Type: order.TypeRental, ExpectedReturnDate: &due, ReturnedDate: &returned},
		{UserID: 1, MovieID: 3, Type: order.TypePurchase},
	}
	for _, o := range seed {
		if _, err := store.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
	}

	overdue, err := store.ListOverdueRentals(ctx, due.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("ListOverdueRentals failed: %v", err)
	}
	if len(overdue) != 1 || overdue[0].MovieID != 1 {
		t.Errorf("expected only the unreturned rental, got %v", overdue)
	}
}
