package interactions

import (
	"context"
	"testing"

	"github.com/filmbay/rental-service/internal/app/domain/movie"
	"github.com/filmbay/rental-service/internal/app/domain/user"
	"github.com/filmbay/rental-service/internal/app/storage/memory"
	"github.com/filmbay/rental-service/internal/auth"
	"github.com/filmbay/rental-service/internal/errors"
	"github.com/filmbay/rental-service/pkg/logger"
)

func TestRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, logger.NewDefault("interactions-test"))
	caller := auth.Caller{ID: 1, Role: user.RoleCustomer}

	m, err := store.CreateMovie(ctx, movie.Movie{Title: "Alien", Availability: true})
	if err != nil {
		t.Fatalf("CreateMovie failed: %v", err)
	}

	t.Run("Like", func(t *testing.T) {
		in, err := svc.Record(ctx, caller, m.ID, "like")
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if in.ID == 0 {
			t.Error("expected an assigned id")
		}
		if in.UserID != caller.ID {
			t.Errorf("interaction user should come from the caller, got %d", in.UserID)
		}
	})

	t.Run("InvalidType", func(t *testing.T) {
		_, err := svc.Record(ctx, caller, m.ID, "love")
		serviceErr := errors.GetServiceError(err)
		if serviceErr == nil || serviceErr.HTTPStatus != 400 {
			t.Fatalf("expected bad request, got %v", err)
		}
	})

	t.Run("UnknownMovie", func(t *testing.T) {
		_, err := svc.Record(ctx, caller, 999, "like")
		serviceErr := errors.GetServiceError(err)
		if serviceErr == nil || serviceErr.HTTPStatus != 404 {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("ForMovie", func(t *testing.T) {
		list, err := svc.ForMovie(ctx, m.ID)
		if err != nil {
			t.Fatalf("ForMovie failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("expected 1 interaction, got %d", len(list))
		}
	})
}
