package interactions

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/filmbay/rental-service/internal/app/domain/interaction"
	"github.com/filmbay/rental-service/internal/app/storage"
	"github.com/filmbay/rental-service/internal/auth"
	"github.com/filmbay/rental-service/internal/errors"
	"github.com/filmbay/rental-service/pkg/logger"
)

// Service records user reactions to movies.
type Service struct {
	store storage.InteractionStore
	log   *logger.Logger
}

// New constructs an interaction service.
func New(store storage.InteractionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("interactions")
	}
	return &Service{store: store, log: log}
}

// Record stores a reaction from the caller on a movie.
func (s *Service) Record(ctx context.Context, caller auth.Caller, movieID int64, typeValue string) (interaction.Interaction, error) {
	typ, err := interaction.ParseType(typeValue)
	if err != nil {
		return interaction.Interaction{}, errors.BadRequest("invalid type")
	}

	created, err := s.store.CreateInteraction(ctx, interaction.Interaction{
		UserID:  caller.ID,
		MovieID: movieID,
		Type:    typ,
		At:      time.Now().UTC(),
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return interaction.Interaction{}, errors.NotFound("movie not found")
		}
		return interaction.Interaction{}, err
	}

	s.log.WithContext(ctx).Infof("interaction %d recorded (%s on movie %d)", created.ID, typ, movieID)
	return created, nil
}

// ForMovie lists reactions recorded on a movie.
func (s *Service) ForMovie(ctx context.Context, movieID int64) ([]interaction.Interaction, error) {
	return s.store.ListMovieInteractions(ctx, movieID)
}
