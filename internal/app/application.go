// Package app wires the rental service's domain services together.
package app

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/filmbay/rental-service/internal/app/services/interactions"
	"github.com/filmbay/rental-service/internal/app/services/movies"
	"github.com/filmbay/rental-service/internal/app/services/orders"
	"github.com/filmbay/rental-service/internal/app/services/users"
	"github.com/filmbay/rental-service/internal/app/storage"
	"github.com/filmbay/rental-service/internal/app/storage/memory"
	"github.com/filmbay/rental-service/internal/app/system"
	"github.com/filmbay/rental-service/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users        storage.UserStore
	Movies       storage.MovieStore
	Orders       storage.OrderStore
	Interactions storage.InteractionStore
}

// Option customises application construction.
type Option func(*options)

type options struct {
	movieCache      movies.Cache
	adminAllowlist  []string
	sweeperSchedule string
}

// WithMovieCache attaches a read-through cache to the movie service.
func WithMovieCache(cache movies.Cache) Option {
	return func(o *options) { o.movieCache = cache }
}

// WithAdminAllowlist names the usernames elevated to admin at registration.
func WithAdminAllowlist(usernames []string) Option {
	return func(o *options) { o.adminAllowlist = usernames }
}

// WithSweeperSchedule overrides the overdue sweeper's cron schedule.
func WithSweeperSchedule(schedule string) Option {
	return func(o *options) { o.sweeperSchedule = schedule }
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager   *system.Manager
	log       *logger.Logger
	startedAt time.Time

	Users        *users.Service
	Movies       *movies.Service
	Orders       *orders.Service
	Interactions *interactions.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, log *logger.Logger, opts ...Option) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Movies == nil {
		stores.Movies = mem
	}
	if stores.Orders == nil {
		stores.Orders = mem
	}
	if stores.Interactions == nil {
		stores.Interactions = mem
	}

	userSvc := users.New(stores.Users, log, users.WithAdminAllowlist(o.adminAllowlist))

	var movieOpts []movies.Option
	if o.movieCache != nil {
		movieOpts = append(movieOpts, movies.WithCache(o.movieCache))
	}
	movieSvc := movies.New(stores.Movies, log, movieOpts...)

	orderSvc := orders.New(stores.Orders, stores.Movies, log)
	interactionSvc := interactions.New(stores.Interactions, log)

	manager := system.NewManager()
	manager.Register(orders.NewSweeper(orderSvc, log, o.sweeperSchedule))

	return &Application{
		manager:      manager,
		log:          log,
		Users:        userSvc,
		Movies:       movieSvc,
		Orders:       orderSvc,
		Interactions: interactionSvc,
	}, nil
}

// Start launches the managed background services.
func (a *Application) Start(ctx context.Context) error {
	a.startedAt = time.Now().UTC()
	return a.manager.StartAll(ctx)
}

// Stop shuts the managed services down.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.StopAll(ctx)
}

// HealthSnapshot is the body of the system health endpoint.
type HealthSnapshot struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	MemoryUsedPct float64 `json:"memory_used_percent"`
	Timestamp     string  `json:"timestamp"`
}

// Health reports liveness plus a host memory snapshot.
func (a *Application) Health(ctx context.Context) HealthSnapshot {
	snap := HealthSnapshot{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if !a.startedAt.IsZero() {
		snap.UptimeSeconds = time.Since(a.startedAt).Seconds()
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryUsedPct = vm.UsedPercent
	}
	return snap
}
