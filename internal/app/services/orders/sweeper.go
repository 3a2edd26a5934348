package orders

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/filmbay/rental-service/internal/app/metrics"
	"github.com/filmbay/rental-service/pkg/logger"
)

// Sweeper periodically scans for overdue rentals and reports them. It only
// observes: penalties are charged when the movie actually comes back.
type Sweeper struct {
	orders   *Service
	log      *logger.Logger
	schedule string
	cron     *cron.Cron
}

// NewSweeper creates a sweeper on the given cron schedule. An empty schedule
// defaults to hourly.
func NewSweeper(orders *Service, log *logger.Logger, schedule string) *Sweeper {
	if log == nil {
		log = logger.NewDefault("order-sweeper")
	}
	if schedule == "" {
		schedule = "@hourly"
	}
	return &Sweeper{orders: orders, log: log, schedule: schedule}
}

// Name implements system.Service.
func (s *Sweeper) Name() string { return "order-sweeper" }

// Start implements system.Service.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() { s.sweep(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	// run once at startup so a restart does not hide existing overdue rentals
	go s.sweep(ctx)
	return nil
}

// Stop implements system.Service.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	overdue, err := s.orders.Overdue(ctx, time.Now().UTC())
	if err != nil {
		s.log.WithError(err).Warn("overdue sweep failed")
		return
	}

	metrics.SetOverdueRentals(len(overdue))
	for _, o := range overdue {
		s.log.WithFields(map[string]interface{}{
			"order_id": o.ID,
			"user_id":  o.UserID,
			"movie_id": o.MovieID,
			"due":      o.ExpectedReturnDate.Format("2006-01-02"),
		}).Warn("rental overdue")
	}
}
