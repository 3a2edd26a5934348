package app

import (
	"context"
	"testing"

	"github.com/filmbay/rental-service/pkg/logger"
)

func TestApplicationLifecycle(t *testing.T) {
	ctx := context.Background()
	log := logger.NewDefault("app-test")

	application, err := New(Stores{}, log, WithSweeperSchedule("@every 1h"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if application.Users == nil || application.Movies == nil || application.Orders == nil || application.Interactions == nil {
		t.Fatal("all services should be wired")
	}

	if err := application.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		if err := application.Stop(ctx); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	}()

	snap := application.Health(ctx)
	if snap.Status != "healthy" {
		t.Errorf("expected healthy, got %q", snap.Status)
	}
	if snap.Timestamp == "" {
		t.Error("snapshot should carry a timestamp")
	}
}
