package worker

import (
	"context"
	"log/slog"

	"campusdrive/internal/app/service"

	"github.com/robfig/cron/v3"
)

// ExpiryWorker periodically finishes overdue attempts. It is housekeeping
// only: the lazy check on every read already guarantees an overdue attempt is
// never served as in-progress.
type ExpiryWorker struct {
	attempts  *service.AttemptService
	schedule  string
	batchSize int
	cron      *cron.Cron
}

func NewExpiryWorker(attempts *service.AttemptService, schedule string) *ExpiryWorker {
	return &ExpiryWorker{
		attempts:  attempts,
		schedule:  schedule,
		batchSize: 100,
		cron:      cron.New(),
	}
}

func (w *ExpiryWorker) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		expired, err := w.attempts.ExpireOverdue(ctx, w.batchSize)
		if err != nil {
			slog.Error("expiry sweep failed", "err", err)
			return
		}
		if expired > 0 {
			slog.Info("expiry sweep finished attempts", "count", expired)
		}
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	slog.Info("expiry worker started", "schedule", w.schedule)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (w *ExpiryWorker) Stop() {
	<-w.cron.Stop().Done()
	slog.Info("expiry worker stopped")
}
