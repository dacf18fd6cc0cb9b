package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/xavierca1/sherpa/internal/logging"
	"github.com/xavierca1/sherpa/internal/usecase"
)

// PassFunc runs one pass. The ingest, draft, dispatch and discover use cases
// all fit this shape.
type PassFunc func(ctx context.Context) (usecase.PassReport, error)

// Observer is notified after every pass, e.g. to export metrics.
type Observer interface {
	ObservePass(report usecase.PassReport, err error)
}

// PassWorker runs a pass immediately and then on every tick until ctx is done.
type PassWorker struct {
	name         string
	run          PassFunc
	tickInterval time.Duration
	observer     Observer
	logger       *slog.Logger
}

func NewPassWorker(name string, interval time.Duration, run PassFunc, observer Observer) *PassWorker {
	return &PassWorker{
		name:         name,
		run:          run,
		tickInterval: interval,
		observer:     observer,
		logger:       logging.New("worker").With("pass", name),
	}
}

func (w *PassWorker) Start(ctx context.Context) {
	if w.tickInterval <= 0 {
		w.logger.Info("pass worker disabled")
		return
	}
	w.logger.Info("pass worker started", "interval", w.tickInterval)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("pass worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *PassWorker) runOnce(ctx context.Context) {
	report, err := w.run(ctx)
	if w.observer != nil {
		w.observer.ObservePass(report, err)
	}
	if err != nil && ctx.Err() == nil {
		w.logger.Error("pass failed", logging.Err(err))
		return
	}
	if len(report.Failures) > 0 {
		w.logger.Warn("pass finished with failures", "failed", len(report.Failures), "duration", report.Duration)
	}
}
