package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/linkbio/internal/metrics"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

// ClickIncrementer is the one repository call the accumulator needs.
type ClickIncrementer interface {
	IncrementItemClick(ctx context.Context, handle, itemID string, kind model.ItemKind) error
}

var _ ClickIncrementer = (repository.ProfileRepository)(nil)

// ClickAccumulator applies visitor clicks in the background.
//
// RecordClick only validates and enqueues, so a visitor's navigation never
// waits on storage. A fixed set of workers drains the queue and makes
// exactly one increment attempt per event: a failure is logged and counted,
// never retried, so a click can be lost but never counted twice.
//
// LIFECYCLE:
//
//	acc := NewClickAccumulator(repo, 4, 1024, logger)
//	acc.Start()
//	defer acc.Stop() // drains queued events, then returns
type ClickAccumulator struct {
	repo    ClickIncrementer
	workers int
	timeout time.Duration
	logger  *slog.Logger

	queue chan model.ClickEvent

	// mu guards closed and the close of queue against concurrent sends.
	mu     sync.RWMutex
	closed bool

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewClickAccumulator(repo ClickIncrementer, workers, queueSize int, logger *slog.Logger) *ClickAccumulator {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &ClickAccumulator{
		repo:    repo,
		workers: workers,
		timeout: 5 * time.Second,
		logger:  logger,
		queue:   make(chan model.ClickEvent, queueSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (a *ClickAccumulator) Start() {
	a.startOnce.Do(func() {
		a.logger.Info("starting click accumulator",
			slog.Int("workers", a.workers),
			slog.Int("queueSize", cap(a.queue)),
		)
		for i := 0; i < a.workers; i++ {
			a.wg.Add(1)
			go a.worker()
		}
	})
}

// Stop refuses new events, lets the workers drain what is queued and waits
// for them. Calling it twice is a no-op.
func (a *ClickAccumulator) Stop() {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()

		a.wg.Wait()
		a.logger.Info("click accumulator stopped")
	})
}

// RecordClick validates and enqueues one click. It never blocks.
//
// A missing itemID is a no-op: not every rendered item is trackable. An
// invalid kind is the only error. A full queue drops the event.
func (a *ClickAccumulator) RecordClick(handle, itemID, kind string) error {
	if strings.TrimSpace(itemID) == "" {
		return nil
	}
	k, err := model.ParseItemKind(kind)
	if err != nil {
		return err
	}
	h, err := model.NormalizeHandle(handle)
	if err != nil {
		// Cannot match any profile; same outcome as an unknown handle.
		metrics.Clicks.WithLabelValues(metrics.ClickMissed).Inc()
		return nil
	}

	ev := model.ClickEvent{Handle: h, ItemID: itemID, Kind: k}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		metrics.Clicks.WithLabelValues(metrics.ClickDropped).Inc()
		return nil
	}
	select {
	case a.queue <- ev:
		metrics.Clicks.WithLabelValues(metrics.ClickEnqueued).Inc()
		metrics.ClickQueueDepth.Set(float64(len(a.queue)))
	default:
		metrics.Clicks.WithLabelValues(metrics.ClickDropped).Inc()
		a.logger.Warn("click queue full, dropping event",
			slog.String("handle", h),
			slog.String("itemID", itemID),
		)
	}
	return nil
}

func (a *ClickAccumulator) worker() {
	defer a.wg.Done()
	for ev := range a.queue {
		metrics.ClickQueueDepth.Set(float64(len(a.queue)))
		a.apply(ev)
	}
}

func (a *ClickAccumulator) apply(ev model.ClickEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	err := a.repo.IncrementItemClick(ctx, ev.Handle, ev.ItemID, ev.Kind)
	switch {
	case err == nil:
		metrics.Clicks.WithLabelValues(metrics.ClickApplied).Inc()
	case isNotFound(err):
		metrics.Clicks.WithLabelValues(metrics.ClickMissed).Inc()
		a.logger.Debug("click for unknown item",
			slog.String("handle", ev.Handle),
			slog.String("itemID", ev.ItemID),
		)
	default:
		metrics.Clicks.WithLabelValues(metrics.ClickFailed).Inc()
		a.logger.Warn("click increment failed",
			slog.String("handle", ev.Handle),
			slog.String("itemID", ev.ItemID),
			slog.String("error", err.Error()),
		)
	}
}
