package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// SweeperConfig holds configuration for the pending-sync sweeper.
type SweeperConfig struct {
	// PollInterval is how often to look for pending transactions (default: 1m).
	PollInterval time.Duration
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{PollInterval: time.Minute}
}

// Sweeper periodically exports transactions still pending, as a backstop
// for lost AMQP messages.
type Sweeper struct {
	worker *LedgerWorker
	config SweeperConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(w *LedgerWorker, config SweeperConfig) *Sweeper {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSweeperConfig().PollInterval
	}
	return &Sweeper{worker: w, config: config}
}

// Start begins the polling loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.runLoop(ctx, s.stopCh, s.doneCh)

	slog.InfoContext(ctx, "Sync sweeper started", "poll_interval", s.config.PollInterval)
	return nil
}

// Stop signals the loop and waits for the batch in progress to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync sweeper stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.worker.ProcessPending(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Pending sync sweep failed", "error", err)
				continue
			}
			if res.Total > 0 {
				slog.InfoContext(ctx, "Pending sync sweep finished",
					"total", res.Total,
					"synced", res.Synced,
					"errors", res.Failed)
			}
		}
	}
}
