package verify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/reputation"
)

var decayedLastSweep = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "fixd_decay_solutions_last_sweep",
	Help: "Solutions decayed by the most recent sweep.",
})

func observeDecay(count int) {
	decayedLastSweep.Set(float64(count))
}

// Sweeper periodically runs the decay sweep and a full reputation refresh.
//
// All public methods are safe for concurrent use. Start is idempotent in the
// sense that a second call on a running sweeper returns an error instead of
// spawning another loop.
type Sweeper struct {
	pipeline   *Pipeline
	reputation *reputation.Engine
	interval   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewSweeper creates a sweeper running every interval.
func NewSweeper(pipeline *Pipeline, rep *reputation.Engine, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		pipeline:   pipeline,
		reputation: rep,
		interval:   interval,
		logger:     logger.Named("sweeper"),
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper is already running")
	}
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	s.logger.Info("decay sweeper started", zap.Duration("interval", s.interval))
	go s.run(s.stopCh, s.done)
	return nil
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("decay sweeper stopped")
}

func (s *Sweeper) run(stopCh, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep runs one decay pass and reputation refresh; failures are logged, not
// fatal to the loop.
func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	decayed, err := s.pipeline.ApplyDecay(ctx)
	if err != nil {
		s.logger.Error("decay sweep failed", zap.Error(err))
		return
	}

	updated, err := s.reputation.UpdateAll(ctx)
	if err != nil {
		s.logger.Error("reputation refresh failed", zap.Error(err))
		return
	}

	s.logger.Info("sweep completed", zap.Int("decayed", decayed), zap.Int("reputations_updated", updated))
}
