package monitoring

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// UserCounter reports how many users are stored.
type UserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
}

// StatUpdater periodically refreshes the stored-users gauge.
type StatUpdater struct {
	counter  UserCounter
	metrics  *Metrics
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

// NewStatUpdater creates a new StatUpdater.
func NewStatUpdater(counter UserCounter, metrics *Metrics, interval time.Duration) *StatUpdater {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StatUpdater{
		counter:  counter,
		metrics:  metrics,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Run starts the periodic updates and blocks until Stop is called.
func (su *StatUpdater) Run() {
	defer close(su.stopped)
	log.Info().Dur("interval", su.interval).Msg("Starting background stat updater")
	ticker := time.NewTicker(su.interval)
	defer ticker.Stop()

	// Run once immediately on start
	su.refresh()

	for {
		select {
		case <-su.done:
			log.Info().Msg("Stopping background stat updater")
			return
		case <-ticker.C:
			su.refresh()
		}
	}
}

// Stop ends the loop started by Run and waits for it to return.
func (su *StatUpdater) Stop() {
	close(su.done)
	<-su.stopped
}

func (su *StatUpdater) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), su.interval)
	defer cancel()

	n, err := su.counter.CountUsers(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count users")
		return
	}
	su.metrics.SetStoredUsers(n)
}
