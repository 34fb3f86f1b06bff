package order

import (
	"context"
	"sync"
	"time"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/events"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// SweepStore is the slice of order storage the sweeper needs. It is an
// interface so the sweep loop can be exercised without a database.
type SweepStore interface {
	FetchExpired(ctx context.Context, now time.Time) ([]string, error)
	CloseExpired(ctx context.Context, ids []string, now time.Time) (int64, error)
}

// Store adapts the package's db functions to SweepStore.
type Store struct {
	DB *sqlx.DB
}

func (s Store) FetchExpired(ctx context.Context, now time.Time) ([]string, error) {
	return FetchExpired(ctx, s.DB, now)
}

func (s Store) CloseExpired(ctx context.Context, ids []string, now time.Time) (int64, error) {
	return CloseExpired(ctx, s.DB, ids, now)
}

// Sweeper periodically force-closes pending orders whose payment deadline
// elapsed. It is constructed and started by the hosting process; nothing
// starts one implicitly.
type Sweeper struct {
	log      logrus.FieldLogger
	store    SweepStore
	pub      *events.Publisher
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	// sweepMu serializes sweeps so the ticker loop and ManualCheck never
	// run a fetch/close pair concurrently.
	sweepMu sync.Mutex
}

func NewSweeper(log logrus.FieldLogger, store SweepStore, pub *events.Publisher, interval time.Duration) *Sweeper {
	return &Sweeper{
		log:      log,
		store:    store,
		pub:      pub,
		interval: interval,
	}
}

// Start runs one sweep immediately and then sweeps on every interval tick.
// Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stop, s.done)
}

// Stop prevents future ticks and waits for the loop to exit. An in-flight
// sweep is allowed to finish; its backend calls are not cancelled. Idempotent.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stop)
	<-s.done
	s.running = false
}

// ManualCheck performs exactly one sweep synchronously, bypassing the
// schedule. It returns the number of orders closed for testability.
func (s *Sweeper) ManualCheck(ctx context.Context) (int64, error) {
	return s.sweep(ctx)
}

func (s *Sweeper) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if _, err := s.sweep(context.Background()); err != nil {
		s.log.WithField("message", err).Error("order sweep failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := s.sweep(context.Background()); err != nil {
				s.log.WithField("message", err).Error("order sweep failed")
			}
		}
	}
}

// sweep captures now once, fetches the expired pending order ids, and closes
// exactly that id set in one batched, status-guarded update. Errors abort the
// sweep; the next tick retries whatever still matches.
func (s *Sweeper) sweep(ctx context.Context) (int64, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	now := time.Now().UTC()

	ids, err := s.store.FetchExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		return 0, nil
	}

	n, err := s.store.CloseExpired(ctx, ids, now)
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"matched": len(ids),
		"closed":  n,
	}).Info("closed timed out orders")

	if n > 0 {
		if err := s.pub.PublishOrderTimedOut(ctx, events.OrderTimedOut{OrderIDs: ids}); err != nil {
			s.log.WithField("message", err).Error("publishing timed out orders")
		}
	}

	return n, nil
}
