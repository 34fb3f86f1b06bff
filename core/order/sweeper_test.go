package order

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

type stubStore struct {
	mu       sync.Mutex
	expired  []string
	closed   [][]string
	fetchErr error
	closeErr error
	fetches  int
}

func (s *stubStore) FetchExpired(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return append([]string(nil), s.expired...), nil
}

func (s *stubStore) CloseExpired(ctx context.Context, ids []string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return 0, s.closeErr
	}
	s.closed = append(s.closed, ids)
	s.expired = nil
	return int64(len(ids)), nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestManualCheckClosesExpired(t *testing.T) {
	store := &stubStore{expired: []string{"o1", "o2"}}
	sw := NewSweeper(testLogger(), store, nil, time.Hour)

	n, err := sw.ManualCheck(context.Background())
	if err != nil {
		t.Fatalf("manual check: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 closed orders, got %d", n)
	}

	want := [][]string{{"o1", "o2"}}
	if diff := cmp.Diff(want, store.closed); diff != "" {
		t.Fatalf("closed id sets mismatch (-want +got):\n%s", diff)
	}
}

func TestManualCheckIsIdempotent(t *testing.T) {
	store := &stubStore{expired: []string{"o1"}}
	sw := NewSweeper(testLogger(), store, nil, time.Hour)

	if n, _ := sw.ManualCheck(context.Background()); n != 1 {
		t.Fatalf("first check should close 1 order, got %d", n)
	}

	// Nothing became eligible in between, so the second sweep is a no-op
	// and must not issue another update.
	n, err := sw.ManualCheck(context.Background())
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if n != 0 {
		t.Fatalf("second check should close 0 orders, got %d", n)
	}
	if len(store.closed) != 1 {
		t.Fatalf("expected exactly 1 update issued, got %d", len(store.closed))
	}
}

func TestSweepAbortsOnFetchError(t *testing.T) {
	store := &stubStore{expired: []string{"o1"}, fetchErr: errors.New("backend down")}
	sw := NewSweeper(testLogger(), store, nil, time.Hour)

	if _, err := sw.ManualCheck(context.Background()); err == nil {
		t.Fatal("expected the fetch error to surface")
	}
	if len(store.closed) != 0 {
		t.Fatal("no update may be issued when the fetch fails")
	}
}

func TestSweepAbortsOnCloseError(t *testing.T) {
	store := &stubStore{expired: []string{"o1"}, closeErr: errors.New("backend down")}
	sw := NewSweeper(testLogger(), store, nil, time.Hour)

	if _, err := sw.ManualCheck(context.Background()); err == nil {
		t.Fatal("expected the close error to surface")
	}
}

func TestStartSweepsImmediatelyAndIsIdempotent(t *testing.T) {
	store := &stubStore{expired: []string{"o1"}}
	sw := NewSweeper(testLogger(), store, nil, time.Hour)

	sw.Start()
	sw.Start() // second start is a no-op
	defer sw.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		store.mu.Lock()
		n := len(store.closed)
		store.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 immediate sweep, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	store.mu.Lock()
	fetches := store.fetches
	store.mu.Unlock()
	if fetches != 1 {
		t.Fatalf("a doubled start must not run a second immediate sweep, got %d fetches", fetches)
	}
}

// blockingStore parks every FetchExpired call until release is closed,
// signalling entry on entered so a test can observe sweeps in flight.
type blockingStore struct {
	entered chan struct{}
	release chan struct{}

	mu      sync.Mutex
	fetches int
}

func (s *blockingStore) FetchExpired(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
	s.entered <- struct{}{}
	<-s.release
	return nil, nil
}

func (s *blockingStore) CloseExpired(ctx context.Context, ids []string, now time.Time) (int64, error) {
	return int64(len(ids)), nil
}

func TestTickerAndManualCheckDoNotOverlap(t *testing.T) {
	store := &blockingStore{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	sw := NewSweeper(testLogger(), store, nil, time.Hour)

	sw.Start()
	defer sw.Stop()

	// The immediate sweep from Start is now parked inside the store.
	<-store.entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := sw.ManualCheck(context.Background()); err != nil {
			t.Errorf("manual check: %v", err)
		}
	}()

	// While the scheduled sweep holds the store, the manual one must wait
	// rather than start a second fetch.
	select {
	case <-store.entered:
		t.Fatal("manual check fetched while a sweep was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(store.release)
	<-store.entered // the manual sweep runs once the first finishes
	<-done

	store.mu.Lock()
	fetches := store.fetches
	store.mu.Unlock()
	if fetches != 2 {
		t.Fatalf("expected 2 serialized fetches, got %d", fetches)
	}
}

func TestStopIsIdempotentAndRestartable(t *testing.T) {
	store := &stubStore{}
	sw := NewSweeper(testLogger(), store, nil, time.Hour)

	sw.Stop() // stopping a never-started sweeper is fine

	sw.Start()
	sw.Stop()
	sw.Stop()

	sw.Start()
	sw.Stop()
}
