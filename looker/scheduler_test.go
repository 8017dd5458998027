package looker

import (
	"sync"
	"testing"
	"time"

	"github.com/gridlook/gridlook/overlay"
)

func waitForDraws(t *testing.T, r *Renderer, want uint64, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.Draws() >= want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d draws (got %d)", want, r.Draws())
}

func TestSchedulerCoalescesBurst(t *testing.T) {
	sched := NewSchedulerWithInterval(discardLogger, 60*time.Millisecond)
	defer sched.Close()

	r := New("s1", testSample("s1"), discardLogger, sched)
	if err := r.Attach(testSurface(100, 100), 100, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}
	waitForDraws(t, r, 1, time.Second)
	base := r.Draws()

	// A synchronous burst of updates lands within one tick.
	for i := 0; i < 20; i++ {
		s := float64(i + 1)
		r.UpdateState(Patch{Scale: &s})
	}
	waitForDraws(t, r, base+1, time.Second)
	time.Sleep(150 * time.Millisecond)
	if got := r.Draws(); got != base+1 {
		t.Fatalf("burst of 20 updates produced %d draws, want 1", got-base)
	}
	if st := r.State(); st.Scale != 20 {
		t.Fatalf("final scale = %v, want last update to win", st.Scale)
	}
}

func TestSchedulerAppliesUpdatesInOrder(t *testing.T) {
	sched := NewSchedulerWithInterval(discardLogger, 20*time.Millisecond)
	defer sched.Close()

	r := New("s1", testSample("s1"), discardLogger, sched)
	if err := r.Attach(testSurface(100, 100), 100, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}

	var mu sync.Mutex
	var seen []float64
	for i := 1; i <= 5; i++ {
		s := float64(i)
		r.Update(func(st *overlay.State) {
			st.Scale = s
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		})
	}
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n >= 5 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range seen {
		if v != float64(i+1) {
			t.Fatalf("updates applied out of order: %v", seen)
		}
	}
}

func TestSchedulerCloseFlushesPendingDraw(t *testing.T) {
	sched := NewSchedulerWithInterval(discardLogger, time.Hour) // tick never fires
	r := New("s1", testSample("s1"), discardLogger, sched)
	if err := r.Attach(testSurface(100, 100), 100, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}
	s := 2.0
	r.UpdateState(Patch{Scale: &s})
	sched.Close()
	if r.Draws() == 0 {
		t.Fatal("close did not flush the pending draw")
	}
	// Updates after close fall back to synchronous application.
	s = 3.0
	r.UpdateState(Patch{Scale: &s})
	if st := r.State(); st.Scale != 3.0 {
		t.Fatalf("post-close update lost: %v", st.Scale)
	}
}
