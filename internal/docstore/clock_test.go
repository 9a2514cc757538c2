package docstore

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestClock_StrictlyIncreasing(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	readings := []time.Time{
		base,
		base,                              // stalled
		base.Add(-time.Second),            // stepped backwards
		base.Add(300 * time.Microsecond),  // sub-millisecond
		base.Add(10 * time.Millisecond),   // ahead
	}
	i := 0
	c := NewClock(func() time.Time {
		r := readings[i]
		i++
		return r
	})

	var prev time.Time
	for n := range readings {
		got := c.Next()
		if n > 0 && !got.After(prev) {
			t.Fatalf("Next() #%d = %v, not after %v", n, got, prev)
		}
		if got.Nanosecond()%int(time.Millisecond) != 0 {
			t.Errorf("Next() #%d = %v, want millisecond resolution", n, got)
		}
		prev = got
	}

	if want := base.Add(10 * time.Millisecond); !prev.Equal(want) {
		t.Errorf("last Next() = %v, want wall clock %v once it moves ahead", prev, want)
	}
}

func TestClock_CommitOrderMatchesTimestamps(t *testing.T) {
	c := NewClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) })

	var (
		mu        sync.Mutex
		committed []time.Time
		wg        sync.WaitGroup
	)
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.Commit(func(ts time.Time) error {
				// Writers that stamp first are slower to land; without
				// serialization later stamps would overtake them.
				if i%2 == 0 {
					time.Sleep(time.Millisecond)
				}
				mu.Lock()
				committed = append(committed, ts)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("Commit() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if len(committed) != 50 {
		t.Fatalf("got %d commits, want 50", len(committed))
	}
	for i := 1; i < len(committed); i++ {
		if !committed[i].After(committed[i-1]) {
			t.Fatalf("commit #%d stamped %v, not after the previous commit's %v", i, committed[i], committed[i-1])
		}
	}
}

func TestClock_CommitReturnsError(t *testing.T) {
	c := NewClock(nil)
	want := errors.New("write failed")

	if err := c.Commit(func(time.Time) error { return want }); !errors.Is(err, want) {
		t.Fatalf("Commit() error = %v, want %v", err, want)
	}
	// A failed commit must not hold the lock.
	if err := c.Commit(func(time.Time) error { return nil }); err != nil {
		t.Fatalf("Commit() after failure error = %v", err)
	}
}
