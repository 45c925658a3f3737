package bandwidth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// drain empties the initial one-second burst so timing assertions start from
// an empty bucket.
func drain(t *testing.T, b *Bucket) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.Acquire(ctx, int(b.Rate())); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestNewClampsRate(t *testing.T) {
	cases := map[int64]int64{0: 1, -5: 1, 1: 1, 4096: 4096}
	for in, want := range cases {
		if got := New(in).Rate(); got != want {
			t.Errorf("New(%d).Rate() = %d, want %d", in, got, want)
		}
	}
}

func TestAcquireFullBucketIsImmediate(t *testing.T) {
	b := New(1 << 20)
	start := time.Now()
	if err := b.Acquire(context.Background(), 1<<20); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("full-bucket acquire took %v, want immediate", elapsed)
	}
}

func TestAcquireWaitsForRefill(t *testing.T) {
	b := New(100_000)
	drain(t, b)

	start := time.Now()
	if err := b.Acquire(context.Background(), 50_000); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)
	if elapsed < 350*time.Millisecond {
		t.Errorf("50k bytes at 100k/s took %v, want ~500ms", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("50k bytes at 100k/s took %v, way over target", elapsed)
	}
}

func TestAvailableNeverExceedsCap(t *testing.T) {
	b := New(1000)
	time.Sleep(150 * time.Millisecond)
	if got := b.Available(); got > 1000 {
		t.Errorf("Available() = %d, exceeds cap 1000", got)
	}
}

func TestAcquireContextCancel(t *testing.T) {
	b := New(100)
	drain(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.Acquire(ctx, 1_000_000)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("cancelled acquire returned after %v, want prompt", elapsed)
	}
}

func TestConcurrentAcquireSharesCap(t *testing.T) {
	b := New(50_000)
	drain(t, b)

	// Two consumers drawing 25k each against a 50k/s cap: the pair must
	// take about one second combined, not finish in half that.
	start := time.Now()
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				if err := b.Acquire(context.Background(), 5_000); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	if elapsed < 700*time.Millisecond {
		t.Errorf("combined 50k at 50k/s took %v, cap not shared", elapsed)
	}
	if elapsed > 3*time.Second {
		t.Errorf("combined 50k at 50k/s took %v, a waiter starved", elapsed)
	}
}
