package solver

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewPoolRejectsZeroWorkers(t *testing.T) {
	if _, err := NewPool(0); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestPoolRunsTasks(t *testing.T) {
	pool, err := NewPool(3)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			count.Add(1)
		}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	if count.Load() != 100 {
		t.Errorf("expected 100 tasks, got %d", count.Load())
	}
}

func TestPoolClose(t *testing.T) {
	pool, err := NewPool(2)
	if err != nil {
		t.Fatal(err)
	}
	pool.Close()
	pool.Close()

	if err := pool.Submit(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestDefaultWorkers(t *testing.T) {
	if DefaultWorkers() < 1 {
		t.Error("DefaultWorkers must be at least 1")
	}
}
