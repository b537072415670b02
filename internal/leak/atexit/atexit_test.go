package atexit

import (
	"sync"
	"testing"
)

// TestRun_LIFOOrder verifies hooks run in reverse registration order.
func TestRun_LIFOOrder(t *testing.T) {
	Reset()

	var order []int
	Register(func() { order = append(order, 1) })
	Register(func() { order = append(order, 2) })
	Register(func() { order = append(order, 3) })

	Run()

	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("ran %d hooks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

// TestRun_ExactlyOnce verifies a second Run is a no-op.
func TestRun_ExactlyOnce(t *testing.T) {
	Reset()

	calls := 0
	Register(func() { calls++ })

	Run()
	Run()

	if calls != 1 {
		t.Errorf("hook ran %d times, want 1", calls)
	}
}

// TestRegister_AfterRun verifies late registration is a silent no-op.
func TestRegister_AfterRun(t *testing.T) {
	Reset()

	Run()

	called := false
	Register(func() { called = true })

	if Registered() != 0 {
		t.Errorf("Registered() = %d after termination, want 0", Registered())
	}

	Run()
	if called {
		t.Error("hook registered after Run must not execute")
	}
}

// TestRegistered counts pending hooks.
func TestRegistered(t *testing.T) {
	Reset()

	if Registered() != 0 {
		t.Fatalf("Registered() = %d on fresh state, want 0", Registered())
	}
	Register(func() {})
	Register(func() {})
	if Registered() != 2 {
		t.Errorf("Registered() = %d, want 2", Registered())
	}
	Run()
	if Registered() != 0 {
		t.Errorf("Registered() = %d after Run, want 0", Registered())
	}
}

// TestRun_ConcurrentDrain verifies exactly one concurrent caller drains the
// hooks.
func TestRun_ConcurrentDrain(t *testing.T) {
	Reset()

	calls := 0
	Register(func() { calls++ })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Run()
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("hook ran %d times under concurrent Run, want 1", calls)
	}
}
