package instrument

import "testing"

func TestAssignIdempotent(t *testing.T) {
	a := NewAllocator([]string{"piano", "guitar", "bass"})

	first, err := a.Assign(1, 10)
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		again, err := a.Assign(1, 10)
		if err != nil {
			t.Fatalf("Assign failed: %v", err)
		}
		if again != first {
			t.Fatalf("expected stable assignment %q, got %q", first, again)
		}
	}
}

func TestAssignDrawsFromPool(t *testing.T) {
	pool := []string{"piano", "guitar"}
	a := NewAllocator(pool)

	inst, err := a.Assign(1, 10)
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if inst != "piano" && inst != "guitar" {
		t.Errorf("assignment %q not in pool", inst)
	}
}

func TestAssignAvoidsTakenInstruments(t *testing.T) {
	a := NewAllocator([]string{"piano", "guitar"})

	first, _ := a.Assign(1, 10)
	second, _ := a.Assign(1, 20)

	if first == second {
		t.Errorf("second user got taken instrument %q with pool slots free", second)
	}
}

func TestAssignFallsBackWhenExhausted(t *testing.T) {
	a := NewAllocator([]string{"piano", "guitar"})

	a.Assign(1, 10)
	a.Assign(1, 20)

	// Third user: no instruments left, must still get one from the pool.
	third, err := a.Assign(1, 30)
	if err != nil {
		t.Fatalf("exhausted pool should not error: %v", err)
	}
	if third != "piano" && third != "guitar" {
		t.Errorf("fallback assignment %q not in pool", third)
	}
}

func TestReleaseFreesInstrument(t *testing.T) {
	a := NewAllocator([]string{"piano"})

	u1, _ := a.Assign(1, 10)
	if u1 != "piano" {
		t.Fatalf("expected piano, got %q", u1)
	}

	// Second user collides on the single instrument.
	u2, _ := a.Assign(1, 20)
	if u2 != "piano" {
		t.Fatalf("expected piano fallback, got %q", u2)
	}

	// First user leaves; second keeps their assignment.
	a.Release(1, 10)
	if got, ok := a.Get(1, 20); !ok || got != "piano" {
		t.Errorf("remaining user lost assignment: %q ok=%v", got, ok)
	}

	// A new user re-evaluates from current assignments and may still
	// land on piano.
	u3, err := a.Assign(1, 30)
	if err != nil {
		t.Fatalf("Assign after release failed: %v", err)
	}
	if u3 != "piano" {
		t.Errorf("single-instrument pool must assign piano, got %q", u3)
	}
}

func TestReleaseUnknownIsNoop(t *testing.T) {
	a := NewAllocator([]string{"piano"})
	a.Release(1, 99)
	a.Release(5, 1)
}

func TestEmptyPool(t *testing.T) {
	a := NewAllocator(nil)
	if _, err := a.Assign(1, 10); err != ErrEmptyPool {
		t.Errorf("expected ErrEmptyPool, got %v", err)
	}
}

func TestRoomsAreIndependent(t *testing.T) {
	a := NewAllocator([]string{"piano"})

	a.Assign(1, 10)
	inst, err := a.Assign(2, 20)
	if err != nil {
		t.Fatalf("Assign in second room failed: %v", err)
	}
	if inst != "piano" {
		t.Errorf("second room should have its own pool, got %q", inst)
	}

	if got := len(a.Assignments(1)); got != 1 {
		t.Errorf("expected 1 assignment in room 1, got %d", got)
	}
}
