package timer

import "testing"

func tick(w *Wheel, n int) (fired []uint64) {
	for i := 0; i < n; i++ {
		for _, m := range w.advanceOneTick() {
			fired = append(fired, m.UserData)
		}
	}
	return fired
}

func TestWheelFiresAtExactTick(t *testing.T) {
	w := New(0, nil)
	w.Add(5, 99)

	if fired := tick(w, 4); len(fired) != 0 {
		t.Fatalf("fired early: %v", fired)
	}
	fired := tick(w, 1)
	if len(fired) != 1 || fired[0] != 99 {
		t.Fatalf("fired = %v, want [99] on the 5th tick", fired)
	}
}

func TestWheelCancelPreventsFire(t *testing.T) {
	w := New(0, nil)
	id := w.Add(3, 7)
	if w.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", w.Pending())
	}
	ud, ok := w.Cancel(id)
	if !ok || ud != 7 {
		t.Fatalf("Cancel = (%d, %v), want (7, true)", ud, ok)
	}
	if fired := tick(w, 10); len(fired) != 0 {
		t.Fatalf("cancelled timer fired: %v", fired)
	}
	if w.Pending() != 0 {
		t.Fatalf("Pending after fire-through = %d, want 0", w.Pending())
	}
}

func TestWheelCancelTwiceFailsSecondTime(t *testing.T) {
	w := New(0, nil)
	id := w.Add(3, 1)
	if _, ok := w.Cancel(id); !ok {
		t.Fatal("first Cancel should succeed")
	}
	if _, ok := w.Cancel(id); ok {
		t.Fatal("second Cancel on the same id should fail")
	}
}

func TestWheelCancelAfterFireFails(t *testing.T) {
	w := New(0, nil)
	id := w.Add(1, 1)
	tick(w, 1)
	if _, ok := w.Cancel(id); ok {
		t.Fatal("Cancel after the node already fired should fail")
	}
}

// TestWheelCascadesAcrossLevels schedules a delay well beyond
// level0's 256-slot span so the node must cascade down from a higher
// level before it can fire, and checks it still fires at the exact
// tick requested.
func TestWheelCascadesAcrossLevels(t *testing.T) {
	w := New(0, nil)
	const delay = 1000 // > level0Size, lands in level1
	w.Add(delay, 55)

	if fired := tick(w, delay-1); len(fired) != 0 {
		t.Fatalf("fired early at tick %d: %v", delay-1, fired)
	}
	fired := tick(w, 1)
	if len(fired) != 1 || fired[0] != 55 {
		t.Fatalf("fired = %v at tick %d, want [55]", fired, delay)
	}
}

// TestWheelGenerationPreventsStaleCancel exercises the arena reuse
// path: once a slot is freed and reallocated, a SessionID holding the
// old generation must not be able to cancel the new occupant.
func TestWheelGenerationPreventsStaleCancel(t *testing.T) {
	w := New(0, nil)
	staleID := w.Add(1, 111)
	tick(w, 1) // fires and frees the slot

	w.Add(100, 222) // very likely reuses the freed slot

	if _, ok := w.Cancel(staleID); ok {
		t.Fatal("stale SessionID from a fired node should not cancel the new occupant")
	}
}

func TestWheelMultipleTimersSameTick(t *testing.T) {
	w := New(0, nil)
	w.Add(2, 1)
	w.Add(2, 2)
	w.Add(2, 3)

	tick(w, 1)
	fired := tick(w, 1)
	if len(fired) != 3 {
		t.Fatalf("fired = %v, want 3 entries", fired)
	}
	seen := map[uint64]bool{}
	for _, ud := range fired {
		seen[ud] = true
	}
	for _, want := range []uint64{1, 2, 3} {
		if !seen[want] {
			t.Fatalf("missing userData %d in %v", want, fired)
		}
	}
}
