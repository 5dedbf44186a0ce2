package socket

import "testing"

func TestTableReserveLookupRelease(t *testing.T) {
	tb := NewTable()
	s, err := tb.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	sid := s.SID()
	if sid == 0 {
		t.Fatal("a reserved socket must never get sid 0")
	}
	if got := tb.Lookup(sid); got != s {
		t.Fatal("Lookup did not return the reserved socket")
	}

	tb.Release(s)
	if tb.Lookup(sid) != nil {
		t.Fatal("Lookup must return nil for a released sid")
	}
}

func TestTableSidZeroAlwaysInvalid(t *testing.T) {
	tb := NewTable()
	if tb.Lookup(0) != nil {
		t.Fatal("sid 0 is the command-pipe sentinel and must never resolve")
	}
}

// TestTableGenerationAdvancesOnReuse verifies a stale sid cannot
// alias whatever socket ends up reusing its table slot: once slot 1's
// occupant is released, the slot eventually comes back around through
// Reserve's round-robin scan, and the new sid it produces must differ
// from (and the old sid must no longer resolve to) the old one.
func TestTableGenerationAdvancesOnReuse(t *testing.T) {
	tb := NewTable()
	s1, err := tb.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	sid1 := s1.SID()
	idx1 := sidIndex(sid1)
	tb.Release(s1)

	var sid2 uint32
	for i := 0; i < tableSize; i++ {
		s2, err := tb.Reserve()
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		if sidIndex(s2.SID()) == idx1 {
			sid2 = s2.SID()
			break
		}
	}
	if sid2 == 0 {
		t.Fatal("never observed the freed slot being reused")
	}
	if sid2 == sid1 {
		t.Fatal("reused slot must produce a different sid (generation must advance)")
	}
	if tb.Lookup(sid1) != nil {
		t.Fatal("the stale sid must not resolve once its slot was reused")
	}
}

func TestTableReserveExhaustion(t *testing.T) {
	tb := NewTable()
	// Slot 0 is permanently withheld, so only tableSize-1 are claimable.
	for i := 0; i < tableSize-1; i++ {
		if _, err := tb.Reserve(); err != nil {
			t.Fatalf("Reserve #%d: %v", i, err)
		}
	}
	if _, err := tb.Reserve(); err == nil {
		t.Fatal("Reserve should fail once every claimable slot is taken")
	}
}
