package hpack

// dynEntry is one row of the dynamic table.
type dynEntry struct {
	name  string
	value string
}

// size is RFC 7541's per-entry accounting: name + value + 32 bytes of
// overhead.
func (e dynEntry) size() int { return len(e.name) + len(e.value) + 32 }

// DynamicTable is the per-connection dynamic header table: a ring
// indexed by a monotonically increasing insertion counter, with a
// name/value index that must be pruned carefully so that an index
// reference resolved earlier in the same pack/unpack call never
// dangles mid-operation (spec.md §4.7 / §3's Hpack context entity).
type DynamicTable struct {
	softLimit int
	size      int

	ring []dynEntry
	head uint64 // next id to be assigned on Insert
	tail uint64 // oldest id still live; ids < tail are evicted

	// nameIndex/pairIndex map a lookup key to the *largest* (most
	// recent) raw id still holding that key, so probing always finds
	// the freshest match first.
	nameIndex map[string]uint64
	pairIndex map[string]uint64

	evictCount int

	// usedMin bounds how far eviction may prune the index maps during
	// the pack/unpack call currently in progress: the smallest raw id
	// consulted so far this call. Reset via BeginOp.
	usedMin uint64
	inOp    bool
}

// NewDynamicTable returns an empty table capped at softLimit bytes
// (spec.md §6's cluster-adjacent hpack soft limit concept, applied
// here to the header table itself per RFC 7541 §4.2).
func NewDynamicTable(softLimit int) *DynamicTable {
	return &DynamicTable{
		softLimit: softLimit,
		ring:      make([]dynEntry, 16),
		nameIndex: make(map[string]uint64),
		pairIndex: make(map[string]uint64),
	}
}

// BeginOp starts a new pack/unpack operation: it resets usedMin so
// this call's own index lookups determine the eviction floor.
func (d *DynamicTable) BeginOp() {
	d.inOp = true
	d.usedMin = d.head // nothing consulted yet: floor is "no entries live to this op"
}

// EndOp closes the operation, releasing the eviction floor.
func (d *DynamicTable) EndOp() {
	d.inOp = false
}

func (d *DynamicTable) markUsed(id uint64) {
	if d.inOp && id < d.usedMin {
		d.usedMin = id
	}
}

// evictFloor is the oldest raw id eviction is currently allowed to
// evict up to (exclusive): d.head normally, so every entry may go, but
// never past usedMin while an operation is in progress.
func (d *DynamicTable) evictFloor() uint64 {
	if d.inOp && d.usedMin < d.head {
		return d.usedMin
	}
	return d.head
}

// Insert adds a new entry, evicting from the tail until size fits
// within softLimit. Eviction stops at evictFloor, so an id referenced
// earlier in the current call never dangles; until that call ends the
// table may stay above softLimit.
func (d *DynamicTable) Insert(name, value string) {
	e := dynEntry{name: name, value: value}
	if d.head-d.tail >= uint64(len(d.ring)) {
		d.grow()
	}
	d.ring[d.head%uint64(len(d.ring))] = e
	d.size += e.size()
	d.head++

	d.nameIndex[name] = d.head - 1
	d.pairIndex[name+"\x00"+value] = d.head - 1

	for d.size > d.softLimit && d.tail < d.evictFloor() {
		d.evictOne()
	}

	if d.evictCount > 64 && uint64(d.evictCount)*2 > d.head {
		d.compact()
	}
}

func (d *DynamicTable) evictOne() {
	old := d.ring[d.tail%uint64(len(d.ring))]
	d.size -= old.size()
	d.tail++
	d.evictCount++
	// Only drop the index entry if it still points at the id being
	// evicted — a newer insertion of the same name/value may have
	// already overwritten it.
	if id, ok := d.nameIndex[old.name]; ok && id == d.tail-1 {
		delete(d.nameIndex, old.name)
	}
	key := old.name + "\x00" + old.value
	if id, ok := d.pairIndex[key]; ok && id == d.tail-1 {
		delete(d.pairIndex, key)
	}
}

func (d *DynamicTable) grow() {
	newRing := make([]dynEntry, len(d.ring)*2)
	for id := d.tail; id < d.head; id++ {
		newRing[id%uint64(len(newRing))] = d.ring[id%uint64(len(d.ring))]
	}
	d.ring = newRing
}

// compact rewrites the index maps from scratch over the live ids
// tail..head, releasing the maps' accumulated deletions, and resets
// evictCount.
func (d *DynamicTable) compact() {
	d.nameIndex = make(map[string]uint64, d.head-d.tail)
	d.pairIndex = make(map[string]uint64, d.head-d.tail)
	for id := d.tail; id < d.head; id++ {
		e := d.ring[id%uint64(len(d.ring))]
		d.nameIndex[e.name] = id
		d.pairIndex[e.name+"\x00"+e.value] = id
	}
	d.evictCount = 0
}

// dynIndexToID converts a 1-based "most recent = 1" HPACK dynamic
// index into the entry's raw monotonic id.
func (d *DynamicTable) dynIndexToID(idx int) (uint64, bool) {
	if idx < 1 {
		return 0, false
	}
	id := d.head - uint64(idx)
	if id < d.tail || id >= d.head {
		return 0, false
	}
	return id, true
}

// Get returns the entry for a 1-based dynamic index (index 1 = most
// recently inserted), marking it used for this operation's eviction
// floor.
func (d *DynamicTable) Get(idx int) (name, value string, ok bool) {
	id, valid := d.dynIndexToID(idx)
	if !valid {
		return "", "", false
	}
	d.markUsed(id)
	e := d.ring[id%uint64(len(d.ring))]
	return e.name, e.value, true
}

// idToDynIndex is the inverse of dynIndexToID, used to report a hit
// back to the encoder as a 1-based dynamic index.
func (d *DynamicTable) idToDynIndex(id uint64) int {
	return int(d.head - id)
}

// FindName looks for any dynamic entry with the given name, returning
// its 1-based dynamic index.
func (d *DynamicTable) FindName(name string) (int, bool) {
	id, ok := d.nameIndex[name]
	if !ok {
		return 0, false
	}
	d.markUsed(id)
	return d.idToDynIndex(id), true
}

// FindPair looks for an exact name/value match.
func (d *DynamicTable) FindPair(name, value string) (int, bool) {
	id, ok := d.pairIndex[name+"\x00"+value]
	if !ok {
		return 0, false
	}
	d.markUsed(id)
	return d.idToDynIndex(id), true
}

// Len reports the number of live entries.
func (d *DynamicTable) Len() int { return int(d.head - d.tail) }

// Size reports the current total accounted size in bytes.
func (d *DynamicTable) Size() int { return d.size }
