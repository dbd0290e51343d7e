package decoder

// tntCache is a ring buffer of taken/not-taken decisions (spec.md §4.4
// "TNT cache"). Capacity is a power of two so cursor arithmetic can mask
// instead of mod; read and write cursors only ever increase and wrap via
// unsigned overflow, matching the reference decoder's cursor convention.
type tntCache struct {
	bits  [tntRingCapacityBits]int8
	read  uint32
	write uint32
}

// reset empties the cache without reallocating its backing array.
func (c *tntCache) reset() {
	c.read = 0
	c.write = 0
}

// count returns the number of unread bits currently queued.
func (c *tntCache) count() uint32 {
	return c.write - c.read
}

// isEmpty reports whether no TNT bit is queued.
func (c *tntCache) isEmpty() bool {
	return c.read == c.write
}

// isNearFull reports whether fewer than tntLowWaterBits of free space
// remain (spec.md §4.4 "Cache-full test"): the dispatch loop consults this
// before decoding another long-TNT packet's worth of bits so the ring never
// actually overflows.
func (c *tntCache) isNearFull() bool {
	free := tntRingCapacityBits - c.count()
	return free < tntLowWaterBits
}

// pushBack appends one TNT bit (1 = taken, 0 = not-taken) to the ring.
// Callers must ensure the ring has room; decodeUntilCachesFilled only ever
// calls this while isNearFull is false.
func (c *tntCache) pushBack(bit int8) {
	c.bits[c.write&(tntRingCapacityBits-1)] = bit
	c.write++
}

// popFront removes and returns the oldest queued TNT bit. ok is false if
// the cache was empty.
func (c *tntCache) popFront() (bit int8, ok bool) {
	if c.isEmpty() {
		return 0, false
	}
	bit = c.bits[c.read&(tntRingCapacityBits-1)]
	c.read++
	return bit, true
}

// indirectCache holds the single pending indirect-branch target produced by
// a TIP packet, and the single pending override target produced by an
// OVF+FUP pair (spec.md §4.4 "Indirect and override slots"). Both slots hold
// at most one value: a TIP packet always resolves the previous indirect
// target before a new one can be queued, and an override always takes
// priority over whatever indirect target is queued when the walker next
// asks for one.
type indirectCache struct {
	nextIndirectTarget uint64
	hasIndirectTarget  bool

	overrideTarget uint64
	hasOverride    bool
}

func (c *indirectCache) reset() {
	c.hasIndirectTarget = false
	c.hasOverride = false
}

// setIndirect queues target as the next indirect-branch destination.
func (c *indirectCache) setIndirect(target uint64) {
	c.nextIndirectTarget = target
	c.hasIndirectTarget = true
}

// setOverride queues target as a trace-slide override. An override always
// supersedes whatever indirect target is currently queued.
func (c *indirectCache) setOverride(target uint64) {
	c.overrideTarget = target
	c.hasOverride = true
}

// query drains the pending target, preferring an override over a queued
// indirect target. ok is false if neither slot holds a value.
func (c *indirectCache) query() (target uint64, override bool, ok bool) {
	if c.hasOverride {
		target = c.overrideTarget
		c.hasOverride = false
		return target, true, true
	}
	if c.hasIndirectTarget {
		target = c.nextIndirectTarget
		c.hasIndirectTarget = false
		return target, false, true
	}
	return 0, false, false
}
