package queue

import (
	"math/bits"

	"github.com/google/uuid"
)

// fenwick is a binary indexed tree over slot occupancy (0 or 1) that can
// grow at the tail. Indexes passed in and out are 0-based.
type fenwick struct {
	tree []int // 1-based, tree[0] unused
}

func newFenwick(capacity int) fenwick {
	t := make([]int, 1, capacity+1)
	return fenwick{tree: t}
}

func (f *fenwick) size() int { return len(f.tree) - 1 }

// push appends a slot holding v.
func (f *fenwick) push(v int) {
	n := len(f.tree)
	low := n & -n
	sum := v
	for j := n - 1; j > n-low; j -= j & -j {
		sum += f.tree[j]
	}
	f.tree = append(f.tree, sum)
}

func (f *fenwick) add(i, delta int) {
	for j := i + 1; j < len(f.tree); j += j & -j {
		f.tree[j] += delta
	}
}

// prefix returns the sum of slots [0, i].
func (f *fenwick) prefix(i int) int {
	sum := 0
	for j := i + 1; j > 0; j -= j & -j {
		sum += f.tree[j]
	}
	return sum
}

// find returns the smallest index whose prefix sum reaches k, or size() if
// the total is below k.
func (f *fenwick) find(k int) int {
	n := f.size()
	if n == 0 || k <= 0 {
		return n
	}
	pos := 0
	for step := 1 << (bits.Len(uint(n)) - 1); step > 0; step >>= 1 {
		if next := pos + step; next <= n && f.tree[next] < k {
			pos = next
			k -= f.tree[next]
		}
	}
	return pos
}

// compactAfter is the minimum slot count before removed slots are reclaimed.
const compactAfter = 64

// order keeps a doctor's waiting entries in arrival order with O(log n)
// rank and head queries. Removed entries leave a hole that the tree skips,
// so removing from the middle never shifts other entries.
type order struct {
	slots []*Entry
	index map[uuid.UUID]int
	tree  fenwick
	live  int
}

func newOrder() *order {
	return &order{
		index: make(map[uuid.UUID]int),
		tree:  newFenwick(16),
	}
}

func (o *order) len() int { return o.live }

func (o *order) push(e *Entry) {
	o.index[e.ID] = len(o.slots)
	o.slots = append(o.slots, e)
	o.tree.push(1)
	o.live++
}

func (o *order) remove(id uuid.UUID) (*Entry, bool) {
	i, ok := o.index[id]
	if !ok {
		return nil, false
	}
	e := o.slots[i]
	o.slots[i] = nil
	delete(o.index, id)
	o.tree.add(i, -1)
	o.live--

	if len(o.slots) >= compactAfter && o.live*2 < len(o.slots) {
		o.compact()
	}
	return e, true
}

// position returns the 1-based rank of the entry among waiting entries.
func (o *order) position(id uuid.UUID) (int, bool) {
	i, ok := o.index[id]
	if !ok {
		return 0, false
	}
	return o.tree.prefix(i), true
}

// at returns the k-th waiting entry, 1-based.
func (o *order) at(k int) *Entry {
	if k < 1 || k > o.live {
		return nil
	}
	i := o.tree.find(k)
	if i >= len(o.slots) {
		return nil
	}
	return o.slots[i]
}

func (o *order) head() *Entry { return o.at(1) }

func (o *order) get(id uuid.UUID) (*Entry, bool) {
	i, ok := o.index[id]
	if !ok {
		return nil, false
	}
	return o.slots[i], true
}

// entries returns the waiting entries in order.
func (o *order) entries() []*Entry {
	out := make([]*Entry, 0, o.live)
	for _, e := range o.slots {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (o *order) compact() {
	live := o.entries()
	o.slots = make([]*Entry, 0, max(len(live)*2, 16))
	o.index = make(map[uuid.UUID]int, len(live))
	o.tree = newFenwick(cap(o.slots))
	o.live = 0
	for _, e := range live {
		o.push(e)
	}
}
