package queue

import (
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFenwickMatchesNaivePrefixSums(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	f := newFenwick(0)
	var naive []int

	for range 500 {
		switch {
		case len(naive) == 0 || rng.IntN(3) > 0:
			f.push(1)
			naive = append(naive, 1)
		default:
			i := rng.IntN(len(naive))
			if naive[i] == 1 {
				f.add(i, -1)
				naive[i] = 0
			}
		}

		sum := 0
		for i, v := range naive {
			sum += v
			require.Equal(t, sum, f.prefix(i), "prefix(%d)", i)
		}
		for k := 1; k <= sum; k++ {
			i := f.find(k)
			require.Less(t, i, len(naive))
			assert.Equal(t, 1, naive[i])
			assert.Equal(t, k, f.prefix(i))
		}
		assert.Equal(t, len(naive), f.find(sum+1))
	}
}

func newTestEntries(n int) []*Entry {
	out := make([]*Entry, n)
	for i := range out {
		out[i] = &Entry{ID: uuid.New(), Seq: uint64(i + 1)}
	}
	return out
}

func TestOrderRemoveClosesGap(t *testing.T) {
	o := newOrder()
	es := newTestEntries(3)
	for _, e := range es {
		o.push(e)
	}

	_, ok := o.remove(es[0].ID)
	require.True(t, ok)

	p, ok := o.position(es[1].ID)
	require.True(t, ok)
	assert.Equal(t, 1, p)
	p, _ = o.position(es[2].ID)
	assert.Equal(t, 2, p)
	assert.Equal(t, es[1], o.head())

	_, ok = o.position(es[0].ID)
	assert.False(t, ok)
	_, ok = o.remove(es[0].ID)
	assert.False(t, ok)
}

func TestOrderCompactionKeepsOrder(t *testing.T) {
	o := newOrder()
	es := newTestEntries(200)
	for _, e := range es {
		o.push(e)
	}
	// drop every entry except each fifth
	var kept []*Entry
	for i, e := range es {
		if i%5 == 0 {
			kept = append(kept, e)
			continue
		}
		_, ok := o.remove(e.ID)
		require.True(t, ok)
	}

	assert.Less(t, len(o.slots), 200, "slots should have been compacted")
	require.Equal(t, len(kept), o.len())
	for i, e := range kept {
		p, ok := o.position(e.ID)
		require.True(t, ok)
		assert.Equal(t, i+1, p)
		assert.Equal(t, e, o.at(i+1))
	}
	assert.Nil(t, o.at(0))
	assert.Nil(t, o.at(len(kept)+1))

	got := o.entries()
	assert.Equal(t, kept, got)
}
