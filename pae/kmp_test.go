package pae

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testKmp struct {
	typ KmpType
	id  int
}

func (k *testKmp) Type() KmpType {
	return k.typ
}

func TestKmpListLookup(t *testing.T) {
	var l KmpList
	a := &testKmp{KmpIeee8021x, 1}
	b := &testKmp{KmpFourWayHandshake, 2}
	l.Add(a)
	l.Add(b)
	l.Add(a)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, Kmp(b), l.TypeGet(KmpFourWayHandshake))
	assert.Nil(t, l.TypeGet(KmpGroupKeyHandshake))
	assert.NotNil(t, l.InstanceGet(a))

	require.True(t, l.TimerStart(a, 5))
	assert.True(t, l.TimerRunning())
	assert.True(t, l.Delete(a))
	assert.False(t, l.Delete(a))
	assert.False(t, l.TimerRunning(), "deleting clears the active timer set")
	assert.Nil(t, l.InstanceGet(a))
}

func TestKmpListTimerUpdate(t *testing.T) {
	var l KmpList
	a := &testKmp{KmpIeee8021x, 1}
	b := &testKmp{KmpFourWayHandshake, 2}
	l.Add(a)
	l.Add(b)
	l.TimerStart(a, 3)
	l.TimerStart(b, 10)

	var timedOut []Kmp
	handler := func(k Kmp) uint32 {
		timedOut = append(timedOut, k)
		return 0
	}
	assert.True(t, l.TimerUpdate(2, handler))
	assert.Empty(t, timedOut)
	assert.True(t, l.TimerUpdate(2, handler))
	assert.Equal(t, []Kmp{a}, timedOut)
	assert.False(t, l.InstanceGet(a).Running())

	// restart on timeout
	assert.True(t, l.TimerUpdate(6, func(k Kmp) uint32 { return 4 }))
	assert.Equal(t, uint32(4), l.InstanceGet(b).Timer.Remaining())

	// handler deletes the exchange
	assert.False(t, l.TimerUpdate(4, func(k Kmp) uint32 {
		l.Delete(k)
		return 7
	}))
	assert.Equal(t, 1, l.Len())
}

func TestKmpListFree(t *testing.T) {
	var l KmpList
	a := &testKmp{KmpIeee8021x, 1}
	b := &testKmp{KmpRadius, 2}
	l.Add(a)
	l.Add(b)
	l.TimerStart(b, 1)
	var freed []Kmp
	l.Free(func(k Kmp) { freed = append(freed, k) })
	assert.Equal(t, []Kmp{a, b}, freed)
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.TimerRunning())
}

// the running flags always agree with the active timer set, and the list needs
// servicing exactly while a flag is set
func TestKmpListRunningConsistency(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	var l KmpList
	kmps := make([]*testKmp, 8)
	for i := range kmps {
		kmps[i] = &testKmp{KmpType(i%4 + 1), i}
	}
	for range 2000 {
		k := kmps[r.IntN(len(kmps))]
		switch r.IntN(5) {
		case 0:
			l.Add(k)
		case 1:
			l.Delete(k)
		case 2:
			l.TimerStart(k, r.Uint32N(5))
		case 3:
			l.TimerStop(k)
		case 4:
			needs := l.TimerUpdate(r.Uint32N(3), func(Kmp) uint32 { return r.Uint32N(3) })
			anyRunning := false
			l.Each(func(e *KmpEntry) {
				anyRunning = anyRunning || e.Running()
			})
			require.Equal(t, anyRunning, needs)
		}
		count := 0
		l.Each(func(e *KmpEntry) {
			require.Equal(t, e.Running(), e.Timer.Running(), "flag and countdown disagree")
			_, inSet := l.active[e]
			require.Equal(t, e.Running(), inSet)
			if inSet {
				count++
			}
		})
		require.Equal(t, count, len(l.active))
	}
}
