package core

import (
	"math/rand/v2"
	"time"

	"github.com/encodeous/wisun/perf"
	"github.com/encodeous/wisun/state"
)

// Node hosts the bootstrap state machine on the dispatch goroutine and drives
// its timers.
type Node struct {
	*Bootstrap
	factory CollaboratorFactory
	ticks   uint32
}

func (n *Node) Init(s *state.State) error {
	c, err := n.factory(s.Env)
	if err != nil {
		return err
	}
	seed := uint64(time.Now().UnixNano())
	b, err := New(&s.NodeCfg, c, s.Log, rand.New(rand.NewPCG(seed, seed>>17)))
	if err != nil {
		return err
	}
	n.Bootstrap = b
	if err := b.Start(); err != nil {
		return err
	}
	s.RepeatTask(n.tick, state.FastTickInterval)
	return nil
}

// tick runs one fast tick, and a slow tick every FastTicksPerSlow fast ticks.
func (n *Node) tick(s *state.State) error {
	start := time.Now()
	n.ticks++
	n.FastTimer(1)
	if n.ticks%state.FastTicksPerSlow == 0 {
		n.SlowTimer(1)
	}
	perf.TickBatchLatency.Add(float64(time.Since(start).Microseconds()))
	return nil
}

func (n *Node) Cleanup(s *state.State) error {
	if n.Bootstrap != nil {
		n.Bootstrap.Cleanup()
	}
	return nil
}
