package core

import (
	"slices"

	"github.com/encodeous/wisun/perf"
	"github.com/encodeous/wisun/state"
)

// DefaultScore prefers strong links into small, close PANs. An unknown ETX is
// not penalised.
func DefaultScore(c *state.CandidateParent) int32 {
	s := int32(c.Rsl) - int32(state.DeviceMinSens)
	s -= int32(c.Pan.PanCost())
	if c.Etx > state.EtxUnit {
		s -= 8 * int32(c.Etx-state.EtxUnit) / state.EtxUnit
	}
	return s
}

func (b *Bootstrap) indexOf(addr state.Eui64) int {
	return slices.IndexFunc(b.candidates, func(c *state.CandidateParent) bool {
		return c.Addr == addr
	})
}

// upsertCandidate records an advertisement heard from a neighbour.
func (b *Bootstrap) upsertCandidate(from state.Eui64, rsl int16, adv state.Advertisement) {
	idx := b.indexOf(from)
	if idx < 0 {
		c := &state.CandidateParent{
			Addr:      from,
			Rsl:       rsl,
			PanId:     adv.PanId,
			Pan:       adv.Pan,
			LastHeard: b.slowTicks,
		}
		c.Score = b.Score(c)
		b.insertSorted(c)
		b.evictExcess()
		perf.CandidateTableSize.Add(float64(len(b.candidates)))
		return
	}
	c := b.candidates[idx]
	c.Rsl = rsl
	c.PanId = adv.PanId
	c.Pan = adv.Pan
	c.LastHeard = b.slowTicks
	b.rescore(idx)
}

// insertSorted places c after every entry scoring at least as much.
func (b *Bootstrap) insertSorted(c *state.CandidateParent) {
	pos := slices.IndexFunc(b.candidates, func(o *state.CandidateParent) bool {
		return o.Score < c.Score
	})
	if pos < 0 {
		pos = len(b.candidates)
	}
	b.candidates = slices.Insert(b.candidates, pos, c)
}

// rescore recomputes the score of an existing entry. It only overtakes a
// neighbour it beats by more than ScoreHysteresis, so small fluctuations do not
// reorder the table.
func (b *Bootstrap) rescore(idx int) {
	c := b.candidates[idx]
	c.Score = b.Score(c)
	for idx > 0 && c.Score > b.candidates[idx-1].Score+state.ScoreHysteresis {
		b.candidates[idx], b.candidates[idx-1] = b.candidates[idx-1], c
		idx--
	}
	for idx < len(b.candidates)-1 && b.candidates[idx+1].Score > c.Score+state.ScoreHysteresis {
		b.candidates[idx], b.candidates[idx+1] = b.candidates[idx+1], c
		idx++
	}
}

// evictExcess drops the lowest scoring entries, the later one on a tie, until
// the table fits. The current target and parent are never evicted.
func (b *Bootstrap) evictExcess() {
	for len(b.candidates) > b.cfg.CandidateTable {
		worst := -1
		for i, c := range b.candidates {
			if c == b.target || c == b.parent {
				continue
			}
			if worst < 0 || c.Score <= b.candidates[worst].Score {
				worst = i
			}
		}
		if worst < 0 {
			return
		}
		b.log.Debug("evicting candidate", "addr", b.candidates[worst].Addr, "score", b.candidates[worst].Score)
		b.candidates = slices.Delete(b.candidates, worst, worst+1)
	}
}

// bestAcceptable returns the first candidate in ranking order with a usable
// link that has not recently failed.
func (b *Bootstrap) bestAcceptable() *state.CandidateParent {
	for _, c := range b.candidates {
		if c.Acceptable() && !b.blacklist.Has(c.Addr) {
			return c
		}
	}
	return nil
}

func (b *Bootstrap) dropCandidate(addr state.Eui64, blacklist bool) {
	if blacklist {
		b.blacklist.Set(addr, struct{}{}, state.BlacklistTTL)
	}
	if idx := b.indexOf(addr); idx >= 0 {
		b.candidates = slices.Delete(b.candidates, idx, idx+1)
	}
}

func (b *Bootstrap) ageCandidates() {
	b.candidates = slices.DeleteFunc(b.candidates, func(c *state.CandidateParent) bool {
		if c == b.target || c == b.parent {
			return false
		}
		if b.slowTicks-c.LastHeard > uint64(state.CandidateMaxAge) {
			b.log.Debug("candidate aged out", "addr", c.Addr)
			return true
		}
		return false
	})
}

// sampleLinks refreshes RSL and ETX of every candidate from the radio.
func (b *Bootstrap) sampleLinks() {
	addrs := make([]state.Eui64, 0, len(b.candidates))
	for _, c := range b.candidates {
		addrs = append(addrs, c.Addr)
	}
	for _, a := range addrs {
		rsl, etx, ok := b.c.Mac.LinkQuality(a)
		if !ok {
			continue
		}
		idx := b.indexOf(a)
		if idx < 0 {
			continue
		}
		b.candidates[idx].Rsl = rsl
		b.candidates[idx].Etx = etx
		b.rescore(idx)
	}
}
