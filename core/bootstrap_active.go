package core

import "github.com/encodeous/wisun/state"

// activeSlow supervises the parent and refreshes link metrics.
func (b *Bootstrap) activeSlow() {
	if b.parent == nil {
		return
	}
	if b.nud.waiting && b.slowTicks >= b.nud.deadline {
		b.nud.waiting = false
		b.log.Debug("parent probe timed out", "parent", b.parent.Addr, "attempt", b.nud.attempts+1)
		if !b.nudFailure() {
			return
		}
	}
	if !b.nud.waiting && b.slowTicks >= b.nud.nextProbe {
		b.nud.waiting = true
		b.nud.deadline = b.slowTicks + uint64(state.NudProbeTimeout)
		b.c.Nud.Probe(b.parent.Addr)
	}
	if b.slowTicks >= b.nextLinkSample {
		b.sampleLinks()
		b.nextLinkSample = b.slowTicks + uint64(state.LinkSampleInterval)
	}
}

// nudFailure counts a failed probe. It returns false if the node disconnected.
func (b *Bootstrap) nudFailure() bool {
	b.nud.attempts++
	if b.nud.attempts >= state.NudMaxAttempts {
		b.FastDisconnect("parent unreachable")
		return false
	}
	b.nud.nextProbe = b.slowTicks
	return true
}

// NudResult reports the outcome of a probe. Results nobody is waiting for are ignored.
func (b *Bootstrap) NudResult(addr state.Eui64, reachable bool) {
	if b.disconnecting || b.state != StateActive || b.parent == nil || addr != b.parent.Addr || !b.nud.waiting {
		return
	}
	b.nud.waiting = false
	if reachable {
		b.nud.attempts = 0
		b.nud.nextProbe = b.slowTicks + uint64(state.NudProbeInterval)
		return
	}
	b.log.Debug("parent probe failed", "parent", addr, "attempt", b.nud.attempts+1)
	if b.nudFailure() {
		b.nud.nextProbe = b.slowTicks + 1
	}
}
