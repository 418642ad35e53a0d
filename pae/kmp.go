package pae

import (
	"fmt"
	"slices"
)

type KmpType uint8

const (
	KmpUnknown KmpType = iota
	KmpIeee8021x
	KmpFourWayHandshake
	KmpGroupKeyHandshake
	KmpRadius
)

func (t KmpType) String() string {
	switch t {
	case KmpIeee8021x:
		return "802.1x"
	case KmpFourWayHandshake:
		return "4whs"
	case KmpGroupKeyHandshake:
		return "gkh"
	case KmpRadius:
		return "radius"
	default:
		return fmt.Sprintf("KmpType(%d)", uint8(t))
	}
}

// Kmp is a handle to one key management exchange owned by the KMP engine.
type Kmp interface {
	Type() KmpType
}

type KmpEntry struct {
	Kmp     Kmp
	Timer   Countdown
	running bool
}

// Running reports whether the entry is in its list's active timer set.
func (e *KmpEntry) Running() bool {
	return e.running
}

// KmpList is the ordered set of exchanges in flight with one peer.
type KmpList struct {
	entries []*KmpEntry
	active  map[*KmpEntry]struct{}
}

func (l *KmpList) Len() int {
	return len(l.entries)
}

func (l *KmpList) Add(k Kmp) *KmpEntry {
	if e := l.InstanceGet(k); e != nil {
		return e
	}
	e := &KmpEntry{Kmp: k}
	l.entries = append(l.entries, e)
	return e
}

func (l *KmpList) Delete(k Kmp) bool {
	idx := slices.IndexFunc(l.entries, func(e *KmpEntry) bool { return e.Kmp == k })
	if idx == -1 {
		return false
	}
	e := l.entries[idx]
	l.stop(e)
	l.entries = slices.Delete(l.entries, idx, idx+1)
	return true
}

// TypeGet returns the first exchange of the given type.
func (l *KmpList) TypeGet(t KmpType) Kmp {
	for _, e := range l.entries {
		if e.Kmp.Type() == t {
			return e.Kmp
		}
	}
	return nil
}

func (l *KmpList) InstanceGet(k Kmp) *KmpEntry {
	for _, e := range l.entries {
		if e.Kmp == k {
			return e
		}
	}
	return nil
}

func (l *KmpList) Each(fn func(*KmpEntry)) {
	for _, e := range slices.Clone(l.entries) {
		fn(e)
	}
}

// Free removes every exchange, calling release for each one.
func (l *KmpList) Free(release func(Kmp)) {
	entries := l.entries
	l.entries = nil
	l.active = nil
	for _, e := range entries {
		e.running = false
		e.Timer.Stop()
		if release != nil {
			release(e.Kmp)
		}
	}
}

func (l *KmpList) TimerStart(k Kmp, ticks uint32) bool {
	e := l.InstanceGet(k)
	if e == nil || ticks == 0 {
		return false
	}
	if l.active == nil {
		l.active = make(map[*KmpEntry]struct{})
	}
	e.Timer.Set(ticks)
	e.running = true
	l.active[e] = struct{}{}
	return true
}

func (l *KmpList) TimerStop(k Kmp) {
	if e := l.InstanceGet(k); e != nil {
		l.stop(e)
	}
}

func (l *KmpList) stop(e *KmpEntry) {
	e.Timer.Stop()
	e.running = false
	delete(l.active, e)
}

// TimerRunning reports whether any exchange has a running timer.
func (l *KmpList) TimerRunning() bool {
	return len(l.active) > 0
}

// TimerUpdate advances every running timer. Timers that expire are stopped and
// onTimeout is called; a non-zero return restarts the timer with that many
// ticks. It reports whether the list still needs servicing.
func (l *KmpList) TimerUpdate(ticks uint32, onTimeout func(Kmp) uint32) bool {
	var expired []*KmpEntry
	for _, e := range l.entries {
		if !e.running {
			continue
		}
		if e.Timer.Tick(ticks) {
			l.stop(e)
			expired = append(expired, e)
		}
	}
	for _, e := range expired {
		if onTimeout == nil {
			continue
		}
		next := onTimeout(e.Kmp)
		// the handler may have deleted the exchange
		if next > 0 && l.InstanceGet(e.Kmp) == e {
			l.TimerStart(e.Kmp, next)
		}
	}
	return l.TimerRunning()
}
