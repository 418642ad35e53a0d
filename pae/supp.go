package pae

import (
	"container/list"
	"net/netip"

	"github.com/encodeous/wisun/state"
)

// SuppAddr identifies a supplicant and the relay its EAPOL frames arrive through.
type SuppAddr struct {
	Eui64 state.Eui64
	Relay netip.AddrPort
}

// SecKeys is the key material the authenticator holds for one supplicant.
type SecKeys struct {
	PmkSet      bool
	PmkLifetime uint32
	PtkSet      bool
	PtkLifetime uint32
	// GtkInstalled marks the key indexes the supplicant has acknowledged
	GtkInstalled [state.GtkCount]bool
	GtkHash      state.GtkHash
}

func (k *SecKeys) Reset() {
	*k = SecKeys{}
}

// Tick ages the pairwise keys, dropping the ones that expire.
func (k *SecKeys) Tick(seconds uint32) {
	if k.PmkSet {
		if k.PmkLifetime <= seconds {
			k.PmkSet, k.PmkLifetime = false, 0
			k.PtkSet, k.PtkLifetime = false, 0
		} else {
			k.PmkLifetime -= seconds
		}
	}
	if k.PtkSet {
		if k.PtkLifetime <= seconds {
			k.PtkSet, k.PtkLifetime = false, 0
		} else {
			k.PtkLifetime -= seconds
		}
	}
}

type SupplicantEntry struct {
	Addr SuppAddr
	Keys *SecKeys
	// Ticks counts down fast ticks of inactivity while active
	Ticks Countdown
	// RetryTicks counts down seconds until the next group key update attempt
	RetryTicks    Countdown
	Active        bool
	AccessRevoked bool
	Kmps          KmpList

	elem  *list.Element
	owner *SuppList
}

// SuppList is one partition of supplicants, ordered oldest first.
type SuppList struct {
	l   *list.List
	idx map[state.Eui64]*SupplicantEntry
}

func NewSuppList() *SuppList {
	return &SuppList{
		l:   list.New(),
		idx: make(map[state.Eui64]*SupplicantEntry),
	}
}

func (s *SuppList) Len() int {
	return s.l.Len()
}

// Add creates a supplicant at the end of the partition, returning the existing
// one if the address is already present.
func (s *SuppList) Add(addr SuppAddr) *SupplicantEntry {
	if e, ok := s.idx[addr.Eui64]; ok {
		return e
	}
	e := &SupplicantEntry{Addr: addr, Keys: &SecKeys{}}
	s.insert(e)
	return e
}

func (s *SuppList) insert(e *SupplicantEntry) {
	e.elem = s.l.PushBack(e)
	e.owner = s
	s.idx[e.Addr.Eui64] = e
}

func (s *SuppList) Remove(e *SupplicantEntry) bool {
	if e == nil || e.owner != s {
		return false
	}
	s.l.Remove(e.elem)
	delete(s.idx, e.Addr.Eui64)
	e.elem = nil
	e.owner = nil
	return true
}

func (s *SuppList) EntryGet(eui state.Eui64) *SupplicantEntry {
	return s.idx[eui]
}

func (s *SuppList) Contains(e *SupplicantEntry) bool {
	return e != nil && e.owner == s
}

// Each visits the entries oldest first. Returning false stops the walk; the
// visited entry may be removed or moved during the call.
func (s *SuppList) Each(fn func(*SupplicantEntry) bool) {
	for el := s.l.Front(); el != nil; {
		next := el.Next()
		if !fn(el.Value.(*SupplicantEntry)) {
			return
		}
		el = next
	}
}

func move(from, to *SuppList, e *SupplicantEntry) bool {
	if !from.Remove(e) {
		return false
	}
	to.insert(e)
	return true
}

// ToActive moves a supplicant from inactive to active. Nothing but the partition
// and Active flag change.
func ToActive(active, inactive *SuppList, e *SupplicantEntry) bool {
	if !move(inactive, active, e) {
		return false
	}
	e.Active = true
	return true
}

func ToInactive(active, inactive *SuppList, e *SupplicantEntry) bool {
	if !move(active, inactive, e) {
		return false
	}
	e.Active = false
	return true
}

// Purge reclaims inactive supplicants that have no exchanges in flight and are
// either revoked or in excess of maxCount over both partitions. At most maxPurge
// entries are removed per call; a non-positive maxPurge removes all that qualify.
func Purge(active, inactive *SuppList, maxCount, maxPurge int) int {
	excess := active.Len() + inactive.Len() - maxCount
	removed := 0
	inactive.Each(func(e *SupplicantEntry) bool {
		if maxPurge > 0 && removed >= maxPurge {
			return false
		}
		if e.Kmps.Len() != 0 {
			return true
		}
		if !e.AccessRevoked && excess <= 0 {
			return true
		}
		inactive.Remove(e)
		removed++
		excess--
		return true
	})
	return removed
}

// TimerUpdate advances the fast timers of every active supplicant. Exchanges are
// ticked first; a supplicant with no running exchange timers and an expired
// activity countdown is moved to inactive. It reports whether any supplicant is
// still active.
func TimerUpdate(active, inactive *SuppList, ticks uint32, onTimeout func(*SupplicantEntry, Kmp) uint32) bool {
	active.Each(func(e *SupplicantEntry) bool {
		running := e.Kmps.TimerUpdate(ticks, func(k Kmp) uint32 {
			return onTimeout(e, k)
		})
		expired := e.Ticks.Tick(ticks)
		if !running && (expired || !e.Ticks.Running()) && active.Contains(e) {
			ToInactive(active, inactive, e)
		}
		return true
	})
	return active.Len() > 0
}

// SlowTimerUpdate ages key material and retry countdowns, calling onRetry for
// every supplicant whose retry countdown expires.
func SlowTimerUpdate(s *SuppList, seconds uint32, onRetry func(*SupplicantEntry)) {
	s.Each(func(e *SupplicantEntry) bool {
		if e.Keys != nil {
			e.Keys.Tick(seconds)
		}
		if e.RetryTicks.Tick(seconds) && onRetry != nil {
			onRetry(e)
		}
		return true
	})
}
