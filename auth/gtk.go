package auth

import (
	"fmt"

	"github.com/encodeous/wisun/pae"
	"github.com/encodeous/wisun/state"
)

// pendingGtk returns a key installed for the next rotation.
func (a *Authenticator) pendingGtk() (uint8, bool) {
	for i, g := range a.gtks.Gtks {
		if g.Set && (g.Status == state.GtkStatusNew || g.Status == state.GtkStatusFresh) {
			return uint8(i), true
		}
	}
	return 0, false
}

// takeNextKey consumes a key from the next key set, or generates one.
func (a *Authenticator) takeNextKey() (state.GtkKey, error) {
	for i, g := range a.nextGtks.Gtks {
		if !g.Set {
			continue
		}
		a.nextGtks.Remove(uint8(i))
		dup := false
		for _, cur := range a.gtks.Gtks {
			dup = dup || (cur.Set && cur.Key == g.Key)
		}
		if !dup {
			return g.Key, nil
		}
	}
	return state.NewGtkKey()
}

func (a *Authenticator) installNextGtk(lifetime uint32) (uint8, error) {
	idx, ok := a.gtks.FreeIndex()
	if !ok {
		return 0, fmt.Errorf("no free gtk slot")
	}
	key, err := a.takeNextKey()
	if err != nil {
		return 0, err
	}
	if a.gtks.Gtks[idx].Set && a.cb != nil {
		a.cb.NwKeysRemove([]uint8{idx})
	}
	if err := a.gtks.Insert(idx, key, lifetime); err != nil {
		return 0, err
	}
	a.log.Info("installed gtk", "index", idx, "lifetime", lifetime)
	return idx, nil
}

// activateGtk switches the broadcast key to index, reporting whether it did.
func (a *Authenticator) activateGtk(index uint8) bool {
	if err := a.gtks.SetActive(index); err != nil {
		a.log.Error("failed to activate gtk", "index", index, "error", err)
		return false
	}
	a.activated(index)
	return true
}

func (a *Authenticator) gtkLifecycle(seconds uint32) {
	changed := false
	var expired []uint8
	for i := range a.gtks.Gtks {
		g := &a.gtks.Gtks[i]
		if !g.Set {
			continue
		}
		if g.Status == state.GtkStatusNew {
			// supplicants have had one tick to pick it up
			g.Status = state.GtkStatusFresh
		}
		if g.Lifetime <= seconds {
			g.Lifetime = 0
			expired = append(expired, uint8(i))
		} else {
			g.Lifetime -= seconds
		}
	}

	activeIdx, ok := a.gtks.ActiveIndex()
	if ok {
		act := a.gtks.Gtks[activeIdx]
		installAt := uint32(uint64(a.cfg.GtkExpireOffset) * uint64(100-a.cfg.GtkNewInstallRequired) / 100)
		if _, pending := a.pendingGtk(); !pending && act.Lifetime <= installAt {
			if _, err := a.installNextGtk(act.Lifetime + a.cfg.GtkExpireOffset); err != nil {
				a.log.Error("failed to install gtk", "error", err)
			} else {
				changed = true
			}
		}
		activateAt := a.cfg.GtkExpireOffset / a.cfg.GtkNewActivationTime
		if next, pending := a.pendingGtk(); pending && act.Lifetime <= activateAt {
			if a.activateGtk(next) {
				changed = true
			}
		}
	}

	var removed []uint8
	for _, idx := range expired {
		if a.gtks.Gtks[idx].Status == state.GtkStatusActive {
			continue
		}
		a.gtks.Remove(idx)
		removed = append(removed, idx)
	}
	if len(removed) > 0 {
		a.log.Info("gtks expired", "indexes", removed)
		if a.cb != nil {
			a.cb.NwKeysRemove(removed)
		}
		changed = true
	}
	if changed {
		a.GtksUpdated(false)
	}
}

// revokeGtks drops every key that revoked nodes may hold except the active one,
// shortens the active key's lifetime and installs a successor.
func (a *Authenticator) revokeGtks() {
	activeIdx, ok := a.gtks.ActiveIndex()
	if !ok {
		return
	}
	var removed []uint8
	for i, g := range a.gtks.Gtks {
		if g.Set && uint8(i) != activeIdx {
			a.gtks.Remove(uint8(i))
			removed = append(removed, uint8(i))
		}
	}
	if len(removed) > 0 && a.cb != nil {
		a.cb.NwKeysRemove(removed)
	}
	act := &a.gtks.Gtks[activeIdx]
	act.Lifetime = max(act.Lifetime/a.cfg.RevocationLifetimeReduction, 1)
	if _, err := a.installNextGtk(act.Lifetime + a.cfg.GtkExpireOffset); err != nil {
		a.log.Error("failed to install gtk after revocation", "error", err)
	}
	a.GtksUpdated(true)
}

// pushGtks starts the exchange that brings a supplicant up to date with the
// current keys.
func (a *Authenticator) pushGtks(e *pae.SupplicantEntry) {
	t := pae.KmpGroupKeyHandshake
	if !e.Keys.PtkSet {
		t = pae.KmpFourWayHandshake
	}
	if e.Kmps.TypeGet(t) != nil {
		return
	}
	if err := a.startKmp(e, t); err != nil {
		a.log.Warn("failed to push gtks", "eui64", e.Addr.Eui64, "error", err)
	}
}

func (a *Authenticator) gtkRetry(e *pae.SupplicantEntry) {
	if e.Keys.GtkHash != a.gtkHash {
		a.pushGtks(e)
	}
}
