package auth

import (
	"fmt"

	"github.com/encodeous/wisun/pae"
	"github.com/encodeous/wisun/perf"
	"github.com/encodeous/wisun/state"
	"github.com/jellydator/ttlcache/v3"
)

// SupplicantMessage handles an EAPOL frame of the given exchange type from a
// supplicant, creating the supplicant on first contact.
func (a *Authenticator) SupplicantMessage(addr pae.SuppAddr, t pae.KmpType) error {
	if !a.started {
		return ErrNotStarted
	}
	if a.relayCount > 0 && addr.Relay.IsValid() {
		if _, ok := a.relays.Lookup(addr.Relay.Addr()); !ok {
			perf.SupplicantsRejected.Add(1)
			return fmt.Errorf("%w: %s", ErrRelayRejected, addr.Relay)
		}
	}
	e, list := a.lookup(addr.Eui64)
	if list != a.active {
		if err := a.admit(); err != nil {
			perf.SupplicantsRejected.Add(1)
			a.log.Debug("supplicant refused", "eui64", addr.Eui64, "error", err)
			return err
		}
	}
	if t == pae.KmpIeee8021x {
		if e != nil && a.startDedup.Has(addr.Eui64) {
			return nil
		}
		a.startDedup.Set(addr.Eui64, struct{}{}, ttlcache.DefaultTTL)
	}
	if e == nil {
		e = a.inactive.Add(addr)
		perf.SupplicantsAdmitted.Add(1)
		a.log.Debug("new supplicant", "eui64", addr.Eui64, "relay", addr.Relay)
	}
	e.Addr.Relay = addr.Relay
	if e.AccessRevoked {
		// a revoked node authenticates from scratch
		e.AccessRevoked = false
		e.Keys.Reset()
	}
	a.activate(e)
	if e.Kmps.TypeGet(t) != nil {
		return nil
	}
	return a.startKmp(e, t)
}

func (a *Authenticator) admit() error {
	n := a.active.Len()
	if a.nodeLimit > 0 && n >= a.nodeLimit {
		return ErrNodeLimit
	}
	if a.cfg.MaxConcurrentAuth > 0 && n >= a.cfg.MaxConcurrentAuth {
		return ErrCongested
	}
	if a.cb != nil && a.cb.CongestionGet(n) {
		return ErrCongested
	}
	return nil
}

func (a *Authenticator) activate(e *pae.SupplicantEntry) {
	if !a.active.Contains(e) {
		pae.ToActive(a.active, a.inactive, e)
	}
	e.Ticks.Set(a.cfg.SupplicantActiveTicks)
}

func (a *Authenticator) startKmp(e *pae.SupplicantEntry, t pae.KmpType) error {
	k, err := a.engine.Create(t, e)
	if err != nil {
		return fmt.Errorf("create %s: %w", t, err)
	}
	a.activate(e)
	e.Kmps.Add(k)
	e.Kmps.TimerStart(k, a.cfg.KmpRetryTicks)
	perf.KmpStarts.Add(1)
	a.log.Debug("kmp started", "eui64", e.Addr.Eui64, "type", t)
	return nil
}

// KmpFinished is called by the engine when an exchange completes. Completions
// for exchanges that were already removed are ignored.
func (a *Authenticator) KmpFinished(eui state.Eui64, k pae.Kmp, ok bool) {
	e, _ := a.lookup(eui)
	if e == nil || !e.Kmps.Delete(k) {
		return
	}
	a.engine.Delete(k)
	if !ok {
		a.log.Debug("kmp failed", "eui64", eui, "type", k.Type())
		return
	}
	a.log.Debug("kmp finished", "eui64", eui, "type", k.Type())
	switch k.Type() {
	case pae.KmpIeee8021x:
		e.Keys.PmkSet = true
		e.Keys.PmkLifetime = a.cfg.PmkLifetime
		if err := a.startKmp(e, pae.KmpFourWayHandshake); err != nil {
			a.log.Warn("failed to start 4whs", "eui64", eui, "error", err)
		}
	case pae.KmpFourWayHandshake:
		e.Keys.PtkSet = true
		e.Keys.PtkLifetime = a.cfg.PtkLifetime
		a.markGtks(e)
	case pae.KmpGroupKeyHandshake:
		a.markGtks(e)
	}
	if a.active.Contains(e) {
		e.Ticks.Set(a.cfg.SupplicantActiveTicks)
	}
}

func (a *Authenticator) markGtks(e *pae.SupplicantEntry) {
	for i, g := range a.gtks.Gtks {
		e.Keys.GtkInstalled[i] = g.Set
	}
	e.Keys.GtkHash = a.gtkHash
	e.RetryTicks.Stop()
}

func (a *Authenticator) kmpTimeout(e *pae.SupplicantEntry, k pae.Kmp) uint32 {
	next := a.engine.Timeout(k)
	if next == 0 {
		e.Kmps.Delete(k)
		a.engine.Delete(k)
		perf.KmpTimeouts.Add(1)
		a.log.Debug("kmp timed out", "eui64", e.Addr.Eui64, "type", k.Type())
	}
	return next
}
