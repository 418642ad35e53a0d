package core

import (
	"github.com/encodeous/wisun/perf"
	"github.com/encodeous/wisun/state"
)

func (b *Bootstrap) ours(name string, panId uint16) bool {
	if name != b.cfg.NetworkName {
		return false
	}
	return b.cfg.PanId == nil || *b.cfg.PanId == panId
}

// AdvertisementReceived handles a PAN advertisement heard at rsl dBm.
func (b *Bootstrap) AdvertisementReceived(from state.Eui64, rsl int16, adv state.Advertisement) {
	perf.AdvertisementsPerSecond.Add(1)
	if b.state == StateInit || b.disconnecting || from == b.cfg.Eui64 {
		return
	}
	if !b.ours(adv.NetworkName, adv.PanId) {
		return
	}
	if b.br != nil {
		if adv.PanId == b.panId && adv.Pan.Version == b.panVersion {
			b.pa.Consistent()
		}
		return
	}
	if b.state != StateDiscovery && adv.PanId != b.panId {
		return
	}
	if b.blacklist.Has(from) {
		return
	}
	b.upsertCandidate(from, rsl, adv)
	switch b.state {
	case StateDiscovery:
		b.pas.Consistent()
	case StateWaitRouting, StateActive:
		b.advertisedVersion(from, adv.Pan.Version)
	}
}

func (b *Bootstrap) advertisedVersion(from state.Eui64, v uint16) {
	fromParent := b.parent != nil && b.parent.Addr == from
	switch {
	case state.VersionNewer(v, b.panVersion):
		if !b.relearn {
			b.log.Info("newer pan version heard, relearning configuration", "from", from, "local", b.panVersion, "heard", v)
		}
		b.relearn = true
		b.pcs.Reset()
	case v == b.panVersion:
		b.pa.Consistent()
		if fromParent {
			b.staleVersions = 0
		}
	case fromParent:
		b.staleVersion(v)
	default:
		b.log.Debug("ignoring stale pan version", "from", from, "local", b.panVersion, "heard", v)
	}
}

func (b *Bootstrap) staleVersion(v uint16) {
	b.staleVersions++
	b.log.Debug("parent advertised stale pan version", "local", b.panVersion, "heard", v, "count", b.staleVersions)
	if b.staleVersions >= state.VersionRegressionLimit {
		b.NormalDisconnect("pan version regression")
	}
}

// AdvertisementSolicitReceived handles a PAN advertisement solicit.
func (b *Bootstrap) AdvertisementSolicitReceived(from state.Eui64, networkName string) {
	if b.disconnecting || networkName != b.cfg.NetworkName {
		return
	}
	switch b.state {
	case StateDiscovery:
		b.pas.Consistent()
	case StateActive:
		b.pa.Reset()
	}
}

// ConfigurationSolicitReceived handles a PAN configuration solicit.
func (b *Bootstrap) ConfigurationSolicitReceived(from state.Eui64, panId uint16) {
	if b.disconnecting || panId != b.panId {
		return
	}
	switch b.state {
	case StateConfiguration:
		b.pcs.Consistent()
	case StateActive:
		b.pc.Reset()
	}
}

// ConfigurationReceived handles a PAN configuration frame.
func (b *Bootstrap) ConfigurationReceived(from state.Eui64, pc state.PanConfiguration) {
	if b.br != nil || b.disconnecting {
		return
	}
	switch b.state {
	case StateConfiguration:
		b.joinConfiguration(from, &pc)
	case StateWaitRouting, StateActive:
		b.updateConfiguration(from, &pc)
	}
}

func (b *Bootstrap) joinConfiguration(from state.Eui64, pc *state.PanConfiguration) {
	if b.target == nil || from != b.target.Addr {
		return
	}
	if err := validateConfiguration(b.cfg, b.target.PanId, pc); err != nil {
		b.rejectConfiguration(err)
		return
	}
	if err := b.applyConfiguration(pc); err != nil {
		b.rejectConfiguration(err)
		return
	}
	b.pcs.Stop()
	b.parent = b.target
	if err := b.c.Routing.Start(b.parent.Addr); err != nil {
		b.FastDisconnect("routing start failed: " + err.Error())
		return
	}
	b.log.Info("pan configuration learnt", "parent", b.parent.Addr, "pan_version", b.panVersion, "gtk_hash", pc.GtkHash)
	b.transition(StateWaitRouting)
}

func (b *Bootstrap) rejectConfiguration(err error) {
	b.configRejects++
	b.log.Warn("pan configuration rejected", "from", b.target.Addr, "error", err, "rejects", b.configRejects)
	if b.configRejects < state.ConfigurationMaxRejects {
		return
	}
	b.c.Supplicant.Cancel()
	b.dropCandidate(b.target.Addr, true)
	b.enterDiscovery("pan configuration rejected")
}

// applyConfiguration programs the radio and adopts the configuration.
func (b *Bootstrap) applyConfiguration(pc *state.PanConfiguration) error {
	if err := b.c.Mac.SetSchedule(pc.Schedule, pc.PanId); err != nil {
		return err
	}
	hashChanged := b.panConfig != nil && b.panConfig.GtkHash != pc.GtkHash
	cp := *pc
	b.panConfig = &cp
	b.panVersion = pc.PanVersion
	if hashChanged {
		b.c.Supplicant.GtkHashChanged(pc.GtkHash)
	}
	return nil
}

func (b *Bootstrap) updateConfiguration(from state.Eui64, pc *state.PanConfiguration) {
	if pc.PanId != b.panId || pc.NetworkName != b.cfg.NetworkName {
		return
	}
	fromParent := b.parent != nil && b.parent.Addr == from
	switch {
	case state.VersionNewer(pc.PanVersion, b.panVersion):
		if err := ValidateSchedule(b.cfg, pc.Schedule); err != nil {
			b.log.Warn("ignoring unusable pan configuration", "from", from, "error", err)
			return
		}
		if err := b.applyConfiguration(pc); err != nil {
			b.log.Warn("failed to apply pan configuration", "from", from, "error", err)
			return
		}
		b.log.Info("pan configuration updated", "from", from, "pan_version", pc.PanVersion)
		b.relearn = false
		b.staleVersions = 0
		b.pcs.Stop()
		b.pc.Reset()
	case pc.PanVersion == b.panVersion:
		b.pc.Consistent()
	case fromParent:
		b.staleVersion(pc.PanVersion)
	default:
		b.pc.Reset()
	}
}
