package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"time"

	"github.com/encodeous/wisun/auth"
	"github.com/encodeous/wisun/state"
)

// BorderRouter roots the PAN: it owns the authenticator and the PAN version,
// and programs the radio key table on the authenticator's behalf.
type BorderRouter struct {
	b         *Bootstrap
	auth      *auth.Authenticator
	log       *slog.Logger
	installed [state.GtkCount]state.Gtk
	gtkHash   state.GtkHash
	restarts  uint32
}

func newBorderRouter(b *Bootstrap) (*BorderRouter, error) {
	cfg := b.cfg
	switch {
	case b.c.Keys == nil:
		return nil, fmt.Errorf("%w: key table", ErrMissingCollaborator)
	case b.c.Kmp == nil:
		return nil, fmt.Errorf("%w: kmp engine", ErrMissingCollaborator)
	}
	if err := ValidateSchedule(cfg, cfg.Schedule); err != nil {
		return nil, fmt.Errorf("border router schedule: %w", err)
	}
	br := &BorderRouter{
		b:   b,
		log: b.log.With("role", state.RoleBorderRouter),
	}

	b.panId = binary.BigEndian.Uint16(cfg.Eui64[6:])
	if cfg.PanId != nil {
		b.panId = *cfg.PanId
	}
	b.panVersion = uint16(b.rnd.Uint32N(1 << 16))

	var persisted *state.KeyInfo
	if cfg.KeyStorePath != "" {
		info, err := state.LoadKeyInfo(cfg.KeyStorePath, cfg.KeyStoreKey.Pubkey(), cfg.Eui64[:])
		switch {
		case errors.Is(err, os.ErrNotExist):
			br.log.Info("no stored key information, starting fresh", "path", cfg.KeyStorePath)
		case err != nil:
			return nil, fmt.Errorf("key store: %w", err)
		case info.NetworkName != cfg.NetworkName || (cfg.PanId != nil && info.PanId != *cfg.PanId):
			br.log.Warn("stored key information belongs to another network, ignoring", "network_name", info.NetworkName, "pan_id", info.PanId)
		default:
			restored := info.Restored()
			persisted = &restored
			b.panId = restored.PanId
			b.panVersion = restored.PanVersion
			br.restarts = restored.Restarts
		}
	}

	a, err := auth.Init(0, nil, b.c.Certs, cfg.Security, persisted, b.c.Kmp, b.log)
	if err != nil {
		return nil, err
	}
	a.CbRegister(br)
	a.RelayPrefixesSet(cfg.RelayPrefixes)
	local := netip.AddrPortFrom(br.IpAddressGet(), state.PaeAuthPort)
	if err := a.AddressesSet(local, netip.AddrPortFrom(br.IpAddressGet(), state.BrEapolRelayPort)); err != nil {
		return nil, err
	}
	if err := a.NwInfoSet(b.panId, cfg.NetworkName, false); err != nil {
		return nil, err
	}
	br.auth = a
	return br, nil
}

// start brings the PAN up. There is nothing to discover, so the join graph is
// walked in one step.
func (br *BorderRouter) start() error {
	b := br.b
	b.panConfig = &state.PanConfiguration{
		NetworkName: b.cfg.NetworkName,
		PanId:       b.panId,
		PanVersion:  b.panVersion,
		Schedule:    b.cfg.Schedule,
	}
	if err := b.c.Mac.SetSchedule(b.cfg.Schedule, b.panId); err != nil {
		return fmt.Errorf("set schedule: %w", err)
	}
	if err := br.auth.Start(); err != nil {
		return fmt.Errorf("start authenticator: %w", err)
	}
	if err := b.c.Routing.StartRoot(); err != nil {
		return fmt.Errorf("start routing root: %w", err)
	}
	for _, s := range []BootstrapState{StateDiscovery, StateAuthentication, StateConfiguration, StateWaitRouting, StateActive} {
		if !b.transition(s) {
			return fmt.Errorf("border router could not enter %s", s)
		}
	}
	b.pa.Start()
	b.pc.Start()
	br.persist()
	br.log.Info("pan started", "pan_id", fmt.Sprintf("%04x", b.panId), "pan_version", b.panVersion, "restarts", br.restarts)
	return nil
}

func (br *BorderRouter) Authenticator() *auth.Authenticator {
	return br.auth
}

// persist writes the key information if a key store is configured.
func (br *BorderRouter) persist() {
	cfg := br.b.cfg
	if cfg.KeyStorePath == "" || br.auth == nil || !br.auth.Started() {
		return
	}
	info := br.auth.KeyInfo()
	info.PanVersion = br.b.panVersion
	info.Restarts = br.restarts
	info.Timestamp = time.Now().Unix()
	if err := state.StoreKeyInfo(cfg.KeyStorePath, &info, cfg.KeyStoreKey, cfg.Eui64[:]); err != nil {
		br.log.Error("failed to store key information", "path", cfg.KeyStorePath, "error", err)
	}
}

// GtkHashSet bumps the PAN version so routers relearn the configuration.
func (br *BorderRouter) GtkHashSet(hash state.GtkHash) {
	if hash == br.gtkHash {
		return
	}
	b := br.b
	br.gtkHash = hash
	b.panVersion++
	if b.panConfig != nil {
		b.panConfig.GtkHash = hash
		b.panConfig.PanVersion = b.panVersion
	}
	br.log.Debug("gtk hash changed", "gtk_hash", hash, "pan_version", b.panVersion)
	if b.state == StateActive {
		b.pc.Reset()
		b.pa.Reset()
	}
	br.persist()
}

func (br *BorderRouter) NwKeyInsert(gtks *state.GtkSet, force bool) bool {
	changed := false
	for i, g := range gtks.Gtks {
		cur := br.installed[i]
		switch {
		case g.Set && (force || !cur.Set || cur.Key != g.Key):
			br.b.c.Keys.Install(uint8(i), g.Key)
			changed = true
		case !g.Set && cur.Set:
			br.b.c.Keys.Remove(uint8(i))
			changed = true
		}
		br.installed[i] = g
	}
	return changed
}

func (br *BorderRouter) NwKeysRemove(indexes []uint8) {
	for _, i := range indexes {
		if int(i) >= state.GtkCount {
			continue
		}
		br.b.c.Keys.Remove(i)
		br.installed[i] = state.Gtk{}
	}
}

func (br *BorderRouter) NwKeyIndexSet(index uint8) {
	br.b.c.Keys.SetIndex(index)
}

func (br *BorderRouter) NwInfoUpdated(panId uint16, networkName string) {
	br.log.Info("network information updated", "pan_id", fmt.Sprintf("%04x", panId), "network_name", networkName)
	br.persist()
}

func (br *BorderRouter) IpAddressGet() netip.Addr {
	if br.b.cfg.Address.IsValid() {
		return br.b.cfg.Address
	}
	return br.b.cfg.Eui64.LinkLocal()
}

func (br *BorderRouter) CongestionGet(activeSupplicants int) bool {
	q := br.b.c.Mac.TxQueueLen()
	if q >= state.CongestionQueueLimit {
		br.log.Debug("congested", "tx_queue", q, "active_supplicants", activeSupplicants)
		return true
	}
	return false
}
