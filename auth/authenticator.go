package auth

import (
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/encodeous/wisun/pae"
	"github.com/encodeous/wisun/perf"
	"github.com/encodeous/wisun/state"
	"github.com/gaissmai/bart"
	"github.com/jellydator/ttlcache/v3"
)

var (
	ErrInterface     = errors.New("invalid interface")
	ErrConfig        = errors.New("invalid security configuration")
	ErrCertificates  = errors.New("certificate chain is empty")
	ErrPersisted     = errors.New("persisted key information is inconsistent")
	ErrUnknownNode   = errors.New("unknown node")
	ErrNotStarted    = errors.New("authenticator not started")
	ErrNoCallbacks   = errors.New("callbacks not registered")
	ErrNodeLimit     = errors.New("supplicant limit reached")
	ErrCongested     = errors.New("authenticator congested")
	ErrRelayRejected = errors.New("relay address not allowed")
)

// Authenticator is the network side of the PAE. It must only be used from the
// dispatch goroutine.
type Authenticator struct {
	iface  state.InterfaceId
	cfg    state.SecurityCfg
	certs  []*x509.Certificate
	engine KmpService
	cb     Callbacks
	log    *slog.Logger

	active   *pae.SuppList
	inactive *pae.SuppList

	gtks     state.GtkSet
	nextGtks state.GtkSet
	gtkHash  state.GtkHash

	panId       uint16
	networkName string

	localAddr  netip.AddrPort
	remoteAddr netip.AddrPort
	radiusAddr netip.AddrPort

	relays     *bart.Table[netip.Prefix]
	relayCount int
	// EAPOL-start bursts from one supplicant start a single exchange
	startDedup *ttlcache.Cache[state.Eui64, struct{}]

	nodeLimit int
	started   bool
}

func validateSecurityConfig(cfg *state.SecurityCfg) error {
	switch {
	case cfg.GtkNewInstallRequired == 0 || cfg.GtkNewInstallRequired > 100:
		return fmt.Errorf("%w: gtk_new_install_required %d is not a percentage", ErrConfig, cfg.GtkNewInstallRequired)
	case cfg.GtkNewActivationTime < 2:
		return fmt.Errorf("%w: gtk_new_activation_time must be at least 2", ErrConfig)
	case cfg.RevocationLifetimeReduction == 0:
		return fmt.Errorf("%w: revocation_lifetime_reduction must be positive", ErrConfig)
	case cfg.MaxSupplicants < 1:
		return fmt.Errorf("%w: max_supplicants must be positive", ErrConfig)
	case cfg.KmpRetryTicks == 0:
		return fmt.Errorf("%w: kmp_retry_ticks must be positive", ErrConfig)
	}
	return nil
}

// Init creates an authenticator. nextGtks supplies the keys installed on
// rotation; slots left empty are filled with random keys. persisted, if not nil,
// is key information restored from a previous run.
func Init(iface state.InterfaceId, nextGtks *state.GtkSet, certs []*x509.Certificate, cfg state.SecurityCfg, persisted *state.KeyInfo, engine KmpService, log *slog.Logger) (*Authenticator, error) {
	if iface < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInterface, iface)
	}
	state.ExpandSecurityConfig(&cfg)
	if err := validateSecurityConfig(&cfg); err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, ErrCertificates
	}
	if engine == nil {
		return nil, fmt.Errorf("%w: no kmp engine", ErrConfig)
	}
	if log == nil {
		log = slog.Default()
	}
	a := &Authenticator{
		iface:    iface,
		cfg:      cfg,
		certs:    certs,
		engine:   engine,
		log:      log.With("module", "auth"),
		active:   pae.NewSuppList(),
		inactive: pae.NewSuppList(),
		relays:   &bart.Table[netip.Prefix]{},
		startDedup: ttlcache.New[state.Eui64, struct{}](
			ttlcache.WithTTL[state.Eui64, struct{}](state.EapolStartDedupTTL),
			ttlcache.WithDisableTouchOnHit[state.Eui64, struct{}](),
		),
	}
	if nextGtks != nil {
		if err := nextGtks.Validate(0); err != nil {
			return nil, fmt.Errorf("%w: next gtks: %w", ErrConfig, err)
		}
		a.nextGtks = *nextGtks
	}
	if persisted != nil {
		if err := persisted.Gtks.Validate(cfg.GtkExpireOffset); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersisted, err)
		}
		if persisted.Gtks.Count() > 0 {
			if _, ok := persisted.Gtks.ActiveIndex(); !ok {
				return nil, fmt.Errorf("%w: no active key", ErrPersisted)
			}
		}
		a.gtks = persisted.Gtks
		a.panId = persisted.PanId
		a.networkName = persisted.NetworkName
		a.log.Info("restored key information", "gtks", a.gtks.Count(), "restarts", persisted.Restarts)
	}
	return a, nil
}

// AddressesSet configures the local authenticator and remote relay endpoints.
func (a *Authenticator) AddressesSet(local, remote netip.AddrPort) error {
	if !local.IsValid() {
		return fmt.Errorf("%w: invalid local address %s", ErrConfig, local)
	}
	a.localAddr = local
	a.remoteAddr = remote
	return nil
}

// RadiusAddressSet configures the RADIUS server. An invalid address disables RADIUS.
func (a *Authenticator) RadiusAddressSet(addr netip.AddrPort) error {
	a.radiusAddr = addr
	return nil
}

func (a *Authenticator) Addresses() (local, remote, radius netip.AddrPort) {
	return a.localAddr, a.remoteAddr, a.radiusAddr
}

// RelayPrefixesSet restricts the relays EAPOL frames are accepted from. An empty
// list accepts every relay.
func (a *Authenticator) RelayPrefixesSet(prefixes []netip.Prefix) {
	a.relays = &bart.Table[netip.Prefix]{}
	a.relayCount = 0
	for _, p := range prefixes {
		a.relays.Insert(p.Masked(), p.Masked())
		a.relayCount++
	}
}

func (a *Authenticator) CbRegister(cb Callbacks) {
	a.cb = cb
}

func (a *Authenticator) NodeLimitSet(limit int) error {
	if limit < 0 {
		return fmt.Errorf("%w: negative node limit", ErrConfig)
	}
	a.nodeLimit = limit
	return nil
}

// Start installs the initial group keys and begins accepting supplicants.
func (a *Authenticator) Start() error {
	if a.cb == nil {
		return ErrNoCallbacks
	}
	if a.started {
		return nil
	}
	if a.gtks.Count() == 0 {
		idx, err := a.installNextGtk(a.cfg.GtkExpireOffset)
		if err != nil {
			return err
		}
		if err := a.gtks.SetActive(idx); err != nil {
			return err
		}
	}
	a.started = true
	idx, _ := a.gtks.ActiveIndex()
	a.cb.NwKeyInsert(&a.gtks, true)
	a.cb.NwKeyIndexSet(idx)
	a.updateHash(true)
	a.log.Info("authenticator started", "iface", a.iface, "broadcast_index", idx, "gtk_hash", a.gtkHash.String())
	return nil
}

func (a *Authenticator) Started() bool {
	return a.started
}

// FastTimer advances supplicant and exchange timers.
func (a *Authenticator) FastTimer(ticks uint32) {
	if !a.started {
		return
	}
	pae.TimerUpdate(a.active, a.inactive, ticks, a.kmpTimeout)
}

// SlowTimer runs the group key lifecycle, ages key material and reclaims
// inactive supplicants.
func (a *Authenticator) SlowTimer(seconds uint32) {
	if !a.started {
		return
	}
	a.gtkLifecycle(seconds)
	pae.SlowTimerUpdate(a.active, seconds, a.gtkRetry)
	pae.SlowTimerUpdate(a.inactive, seconds, nil)
	if n := pae.Purge(a.active, a.inactive, a.cfg.MaxSupplicants, a.cfg.MaxPurge); n > 0 {
		perf.SupplicantsPurged.Add(float64(n))
		a.log.Debug("purged supplicants", "count", n, "remaining", a.inactive.Len())
	}
	a.startDedup.DeleteExpired()
}

// NodeKeysRemove drops one node's key material and forgets it.
func (a *Authenticator) NodeKeysRemove(eui state.Eui64) error {
	e, list := a.lookup(eui)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownNode, eui)
	}
	e.Kmps.Free(a.engine.Delete)
	e.Keys.Reset()
	list.Remove(e)
	a.startDedup.Delete(eui)
	a.log.Info("removed node keys", "eui64", eui)
	return nil
}

// NodeAccessRevokeStart revokes every known supplicant. Entries are reclaimed
// by the bounded purge on subsequent slow ticks. The group keys are rotated so
// revoked nodes lose access once the shortened lifetime runs out.
func (a *Authenticator) NodeAccessRevokeStart() {
	n := 0
	a.active.Each(func(e *pae.SupplicantEntry) bool {
		a.revoke(e)
		pae.ToInactive(a.active, a.inactive, e)
		n++
		return true
	})
	a.inactive.Each(func(e *pae.SupplicantEntry) bool {
		if !e.AccessRevoked {
			a.revoke(e)
			n++
		}
		return true
	})
	a.startDedup.DeleteAll()
	a.log.Info("node access revocation started", "supplicants", n)
	if a.started {
		a.revokeGtks()
	}
}

func (a *Authenticator) revoke(e *pae.SupplicantEntry) {
	e.AccessRevoked = true
	e.Kmps.Free(a.engine.Delete)
	e.Keys.Reset()
	e.Ticks.Stop()
	e.RetryTicks.Stop()
}

// NwKeyIndexUpdate switches the broadcast key and tells every exchange in
// flight to use it.
func (a *Authenticator) NwKeyIndexUpdate(index uint8) error {
	if err := a.gtks.SetActive(index); err != nil {
		return fmt.Errorf("key index %d: %w", index, err)
	}
	a.activated(index)
	return nil
}

func (a *Authenticator) activated(index uint8) {
	if a.cb != nil {
		a.cb.NwKeyIndexSet(index)
	}
	a.active.Each(func(e *pae.SupplicantEntry) bool {
		e.Kmps.Each(func(k *pae.KmpEntry) {
			a.engine.KeyIndexSet(k.Kmp, index)
		})
		return true
	})
	a.log.Info("broadcast key index updated", "index", index)
}

// GtksUpdated recomputes the advertised hash after the keys changed. With force
// every active supplicant is updated immediately, otherwise supplicants holding
// a stale hash are updated on their retry countdown.
func (a *Authenticator) GtksUpdated(force bool) {
	if !a.started {
		return
	}
	if a.cb != nil {
		a.cb.NwKeyInsert(&a.gtks, force)
	}
	a.updateHash(force)
	a.active.Each(func(e *pae.SupplicantEntry) bool {
		if force {
			a.pushGtks(e)
		} else if e.Keys.GtkHash != a.gtkHash && !e.RetryTicks.Running() {
			e.RetryTicks.Set(1)
		}
		return true
	})
}

// SetNextGtks replaces the keys used for the next rotations.
func (a *Authenticator) SetNextGtks(next state.GtkSet) error {
	if err := next.Validate(0); err != nil {
		return fmt.Errorf("%w: next gtks: %w", ErrConfig, err)
	}
	a.nextGtks = next
	return nil
}

func (a *Authenticator) NwInfoSet(panId uint16, networkName string, updated bool) error {
	if err := state.NetworkNameValidator(networkName); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	changed := a.panId != panId || a.networkName != networkName
	a.panId = panId
	a.networkName = networkName
	if (changed || updated) && a.cb != nil {
		a.cb.NwInfoUpdated(panId, networkName)
	}
	return nil
}

func (a *Authenticator) updateHash(notify bool) {
	h := a.gtks.Hash()
	if h == a.gtkHash && !notify {
		return
	}
	a.gtkHash = h
	if a.cb != nil {
		a.cb.GtkHashSet(h)
	}
}

func (a *Authenticator) GtkHash() state.GtkHash {
	return a.gtkHash
}

// KeyInfo returns the key information to persist.
func (a *Authenticator) KeyInfo() state.KeyInfo {
	return state.KeyInfo{
		NetworkName: a.networkName,
		PanId:       a.panId,
		Gtks:        a.gtks,
	}
}

type Info struct {
	Iface          state.InterfaceId
	Started        bool
	Active         int
	Inactive       int
	BroadcastIndex uint8
	GtkHash        state.GtkHash
	GtkLifetimes   [state.GtkCount]uint32
	GtkStatus      [state.GtkCount]state.GtkStatus
	NodeLimit      int
}

func (a *Authenticator) Info() Info {
	info := Info{
		Iface:     a.iface,
		Started:   a.started,
		Active:    a.active.Len(),
		Inactive:  a.inactive.Len(),
		GtkHash:   a.gtkHash,
		NodeLimit: a.nodeLimit,
	}
	info.BroadcastIndex, _ = a.gtks.ActiveIndex()
	for i, g := range a.gtks.Gtks {
		if g.Set {
			info.GtkLifetimes[i] = g.Lifetime
			info.GtkStatus[i] = g.Status
		}
	}
	return info
}

// Supplicant returns the entry for a node and whether it is active.
func (a *Authenticator) Supplicant(eui state.Eui64) (*pae.SupplicantEntry, bool) {
	e, list := a.lookup(eui)
	return e, e != nil && list == a.active
}

func (a *Authenticator) lookup(eui state.Eui64) (*pae.SupplicantEntry, *pae.SuppList) {
	if e := a.active.EntryGet(eui); e != nil {
		return e, a.active
	}
	if e := a.inactive.EntryGet(eui); e != nil {
		return e, a.inactive
	}
	return nil, nil
}
