package mock

import (
	"errors"
	"net/netip"
	"sync"

	"github.com/encodeous/wisun/core"
	"github.com/encodeous/wisun/pae"
	"github.com/encodeous/wisun/state"
)

var ErrNoBorderRouter = errors.New("border router unreachable")

// Supplicant relays EAPOL through the target to the border router of the medium.
type Supplicant struct {
	r *Radio
}

func (s *Supplicant) Start(target state.Eui64, panId uint16) error {
	m := s.r.m
	if _, _, ok := m.reachable(s.r.addr, target); !ok {
		return errors.New("target unreachable")
	}
	br := m.borderRouter()
	if br == nil {
		return ErrNoBorderRouter
	}
	m.mu.Lock()
	m.auth[s.r.addr] = target
	m.mu.Unlock()

	self := s.r.addr
	relay := netip.AddrPortFrom(target.LinkLocal(), state.EapolRelayPort)
	br.env.ScheduleTask(func(bs *state.State) error {
		node := core.Get[*core.Node](bs).BorderRouter()
		if node == nil {
			return nil
		}
		err := node.Authenticator().SupplicantMessage(pae.SuppAddr{Eui64: self, Relay: relay}, pae.KmpIeee8021x)
		if err != nil {
			bs.Log.Debug("eapol start refused", "supplicant", self, "error", err)
			s.r.env.ScheduleTask(func(ss *state.State) error {
				core.Get[*core.Node](ss).AuthenticationDone(target, false)
				return nil
			}, Latency)
		}
		return nil
	}, Latency)
	return nil
}

func (s *Supplicant) Cancel() {
	m := s.r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.auth, s.r.addr)
}

func (s *Supplicant) GtkHashChanged(hash state.GtkHash) {
	s.r.env.Log.Debug("group keys changed", "gtk_hash", hash)
}

// Routing is a stand in for RPL: readiness is reported once the parent is
// reachable and the cost grows by one perfect link per hop.
type Routing struct {
	r *Radio
}

func (rt *Routing) Start(parent state.Eui64) error {
	m := rt.r.m
	m.mu.Lock()
	cost, ok := m.routing[parent]
	if ok {
		m.routing[rt.r.addr] = cost + state.EtxUnit
	}
	m.mu.Unlock()
	if !ok {
		return errors.New("parent has no route to the border router")
	}
	rt.r.env.ScheduleTask(func(s *state.State) error {
		core.Get[*core.Node](s).RoutingReady()
		return nil
	}, Latency)
	return nil
}

func (rt *Routing) StartRoot() error {
	m := rt.r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routing[rt.r.addr] = 0
	return nil
}

func (rt *Routing) Stop() {
	m := rt.r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.routing, rt.r.addr)
}

func (rt *Routing) RoutingCost() uint16 {
	m := rt.r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.routing[rt.r.addr]
}

func (rt *Routing) PanSize() uint16 {
	m := rt.r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint16(len(m.routing))
}

func (rt *Routing) Trigger(p core.TestProcedure) {
	rt.r.env.Log.Info("routing test procedure", "procedure", p)
}

// Nud answers a probe after Latency, unreachable if the link is down or lossy.
type Nud struct {
	r *Radio
}

func (n *Nud) Probe(addr state.Eui64) {
	_, _, ok := n.r.m.reachable(n.r.addr, addr)
	n.r.env.ScheduleTask(func(s *state.State) error {
		core.Get[*core.Node](s).NudResult(addr, ok)
		return nil
	}, Latency)
}

// KeyTable records the group keys installed in a border router radio.
type KeyTable struct {
	mu    sync.Mutex
	keys  [state.GtkCount]*state.GtkKey
	index uint8
}

func (k *KeyTable) Install(index uint8, key state.GtkKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[index] = &key
}

func (k *KeyTable) Remove(index uint8) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[index] = nil
}

func (k *KeyTable) SetIndex(index uint8) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.index = index
}

// Installed returns the number of installed keys and the broadcast index.
func (k *KeyTable) Installed() (int, uint8) {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, key := range k.keys {
		if key != nil {
			n++
		}
	}
	return n, k.index
}
