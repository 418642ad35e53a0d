package mock

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/encodeous/wisun/core"
	"github.com/encodeous/wisun/state"
)

// Latency is the delay applied to every simulated frame.
var Latency = time.Millisecond * 2

type link struct {
	rsl  int16
	loss float64
	down bool
}

// Medium is a simulated radio channel shared by the nodes of a mesh. Frames
// reach every node with a configured link to the sender, subject to the link's
// loss probability.
type Medium struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	nodes   map[state.Eui64]*Radio
	links   map[state.Pair[state.Eui64, state.Eui64]]*link
	ids     map[string]state.Eui64
	br      state.Eui64
	auth    map[state.Eui64]state.Eui64 // supplicant -> relay
	routing map[state.Eui64]uint16      // routing cost of every node with routing up
	keys    map[state.Eui64]*KeyTable
}

// NewMedium builds the medium of a mesh. The first border router in cfg is the
// authenticator for every node.
func NewMedium(cfg *state.MeshCfg, seed uint64) *Medium {
	m := &Medium{
		rnd:     rand.New(rand.NewPCG(seed, seed^0x5eed)),
		nodes:   make(map[state.Eui64]*Radio),
		links:   make(map[state.Pair[state.Eui64, state.Eui64]]*link),
		ids:     make(map[string]state.Eui64),
		auth:    make(map[state.Eui64]state.Eui64),
		routing: make(map[state.Eui64]uint16),
		keys:    make(map[state.Eui64]*KeyTable),
	}
	brSet := false
	for _, n := range cfg.Nodes {
		m.ids[n.Id] = n.Eui64
		if n.Role == state.RoleBorderRouter && !brSet {
			m.br = n.Eui64
			brSet = true
		}
	}
	for _, l := range cfg.Links {
		a, b := m.ids[l.A], m.ids[l.B]
		lk := &link{rsl: l.Rsl, loss: l.Loss}
		m.links[state.Pair[state.Eui64, state.Eui64]{V1: a, V2: b}] = lk
		m.links[state.Pair[state.Eui64, state.Eui64]{V1: b, V2: a}] = lk
	}
	return m
}

func (m *Medium) link(a, b state.Eui64) *link {
	return m.links[state.Pair[state.Eui64, state.Eui64]{V1: a, V2: b}]
}

// SetLinkDown cuts or restores the link between two nodes, by id.
func (m *Medium) SetLinkDown(a, b string, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.link(m.ids[a], m.ids[b]); l != nil {
		l.down = down
	}
}

// Eui64 returns the address of a node by id.
func (m *Medium) Eui64(id string) state.Eui64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[id]
}

// KeyTable returns the key table of a border router, nil if it has not started.
func (m *Medium) KeyTable(id string) *KeyTable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[m.ids[id]]
}

func (m *Medium) attach(r *Radio) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[r.addr] = r
}

func (m *Medium) detach(addr state.Eui64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, addr)
	delete(m.routing, addr)
	delete(m.auth, addr)
}

// reachable reports whether a frame from a to b gets through right now.
func (m *Medium) reachable(a, b state.Eui64) (*Radio, *link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.link(a, b)
	r := m.nodes[b]
	if l == nil || r == nil || l.down {
		return nil, nil, false
	}
	if l.loss > 0 && m.rnd.Float64() < l.loss {
		return nil, nil, false
	}
	return r, l, true
}

// neighbours returns every attached radio linked to addr.
func (m *Medium) neighbours(addr state.Eui64) []state.Eui64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []state.Eui64
	for p := range m.links {
		if p.V1 == addr {
			if _, ok := m.nodes[p.V2]; ok {
				out = append(out, p.V2)
			}
		}
	}
	return out
}

// deliver runs fun on the node at to after Latency, if the frame survives the link.
func (m *Medium) deliver(from, to state.Eui64, fun func(n *core.Node, rsl int16)) bool {
	r, l, ok := m.reachable(from, to)
	if !ok {
		return false
	}
	rsl := l.rsl
	r.pending.Add(1)
	r.env.ScheduleTask(func(s *state.State) error {
		r.pending.Add(-1)
		fun(core.Get[*core.Node](s), rsl)
		return nil
	}, Latency)
	return true
}

func (m *Medium) broadcast(from state.Eui64, fun func(n *core.Node, rsl int16)) {
	for _, to := range m.neighbours(from) {
		m.deliver(from, to, fun)
	}
}

// borderRouter returns the authenticator radio.
func (m *Medium) borderRouter() *Radio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodes[m.br]
}

// Radio is the MAC of one simulated node.
type Radio struct {
	m        *Medium
	env      *state.Env
	addr     state.Eui64
	pending  atomic.Int32
	panId    atomic.Uint32
	schedule atomic.Pointer[state.FhssConfig]
}

func (r *Radio) SendAdvertisementSolicit() {
	name := r.env.NetworkName
	r.m.broadcast(r.addr, func(n *core.Node, _ int16) {
		n.AdvertisementSolicitReceived(r.addr, name)
	})
}

func (r *Radio) SendAdvertisement(adv state.Advertisement) {
	r.m.broadcast(r.addr, func(n *core.Node, rsl int16) {
		n.AdvertisementReceived(r.addr, rsl, adv)
	})
}

func (r *Radio) SendConfigurationSolicit(panId uint16) {
	r.m.broadcast(r.addr, func(n *core.Node, _ int16) {
		n.ConfigurationSolicitReceived(r.addr, panId)
	})
}

func (r *Radio) SendConfiguration(cfg state.PanConfiguration) {
	r.m.broadcast(r.addr, func(n *core.Node, _ int16) {
		n.ConfigurationReceived(r.addr, cfg)
	})
}

func (r *Radio) SetSchedule(schedule state.FhssConfig, panId uint16) error {
	r.schedule.Store(&schedule)
	r.panId.Store(uint32(panId))
	return nil
}

// LinkQuality derives the ETX from the configured loss probability.
func (r *Radio) LinkQuality(addr state.Eui64) (int16, uint16, bool) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	l := r.m.link(r.addr, addr)
	if l == nil || l.down {
		return 0, 0, false
	}
	etx := float64(state.EtxUnit) / max(1-l.loss, 0.01)
	return l.rsl, uint16(min(etx, 0xffff)), true
}

func (r *Radio) TxQueueLen() int {
	return int(r.pending.Load())
}
