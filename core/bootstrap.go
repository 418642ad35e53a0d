package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/encodeous/wisun/perf"
	"github.com/encodeous/wisun/state"
	"github.com/jellydator/ttlcache/v3"
)

var (
	ErrMissingCollaborator = errors.New("missing collaborator")
	ErrNotStarted          = errors.New("bootstrap not started")
)

// slow ticks between "still searching" reports while discovery finds no parent
const searchLogInterval = 30

type BootstrapState uint8

const (
	StateInit BootstrapState = iota
	StateDiscovery
	StateAuthentication
	StateConfiguration
	StateWaitRouting
	StateActive
)

func (s BootstrapState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateDiscovery:
		return "DISCOVERY"
	case StateAuthentication:
		return "AUTHENTICATION"
	case StateConfiguration:
		return "CONFIGURATION"
	case StateWaitRouting:
		return "WAIT_ROUTING"
	case StateActive:
		return "ACTIVE"
	default:
		return fmt.Sprintf("BootstrapState(%d)", uint8(s))
	}
}

// forward edges of the join graph, every other move goes through DISCOVERY
var transitions = map[BootstrapState][]BootstrapState{
	StateInit:           {StateDiscovery},
	StateDiscovery:      {StateAuthentication},
	StateAuthentication: {StateConfiguration, StateDiscovery},
	StateConfiguration:  {StateWaitRouting, StateDiscovery},
	StateWaitRouting:    {StateActive, StateDiscovery},
	StateActive:         {StateDiscovery},
}

// ScoreFunc ranks a candidate parent, higher is better.
type ScoreFunc func(c *state.CandidateParent) int32

type nudState struct {
	attempts  int
	waiting   bool
	deadline  uint64
	nextProbe uint64
}

// Bootstrap drives a node from power on to an operational member of a PAN. All
// methods must be called from the dispatch goroutine.
type Bootstrap struct {
	cfg   *state.NodeCfg
	c     Collaborators
	log   *slog.Logger
	rnd   *rand.Rand
	Score ScoreFunc

	state        BootstrapState
	fastTicks    uint64
	slowTicks    uint64
	stateEntered uint64 // slow tick the current state was entered at

	pas *Trickle // advertisement solicit
	pa  *Trickle // advertisement
	pcs *Trickle // configuration solicit
	pc  *Trickle // configuration

	candidates []*state.CandidateParent
	blacklist  *ttlcache.Cache[state.Eui64, struct{}]
	target     *state.CandidateParent
	parent     *state.CandidateParent

	panId         uint16
	panVersion    uint16
	panConfig     *state.PanConfiguration
	relearn       bool
	configRejects int
	authStarted   uint64

	nud            nudState
	nextLinkSample uint64
	staleVersions  int

	disconnecting bool
	restartAt     uint64
	autoOff       bool

	br *BorderRouter
}

// New creates the bootstrap state machine for a node. rnd seeds the trickle
// timers; if nil one is derived from the node address.
func New(cfg *state.NodeCfg, c Collaborators, log *slog.Logger, rnd *rand.Rand) (*Bootstrap, error) {
	if cfg == nil {
		return nil, errors.New("nil node config")
	}
	switch {
	case c.Mac == nil:
		return nil, fmt.Errorf("%w: mac", ErrMissingCollaborator)
	case c.Supplicant == nil:
		return nil, fmt.Errorf("%w: supplicant", ErrMissingCollaborator)
	case c.Routing == nil:
		return nil, fmt.Errorf("%w: routing", ErrMissingCollaborator)
	case c.Nud == nil:
		return nil, fmt.Errorf("%w: nud", ErrMissingCollaborator)
	}
	if cfg.CandidateTable < 1 {
		return nil, fmt.Errorf("candidate table size %d must be positive", cfg.CandidateTable)
	}
	if log == nil {
		log = slog.Default()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(binary.BigEndian.Uint64(cfg.Eui64[:]), uint64(time.Now().UnixNano())))
	}
	b := &Bootstrap{
		cfg:   cfg,
		c:     c,
		log:   log.With("module", "bootstrap"),
		rnd:   rnd,
		Score: DefaultScore,
		pas:   NewTrickle(state.DiscoveryTrickle, rnd),
		pa:    NewTrickle(state.DiscoveryTrickle, rnd),
		pcs:   NewTrickle(state.ConfigurationTrickle, rnd),
		pc:    NewTrickle(state.ConfigurationTrickle, rnd),
		blacklist: ttlcache.New[state.Eui64, struct{}](
			ttlcache.WithTTL[state.Eui64, struct{}](state.BlacklistTTL),
			ttlcache.WithDisableTouchOnHit[state.Eui64, struct{}](),
		),
	}
	if cfg.Role == state.RoleBorderRouter {
		br, err := newBorderRouter(b)
		if err != nil {
			return nil, err
		}
		b.br = br
	}
	return b, nil
}

// Start brings the node up. A border router walks the whole join graph at once.
func (b *Bootstrap) Start() error {
	if b.state != StateInit {
		return nil
	}
	if b.br != nil {
		return b.br.start()
	}
	b.enterDiscovery("start")
	return nil
}

// Cleanup tears the node down and returns to INIT.
func (b *Bootstrap) Cleanup() {
	if b.br != nil {
		b.br.persist()
	}
	if b.state != StateInit {
		b.c.Supplicant.Cancel()
		b.c.Routing.Stop()
	}
	b.stopTrickles()
	b.candidates = nil
	b.target, b.parent, b.panConfig = nil, nil, nil
	b.disconnecting = false
	b.blacklist.DeleteAll()
	b.state = StateInit
}

func (b *Bootstrap) State() BootstrapState {
	return b.state
}

func (b *Bootstrap) stopTrickles() {
	b.pas.Stop()
	b.pa.Stop()
	b.pcs.Stop()
	b.pc.Stop()
}

func (b *Bootstrap) transition(to BootstrapState) bool {
	if !slices.Contains(transitions[b.state], to) {
		b.log.Warn("illegal bootstrap transition refused", "from", b.state, "to", to)
		return false
	}
	b.log.Info("bootstrap state", "from", b.state, "to", to)
	b.state = to
	b.stateEntered = b.slowTicks
	return true
}

// enterDiscovery (re)starts discovery, resetting everything learnt about the
// current PAN but keeping the candidate table.
func (b *Bootstrap) enterDiscovery(reason string) {
	if b.state == StateDiscovery {
		b.log.Info("restarting discovery", "reason", reason)
		b.stateEntered = b.slowTicks
	} else if !b.transition(StateDiscovery) {
		return
	} else {
		b.log.Debug("entered discovery", "reason", reason)
	}
	b.target, b.parent, b.panConfig = nil, nil, nil
	b.relearn = false
	b.configRejects = 0
	b.staleVersions = 0
	b.nud = nudState{}
	b.stopTrickles()
	b.pas.Start()
}

// FastTimer advances the trickle timers and the authenticator.
func (b *Bootstrap) FastTimer(ticks uint32) {
	b.fastTicks += uint64(ticks)
	if b.br != nil {
		b.br.auth.FastTimer(ticks)
	}
	if b.state == StateInit || b.disconnecting {
		return
	}
	if b.pas.Tick(ticks) && !b.autoOff {
		b.c.Mac.SendAdvertisementSolicit()
	}
	if b.pcs.Tick(ticks) && !b.autoOff {
		b.c.Mac.SendConfigurationSolicit(b.panId)
	}
	if b.pa.Tick(ticks) && !b.autoOff {
		b.sendAdvertisement()
	}
	if b.pc.Tick(ticks) && !b.autoOff {
		b.sendConfiguration()
	}
}

// SlowTimer runs the per second supervision of the current state.
func (b *Bootstrap) SlowTimer(seconds uint32) {
	for range seconds {
		b.slowTicks++
		b.slowStep()
	}
}

func (b *Bootstrap) slowStep() {
	b.blacklist.DeleteExpired()
	if b.br != nil {
		b.br.auth.SlowTimer(1)
		return
	}
	if b.state == StateInit {
		return
	}
	if b.disconnecting {
		if b.slowTicks >= b.restartAt {
			b.disconnecting = false
			b.enterDiscovery("normal disconnect complete")
		}
		return
	}
	b.ageCandidates()
	switch b.state {
	case StateDiscovery:
		b.discoverySlow()
	case StateAuthentication:
		if b.slowTicks-b.authStarted >= uint64(state.AuthenticationTimeout) {
			b.c.Supplicant.Cancel()
			b.authFailed("authentication timed out")
		}
	case StateActive:
		b.activeSlow()
	}
}

func (b *Bootstrap) discoverySlow() {
	dwell := b.slowTicks - b.stateEntered
	if dwell < uint64(state.DiscoveryDwell) {
		return
	}
	c := b.bestAcceptable()
	if c == nil {
		if dwell%searchLogInterval == 0 {
			b.log.Info("still searching for a parent", "candidates", len(b.candidates))
		}
		return
	}
	b.pas.Stop()
	if b.transition(StateAuthentication) {
		b.startAuthentication(c)
	}
}

// startAuthentication issues a single supplicant start against c, moving on to
// the next acceptable candidate if the start is refused.
func (b *Bootstrap) startAuthentication(c *state.CandidateParent) {
	for c != nil {
		b.target = c
		b.panId = c.PanId
		b.authStarted = b.slowTicks
		err := b.c.Supplicant.Start(c.Addr, c.PanId)
		if err == nil {
			b.log.Info("authenticating", "target", c.Addr, "pan_id", fmt.Sprintf("%04x", c.PanId), "score", c.Score)
			return
		}
		b.log.Warn("supplicant start refused", "target", c.Addr, "error", err)
		b.dropCandidate(c.Addr, true)
		c = b.bestAcceptable()
	}
	b.enterDiscovery("candidates exhausted")
}

func (b *Bootstrap) authFailed(reason string) {
	failed := b.target
	b.log.Info("authentication failed", "target", failed.Addr, "reason", reason)
	b.dropCandidate(failed.Addr, true)
	b.target = nil
	if next := b.bestAcceptable(); next != nil {
		b.startAuthentication(next)
		return
	}
	b.enterDiscovery("candidates exhausted")
}

// AuthenticationDone is called by the supplicant when the exchange started by
// Start completes. Completions for an abandoned attempt are ignored.
func (b *Bootstrap) AuthenticationDone(target state.Eui64, ok bool) {
	if b.disconnecting || b.state != StateAuthentication || b.target == nil || b.target.Addr != target {
		b.log.Debug("ignoring stale authentication result", "target", target, "ok", ok)
		return
	}
	if !ok {
		b.authFailed("supplicant reported failure")
		return
	}
	if b.transition(StateConfiguration) {
		b.configRejects = 0
		b.pcs.Stop()
		b.pcs.Start()
	}
}

// RoutingReady is called by the routing layer once the border router is reachable.
func (b *Bootstrap) RoutingReady() {
	if b.disconnecting || b.state != StateWaitRouting || b.br != nil {
		return
	}
	if !b.transition(StateActive) {
		return
	}
	b.enterActive()
}

func (b *Bootstrap) enterActive() {
	b.pa.Start()
	b.pc.Start()
	b.nud = nudState{nextProbe: b.slowTicks + uint64(state.NudProbeInterval)}
	b.nextLinkSample = b.slowTicks + uint64(state.LinkSampleInterval)
	b.staleVersions = 0
}

// FastDisconnect tears down immediately, the parent or border router is presumed lost.
func (b *Bootstrap) FastDisconnect(reason string) {
	if b.state == StateInit {
		return
	}
	if b.br != nil {
		b.log.Warn("border router ignores disconnect", "reason", reason)
		return
	}
	perf.Disconnects.Add(1)
	b.log.Warn("fast disconnect", "reason", reason, "state", b.state)
	lost := b.parent
	b.c.Supplicant.Cancel()
	b.c.Routing.Stop()
	b.disconnecting = false
	if lost != nil {
		b.dropCandidate(lost.Addr, true)
	}
	b.enterDiscovery(reason)
}

// NormalDisconnect withdraws from routing and restarts discovery after
// NormalDisconnectDelay slow ticks.
func (b *Bootstrap) NormalDisconnect(reason string) {
	if b.state == StateInit || b.disconnecting {
		return
	}
	if b.br != nil {
		b.log.Warn("border router ignores disconnect", "reason", reason)
		return
	}
	perf.Disconnects.Add(1)
	b.log.Info("normal disconnect", "reason", reason, "state", b.state)
	b.c.Supplicant.Cancel()
	b.c.Routing.Stop()
	b.stopTrickles()
	// completions for the abandoned join must find nothing to act on
	b.target = nil
	b.parent = nil
	b.nud = nudState{}
	b.disconnecting = true
	b.restartAt = b.slowTicks + uint64(state.NormalDisconnectDelay)
}

func (b *Bootstrap) advertisement() state.Advertisement {
	return state.Advertisement{
		NetworkName: b.cfg.NetworkName,
		PanId:       b.panId,
		Pan: state.PanInformation{
			PanSize:     b.c.Routing.PanSize(),
			RoutingCost: b.c.Routing.RoutingCost(),
			Version:     b.panVersion,
			Flags: state.PanFlags{
				RoutingMethod: state.RoutingMethodRpl,
				FanTpsVersion: 1,
			},
		},
	}
}

func (b *Bootstrap) sendAdvertisement() {
	if b.state != StateActive {
		return
	}
	b.c.Mac.SendAdvertisement(b.advertisement())
}

func (b *Bootstrap) sendConfiguration() {
	if b.state != StateActive || b.panConfig == nil {
		return
	}
	pc := *b.panConfig
	pc.PanVersion = b.panVersion
	b.c.Mac.SendConfiguration(pc)
}

// StackInfo is the diagnostic view of the node.
type StackInfo struct {
	State         BootstrapState
	Role          state.Role
	PanId         uint16
	PanVersion    uint16
	GtkHash       state.GtkHash
	Parent        state.Eui64
	HasParent     bool
	Target        state.Eui64
	Candidates    int
	Relearning    bool
	Disconnecting bool
	SlowTicks     uint64
}

func (b *Bootstrap) StackInfo() StackInfo {
	info := StackInfo{
		State:         b.state,
		Role:          b.cfg.Role,
		PanId:         b.panId,
		PanVersion:    b.panVersion,
		Candidates:    len(b.candidates),
		Relearning:    b.relearn,
		Disconnecting: b.disconnecting,
		SlowTicks:     b.slowTicks,
	}
	if b.panConfig != nil {
		info.GtkHash = b.panConfig.GtkHash
	}
	if b.parent != nil {
		info.Parent = b.parent.Addr
		info.HasParent = true
	}
	if b.target != nil {
		info.Target = b.target.Addr
	}
	return info
}

type NeighborInfo struct {
	Addr        state.Eui64
	Rsl         int16
	Etx         uint16
	Score       int32
	PanId       uint16
	PanSize     uint16
	RoutingCost uint16
	Version     uint16
	Age         uint64 // slow ticks since last heard
	Parent      bool
	Target      bool
}

// NeighborInfo lists the candidate table in ranking order.
func (b *Bootstrap) NeighborInfo() []NeighborInfo {
	out := make([]NeighborInfo, 0, len(b.candidates))
	for _, c := range b.candidates {
		out = append(out, NeighborInfo{
			Addr:        c.Addr,
			Rsl:         c.Rsl,
			Etx:         c.Etx,
			Score:       c.Score,
			PanId:       c.PanId,
			PanSize:     c.Pan.PanSize,
			RoutingCost: c.Pan.RoutingCost,
			Version:     c.Pan.Version,
			Age:         b.slowTicks - c.LastHeard,
			Parent:      b.parent == c,
			Target:      b.target == c,
		})
	}
	return out
}

// BorderRouter returns the border router glue, nil on a router.
func (b *Bootstrap) BorderRouter() *BorderRouter {
	return b.br
}
