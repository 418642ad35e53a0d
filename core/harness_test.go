package core

import (
	"crypto/x509"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/encodeous/wisun/pae"
	"github.com/encodeous/wisun/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

type linkQuality struct {
	rsl int16
	etx uint16
}

// Harness records every call the bootstrap makes into its collaborators.
type Harness struct {
	actions     []HarnessEvent
	links       map[state.Eui64]linkQuality
	SuppErr     error
	RoutingErr  error
	ScheduleErr error
	TxQueue     int
	PanSize     uint16
	RoutingCost uint16
}

func NewHarness() *Harness {
	return &Harness{links: make(map[state.Eui64]linkQuality)}
}

func (h *Harness) record(msg string, args ...any) {
	h.actions = append(h.actions, MakeEvent(msg, args...))
}

func (h *Harness) SetLink(addr state.Eui64, rsl int16, etx uint16) {
	h.links[addr] = linkQuality{rsl, etx}
}

func (h *Harness) Collaborators() Collaborators {
	return Collaborators{
		Mac:        harnessMac{h},
		Supplicant: harnessSupplicant{h},
		Routing:    harnessRouting{h},
		Nud:        harnessNud{h},
		Keys:       harnessKeys{h},
		Kmp:        harnessKmp{h},
		Certs:      []*x509.Certificate{{}},
	}
}

type harnessMac struct{ h *Harness }

func (m harnessMac) SendAdvertisementSolicit() {
	m.h.record("PAS")
}

func (m harnessMac) SendAdvertisement(adv state.Advertisement) {
	m.h.record("PA", adv.PanId, adv.Pan.Version)
}

func (m harnessMac) SendConfigurationSolicit(panId uint16) {
	m.h.record("PCS", panId)
}

func (m harnessMac) SendConfiguration(cfg state.PanConfiguration) {
	m.h.record("PC", cfg.PanId, cfg.PanVersion)
}

func (m harnessMac) SetSchedule(schedule state.FhssConfig, panId uint16) error {
	m.h.record("SET_SCHEDULE", panId)
	return m.h.ScheduleErr
}

func (m harnessMac) LinkQuality(addr state.Eui64) (int16, uint16, bool) {
	l, ok := m.h.links[addr]
	return l.rsl, l.etx, ok
}

func (m harnessMac) TxQueueLen() int {
	return m.h.TxQueue
}

type harnessSupplicant struct{ h *Harness }

func (s harnessSupplicant) Start(target state.Eui64, panId uint16) error {
	s.h.record("SUPP_START", target, panId)
	return s.h.SuppErr
}

func (s harnessSupplicant) Cancel() {
	s.h.record("SUPP_CANCEL")
}

func (s harnessSupplicant) GtkHashChanged(hash state.GtkHash) {
	s.h.record("GTK_HASH", hash)
}

type harnessRouting struct{ h *Harness }

func (r harnessRouting) Start(parent state.Eui64) error {
	r.h.record("ROUTING_START", parent)
	return r.h.RoutingErr
}

func (r harnessRouting) StartRoot() error {
	r.h.record("ROUTING_ROOT")
	return r.h.RoutingErr
}

func (r harnessRouting) Stop() {
	r.h.record("ROUTING_STOP")
}

func (r harnessRouting) RoutingCost() uint16 {
	return r.h.RoutingCost
}

func (r harnessRouting) PanSize() uint16 {
	return r.h.PanSize
}

func (r harnessRouting) Trigger(p TestProcedure) {
	r.h.record("TRIGGER", p)
}

type harnessNud struct{ h *Harness }

func (n harnessNud) Probe(addr state.Eui64) {
	n.h.record("NUD_PROBE", addr)
}

type harnessKeys struct{ h *Harness }

func (k harnessKeys) Install(index uint8, key state.GtkKey) {
	k.h.record("KEY_INSTALL", index)
}

func (k harnessKeys) Remove(index uint8) {
	k.h.record("KEY_REMOVE", index)
}

func (k harnessKeys) SetIndex(index uint8) {
	k.h.record("KEY_INDEX", index)
}

type harnessKmpInstance struct {
	t    pae.KmpType
	supp state.Eui64
}

func (k *harnessKmpInstance) Type() pae.KmpType {
	return k.t
}

type harnessKmp struct{ h *Harness }

func (k harnessKmp) Create(t pae.KmpType, supp *pae.SupplicantEntry) (pae.Kmp, error) {
	k.h.record("KMP_CREATE", t, supp.Addr.Eui64)
	return &harnessKmpInstance{t: t, supp: supp.Addr.Eui64}, nil
}

func (k harnessKmp) Timeout(kmp pae.Kmp) uint32 {
	return 0
}

func (k harnessKmp) Delete(kmp pae.Kmp) {}

func (k harnessKmp) KeyIndexSet(kmp pae.Kmp, index uint8) {}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns the recorded calls and clears the record.
func (h *Harness) GetActions() HarnessEvents {
	x := h.actions
	h.actions = make([]HarnessEvent, 0)
	return x
}

func (e HarnessEvents) Count(msg string) int {
	n := 0
	for _, event := range e {
		if event.Message == msg {
			n++
		}
	}
	return n
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message != msg || len(event.Args) < len(args) {
			continue
		}
		match := true
		for i, arg := range args {
			if !cmp.Equal(event.Args[i], arg) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

const testNetwork = "wisun-test"

func eui(n byte) state.Eui64 {
	return state.Eui64{0x02, 0, 0, 0, 0, 0, 0, n}
}

func testSchedule() state.FhssConfig {
	return state.FhssConfig{
		Plan:              state.ChannelPlan{RegulatoryDomain: state.RegDomainNA, OperatingClass: 1},
		UnicastFunction:   state.ChannelFunctionDh1cf,
		BroadcastFunction: state.ChannelFunctionDh1cf,
		UnicastDwell:      255,
		BroadcastInterval: 1020,
		BroadcastDwell:    255,
	}
}

func testCfg(n byte, role state.Role) *state.NodeCfg {
	cfg := &state.NodeCfg{
		Eui64:            eui(n),
		Role:             role,
		NetworkName:      testNetwork,
		RegulatoryDomain: state.RegDomainNA,
		Schedule:         testSchedule(),
	}
	state.ExpandNodeConfig(cfg)
	return cfg
}

func newTestBootstrap(t *testing.T, cfg *state.NodeCfg) (*Bootstrap, *Harness) {
	t.Helper()
	h := NewHarness()
	b, err := New(cfg, h.Collaborators(), slog.New(slog.DiscardHandler), rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	require.NoError(t, b.Start())
	return b, h
}

func testAdv(version, size, cost uint16) state.Advertisement {
	return state.Advertisement{
		NetworkName: testNetwork,
		PanId:       0xabcd,
		Pan: state.PanInformation{
			PanSize:     size,
			RoutingCost: cost,
			Version:     version,
		},
	}
}

func testPanConfig(version uint16) state.PanConfiguration {
	return state.PanConfiguration{
		NetworkName: testNetwork,
		PanId:       0xabcd,
		PanVersion:  version,
		Schedule:    testSchedule(),
	}
}

func (b *Bootstrap) candidateOrder() []state.Eui64 {
	out := make([]state.Eui64, 0, len(b.candidates))
	for _, c := range b.candidates {
		out = append(out, c.Addr)
	}
	return out
}

// joinActive drives a router through the whole join against parent.
func joinActive(t *testing.T, b *Bootstrap, parent state.Eui64, version uint16) {
	t.Helper()
	b.AdvertisementReceived(parent, -50, testAdv(version, 3, 10))
	b.SlowTimer(state.DiscoveryDwell)
	require.Equal(t, StateAuthentication, b.State())
	b.AuthenticationDone(parent, true)
	require.Equal(t, StateConfiguration, b.State())
	b.ConfigurationReceived(parent, testPanConfig(version))
	require.Equal(t, StateWaitRouting, b.State())
	b.RoutingReady()
	require.Equal(t, StateActive, b.State())
}
