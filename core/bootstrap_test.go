package core

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/encodeous/wisun/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCollaborators(t *testing.T) {
	h := NewHarness()
	c := h.Collaborators()
	c.Nud = nil
	_, err := New(testCfg(1, state.RoleRouter), c, nil, nil)
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	c = h.Collaborators()
	c.Keys = nil
	_, err = New(testCfg(1, state.RoleBorderRouter), c, nil, nil)
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	// routers do not need the border router collaborators
	_, err = New(testCfg(1, state.RoleRouter), c, nil, nil)
	assert.NoError(t, err)
}

func TestStartEntersDiscovery(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	assert.Equal(t, StateDiscovery, b.State())
	assert.True(t, b.pas.Running())

	b.FastTimer(state.DiscoveryTrickle.Imin)
	h.GetActions().AssertContains(t, "PAS")
}

func TestSingleAdvertisementStartsOneAuthentication(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.AdvertisementReceived(eui(2), -50, testAdv(5, 3, 10))

	b.SlowTimer(state.DiscoveryDwell - 1)
	assert.Equal(t, StateDiscovery, b.State())
	h.GetActions().AssertNotContains(t, "SUPP_START")

	b.SlowTimer(1)
	assert.Equal(t, StateAuthentication, b.State())
	b.SlowTimer(10)
	a := h.GetActions()
	assert.Equal(t, 1, a.Count("SUPP_START"))
	a.AssertContains(t, "SUPP_START", eui(2), uint16(0xabcd))

	info := b.StackInfo()
	assert.Equal(t, eui(2), info.Target)
	assert.Equal(t, uint16(0xabcd), info.PanId)
	require.Len(t, b.NeighborInfo(), 1)
	assert.Equal(t, int32(43), b.NeighborInfo()[0].Score)
}

func TestWeakCandidateNeverSelected(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.AdvertisementReceived(eui(2), -81, testAdv(5, 0, 0))
	b.SlowTimer(state.DiscoveryDwell * 4)
	assert.Equal(t, StateDiscovery, b.State())
	h.GetActions().AssertNotContains(t, "SUPP_START")
	assert.Equal(t, 1, b.StackInfo().Candidates)
}

func TestForeignAdvertisementsIgnored(t *testing.T) {
	cfg := testCfg(1, state.RoleRouter)
	pinned := uint16(0x1234)
	cfg.PanId = &pinned
	b, _ := newTestBootstrap(t, cfg)

	other := testAdv(5, 0, 0)
	other.NetworkName = "elsewhere"
	b.AdvertisementReceived(eui(2), -50, other)
	b.AdvertisementReceived(eui(3), -50, testAdv(5, 0, 0))
	b.AdvertisementReceived(eui(1), -50, testAdv(5, 0, 0))
	assert.Empty(t, b.NeighborInfo())

	own := testAdv(5, 0, 0)
	own.PanId = pinned
	b.AdvertisementReceived(eui(4), -50, own)
	assert.Len(t, b.NeighborInfo(), 1)
}

func TestDefaultScore(t *testing.T) {
	c := &state.CandidateParent{Rsl: -43}
	assert.Equal(t, int32(50), DefaultScore(c))

	c.Pan = state.PanInformation{PanSize: 128, RoutingCost: 512}
	assert.Equal(t, int32(50-2-2), DefaultScore(c))

	c.Etx = state.EtxUnit * 2
	assert.Equal(t, int32(50-2-2-8), DefaultScore(c))
}

func TestScoreHysteresis(t *testing.T) {
	b, _ := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	a, c := eui(2), eui(3)
	b.AdvertisementReceived(a, -40, testAdv(5, 0, 0)) // 53
	b.AdvertisementReceived(c, -43, testAdv(5, 0, 0)) // 50
	assert.Equal(t, []state.Eui64{a, c}, b.candidateOrder())

	b.AdvertisementReceived(c, -41, testAdv(5, 0, 0)) // 52
	b.AdvertisementReceived(a, -42, testAdv(5, 0, 0)) // 51
	assert.Equal(t, []state.Eui64{a, c}, b.candidateOrder(), "small changes must not reorder")

	b.AdvertisementReceived(c, -37, testAdv(5, 0, 0)) // 56 > 51 + 3
	assert.Equal(t, []state.Eui64{c, a}, b.candidateOrder())

	b.AdvertisementReceived(c, -60, testAdv(5, 0, 0)) // 33
	assert.Equal(t, []state.Eui64{a, c}, b.candidateOrder())
}

func TestNewCandidateInsertedAfterEqualScores(t *testing.T) {
	b, _ := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.AdvertisementReceived(eui(2), -50, testAdv(5, 0, 0))
	b.AdvertisementReceived(eui(3), -50, testAdv(5, 0, 0))
	b.AdvertisementReceived(eui(4), -49, testAdv(5, 0, 0))
	assert.Equal(t, []state.Eui64{eui(4), eui(2), eui(3)}, b.candidateOrder())
}

func TestCandidateEviction(t *testing.T) {
	cfg := testCfg(1, state.RoleRouter)
	cfg.CandidateTable = 3
	b, _ := newTestBootstrap(t, cfg)

	b.AdvertisementReceived(eui(2), -50, testAdv(5, 0, 0))
	b.AdvertisementReceived(eui(3), -60, testAdv(5, 0, 0))
	b.AdvertisementReceived(eui(4), -55, testAdv(5, 0, 0))
	b.AdvertisementReceived(eui(5), -45, testAdv(5, 0, 0))
	assert.Equal(t, []state.Eui64{eui(5), eui(2), eui(4)}, b.candidateOrder())

	// a newcomer tying the minimum is the later entry and goes first
	b.AdvertisementReceived(eui(6), -55, testAdv(5, 0, 0))
	assert.Equal(t, []state.Eui64{eui(5), eui(2), eui(4)}, b.candidateOrder())
}

func TestCandidateEvictionRemovesMinimum(t *testing.T) {
	cfg := testCfg(1, state.RoleRouter)
	cfg.CandidateTable = 5
	b, _ := newTestBootstrap(t, cfg)
	rnd := rand.New(rand.NewPCG(7, 7))

	scores := make(map[state.Eui64]int32)
	for i := range 200 {
		addr := eui(byte(i%50 + 2))
		rsl := int16(-90 + rnd.IntN(60))
		b.AdvertisementReceived(addr, rsl, testAdv(5, 0, 0))
		scores[addr] = DefaultScore(&state.CandidateParent{Rsl: rsl})

		require.LessOrEqual(t, len(b.candidates), cfg.CandidateTable)
		present := make(map[state.Eui64]bool)
		minKept := int32(1 << 30)
		for _, c := range b.candidates {
			present[c.Addr] = true
			minKept = min(minKept, c.Score)
			require.Equal(t, scores[c.Addr], c.Score)
		}
		if !present[addr] {
			assert.LessOrEqual(t, scores[addr], minKept, "evicted newcomer must have the lowest score")
		}
	}
}

func TestCandidateAgeing(t *testing.T) {
	b, _ := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.AdvertisementReceived(eui(2), -85, testAdv(5, 0, 0))
	b.SlowTimer(state.CandidateMaxAge)
	assert.Len(t, b.NeighborInfo(), 1)
	b.SlowTimer(1)
	assert.Empty(t, b.NeighborInfo())
}

func TestAuthenticationFailureFallsBack(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.AdvertisementReceived(eui(2), -40, testAdv(5, 0, 0))
	b.AdvertisementReceived(eui(3), -50, testAdv(5, 0, 0))
	b.SlowTimer(state.DiscoveryDwell)
	h.GetActions().AssertContains(t, "SUPP_START", eui(2))

	b.AuthenticationDone(eui(2), false)
	assert.Equal(t, StateAuthentication, b.State())
	a := h.GetActions()
	a.AssertContains(t, "SUPP_START", eui(3))
	assert.Equal(t, 1, a.Count("SUPP_START"))

	b.AuthenticationDone(eui(3), false)
	assert.Equal(t, StateDiscovery, b.State())
	assert.True(t, b.pas.Running())
	assert.Empty(t, b.NeighborInfo())

	// failed parents stay out of the table for a while
	b.AdvertisementReceived(eui(2), -40, testAdv(5, 0, 0))
	assert.Empty(t, b.NeighborInfo())
}

func TestSupplicantStartRefused(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	h.SuppErr = errors.New("busy")
	b.AdvertisementReceived(eui(2), -40, testAdv(5, 0, 0))
	b.AdvertisementReceived(eui(3), -50, testAdv(5, 0, 0))
	b.SlowTimer(state.DiscoveryDwell)
	assert.Equal(t, StateDiscovery, b.State())
	assert.Equal(t, 2, h.GetActions().Count("SUPP_START"))
}

func TestAuthenticationTimeout(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.AdvertisementReceived(eui(2), -40, testAdv(5, 0, 0))
	b.SlowTimer(state.DiscoveryDwell)
	h.GetActions()

	b.SlowTimer(state.AuthenticationTimeout - 1)
	assert.Equal(t, StateAuthentication, b.State())
	b.SlowTimer(1)
	assert.Equal(t, StateDiscovery, b.State())
	h.GetActions().AssertContains(t, "SUPP_CANCEL")
}

func TestStaleAuthenticationResultIgnored(t *testing.T) {
	b, _ := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.AuthenticationDone(eui(2), true)
	assert.Equal(t, StateDiscovery, b.State())

	b.AdvertisementReceived(eui(2), -40, testAdv(5, 0, 0))
	b.SlowTimer(state.DiscoveryDwell)
	b.AuthenticationDone(eui(3), true)
	assert.Equal(t, StateAuthentication, b.State())
}

func TestFullJoin(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	a := h.GetActions()
	a.AssertContains(t, "SET_SCHEDULE", uint16(0xabcd))
	a.AssertContains(t, "ROUTING_START", eui(2))
	a.AssertNotContains(t, "GTK_HASH")

	info := b.StackInfo()
	assert.True(t, info.HasParent)
	assert.Equal(t, eui(2), info.Parent)
	assert.Equal(t, uint16(5), info.PanVersion)
	assert.True(t, b.pa.Running())
	assert.True(t, b.pc.Running())
	assert.False(t, b.pas.Running())

	h.PanSize = 4
	b.FastTimer(state.DiscoveryTrickle.Imin)
	a = h.GetActions()
	a.AssertContains(t, "PA", uint16(0xabcd), uint16(5))
	a.AssertContains(t, "PC", uint16(0xabcd), uint16(5))
}

func TestConfigurationFromOtherNodeIgnored(t *testing.T) {
	b, _ := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.AdvertisementReceived(eui(2), -40, testAdv(5, 0, 0))
	b.SlowTimer(state.DiscoveryDwell)
	b.AuthenticationDone(eui(2), true)
	b.ConfigurationReceived(eui(3), testPanConfig(5))
	assert.Equal(t, StateConfiguration, b.State())
}

func TestConfigurationRejected(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.AdvertisementReceived(eui(2), -40, testAdv(5, 0, 0))
	b.SlowTimer(state.DiscoveryDwell)
	b.AuthenticationDone(eui(2), true)

	bad := testPanConfig(5)
	bad.Schedule.UnicastFunction = state.ChannelFunctionVendor
	for range state.ConfigurationMaxRejects - 1 {
		b.ConfigurationReceived(eui(2), bad)
		assert.Equal(t, StateConfiguration, b.State())
	}
	b.ConfigurationReceived(eui(2), bad)
	assert.Equal(t, StateDiscovery, b.State())
	a := h.GetActions()
	a.AssertNotContains(t, "ROUTING_START")
	a.AssertNotContains(t, "SET_SCHEDULE")
}

func TestRoutingReadyOutsideWaitRouting(t *testing.T) {
	b, _ := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.RoutingReady()
	assert.Equal(t, StateDiscovery, b.State())
}

func TestIllegalTransitionRefused(t *testing.T) {
	b, _ := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	assert.False(t, b.transition(StateActive))
	assert.False(t, b.transition(StateConfiguration))
	assert.Equal(t, StateDiscovery, b.State())
	assert.True(t, b.transition(StateAuthentication))
}

func TestNewerVersionTriggersRelearn(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	h.GetActions()

	b.AdvertisementReceived(eui(3), -60, testAdv(7, 0, 0))
	assert.True(t, b.StackInfo().Relearning)
	assert.True(t, b.pcs.Running())
	b.FastTimer(state.ConfigurationTrickle.Imin)
	h.GetActions().AssertContains(t, "PCS")

	pc := testPanConfig(7)
	pc.GtkHash[0][0] = 1
	b.ConfigurationReceived(eui(3), pc)
	info := b.StackInfo()
	assert.False(t, info.Relearning)
	assert.Equal(t, uint16(7), info.PanVersion)
	assert.False(t, b.pcs.Running())
	h.GetActions().AssertContains(t, "GTK_HASH", pc.GtkHash)
	assert.Equal(t, StateActive, b.State())
}

func TestStaleVersionIgnored(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	h.GetActions()

	b.AdvertisementReceived(eui(3), -60, testAdv(4, 0, 0))
	b.AdvertisementReceived(eui(3), -60, testAdv(4, 0, 0))
	b.AdvertisementReceived(eui(3), -60, testAdv(4, 0, 0))
	info := b.StackInfo()
	assert.False(t, info.Relearning)
	assert.False(t, info.Disconnecting)
	assert.Equal(t, uint16(5), info.PanVersion)
	assert.Equal(t, StateActive, b.State())
}

func TestParentVersionRegressionDisconnects(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	h.GetActions()

	for range state.VersionRegressionLimit - 1 {
		b.AdvertisementReceived(eui(2), -50, testAdv(4, 3, 10))
	}
	assert.False(t, b.StackInfo().Disconnecting)
	b.AdvertisementReceived(eui(2), -50, testAdv(5, 3, 10))
	b.AdvertisementReceived(eui(2), -50, testAdv(4, 3, 10))
	assert.False(t, b.StackInfo().Disconnecting, "a current version resets the count")

	for range state.VersionRegressionLimit - 1 {
		b.AdvertisementReceived(eui(2), -50, testAdv(4, 3, 10))
	}
	assert.True(t, b.StackInfo().Disconnecting)
	h.GetActions().AssertContains(t, "ROUTING_STOP")
}

func TestNormalDisconnectRestartsAfterDelay(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	h.GetActions()

	b.NormalDisconnect("test")
	a := h.GetActions()
	a.AssertContains(t, "SUPP_CANCEL")
	a.AssertContains(t, "ROUTING_STOP")
	assert.True(t, b.StackInfo().Disconnecting)

	// nothing is transmitted while withdrawing
	b.FastTimer(state.DiscoveryTrickle.Imax * 2)
	assert.Empty(t, h.GetActions())

	b.SlowTimer(state.NormalDisconnectDelay - 1)
	assert.Equal(t, StateActive, b.State())
	b.SlowTimer(1)
	assert.Equal(t, StateDiscovery, b.State())
	assert.False(t, b.StackInfo().Disconnecting)
	assert.True(t, b.pas.Running())
	assert.False(t, b.pa.Running())
	// the parent is still a valid candidate
	assert.Len(t, b.NeighborInfo(), 1)
}

func TestRoutingReadyDuringNormalDisconnect(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.AdvertisementReceived(eui(2), -50, testAdv(5, 3, 10))
	b.SlowTimer(state.DiscoveryDwell)
	b.AuthenticationDone(eui(2), true)
	b.ConfigurationReceived(eui(2), testPanConfig(5))
	require.Equal(t, StateWaitRouting, b.State())

	b.NormalDisconnect("test")
	b.RoutingReady()
	assert.Equal(t, StateWaitRouting, b.State())
	assert.False(t, b.pa.Running())
	assert.False(t, b.StackInfo().HasParent)

	b.SlowTimer(state.NormalDisconnectDelay)
	assert.Equal(t, StateDiscovery, b.State())
	h.GetActions().AssertNotContains(t, "PA")
}

func TestAuthenticationDoneDuringNormalDisconnect(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	b.AdvertisementReceived(eui(2), -40, testAdv(5, 0, 0))
	b.AdvertisementReceived(eui(3), -50, testAdv(5, 0, 0))
	b.SlowTimer(state.DiscoveryDwell)
	h.GetActions().AssertContains(t, "SUPP_START", eui(2))

	b.NormalDisconnect("test")
	b.AuthenticationDone(eui(2), false)
	h.GetActions().AssertNotContains(t, "SUPP_START")
	assert.Equal(t, StateAuthentication, b.State())

	b.AuthenticationDone(eui(3), true)
	assert.Equal(t, StateAuthentication, b.State())
	assert.False(t, b.pcs.Running())
	info := b.StackInfo()
	assert.True(t, info.Disconnecting)
	assert.Equal(t, state.Eui64{}, info.Target)

	b.SlowTimer(state.NormalDisconnectDelay)
	assert.Equal(t, StateDiscovery, b.State())
	assert.True(t, b.pas.Running())
}

func TestNudResultDuringNormalDisconnect(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	b.SlowTimer(state.NudProbeInterval)
	h.GetActions().AssertContains(t, "NUD_PROBE", eui(2))

	b.NormalDisconnect("test")
	for range state.NudMaxAttempts {
		b.NudResult(eui(2), false)
	}
	b.SlowTimer(state.NudProbeTimeout)
	assert.Equal(t, StateActive, b.State())
	assert.True(t, b.StackInfo().Disconnecting)
	a := h.GetActions()
	a.AssertNotContains(t, "NUD_PROBE")
	assert.Equal(t, 1, a.Count("ROUTING_STOP"))
}

func TestDiscoveryWithoutDwell(t *testing.T) {
	dwell := state.DiscoveryDwell
	state.DiscoveryDwell = 0
	t.Cleanup(func() { state.DiscoveryDwell = dwell })

	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	assert.NotPanics(t, func() {
		b.SlowTimer(1)
		b.SlowTimer(searchLogInterval * 2)
	})
	assert.Equal(t, StateDiscovery, b.State())

	b.AdvertisementReceived(eui(2), -40, testAdv(5, 0, 0))
	b.SlowTimer(1)
	assert.Equal(t, StateAuthentication, b.State())
	h.GetActions().AssertContains(t, "SUPP_START", eui(2))
}

func TestFastDisconnect(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	h.GetActions()

	b.FastDisconnect("test")
	assert.Equal(t, StateDiscovery, b.State())
	a := h.GetActions()
	a.AssertContains(t, "SUPP_CANCEL")
	a.AssertContains(t, "ROUTING_STOP")
	info := b.StackInfo()
	assert.False(t, info.HasParent)
	assert.Zero(t, info.Candidates)
	assert.True(t, b.pas.Running())
	assert.False(t, b.pa.Running())
	assert.False(t, b.pc.Running())
}

func TestNudFailureDisconnects(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	h.GetActions()

	b.SlowTimer(state.NudProbeInterval)
	h.GetActions().AssertContains(t, "NUD_PROBE", eui(2))
	b.NudResult(eui(2), true)
	b.SlowTimer(state.NudProbeInterval - 1)
	h.GetActions().AssertNotContains(t, "NUD_PROBE")
	b.SlowTimer(1)
	h.GetActions().AssertContains(t, "NUD_PROBE", eui(2))

	for range state.NudMaxAttempts - 1 {
		b.NudResult(eui(2), false)
		assert.Equal(t, StateActive, b.State())
		b.SlowTimer(1)
		h.GetActions().AssertContains(t, "NUD_PROBE", eui(2))
	}
	b.NudResult(eui(3), false)
	assert.Equal(t, StateActive, b.State(), "results for other neighbours are ignored")
	b.NudResult(eui(2), false)
	assert.Equal(t, StateDiscovery, b.State())
}

func TestNudTimeoutDisconnects(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	b.SlowTimer(state.NudProbeInterval)
	for range state.NudMaxAttempts - 1 {
		b.SlowTimer(state.NudProbeTimeout)
		assert.Equal(t, StateActive, b.State())
	}
	b.SlowTimer(state.NudProbeTimeout)
	assert.Equal(t, StateDiscovery, b.State())
	assert.Equal(t, state.NudMaxAttempts, h.GetActions().Count("NUD_PROBE"))

	// a late answer to the abandoned probe changes nothing
	b.NudResult(eui(2), true)
	assert.Equal(t, StateDiscovery, b.State())
}

func TestLinkSampling(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	h.SetLink(eui(2), -60, state.EtxUnit*2)

	b.SlowTimer(state.LinkSampleInterval)
	n := b.NeighborInfo()
	require.Len(t, n, 1)
	assert.Equal(t, int16(-60), n[0].Rsl)
	assert.Equal(t, uint16(state.EtxUnit*2), n[0].Etx)
	assert.Equal(t, int32(33-8), n[0].Score)
	assert.True(t, n[0].Parent)
}

func TestSolicitsResetTrickle(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	b.FastTimer(state.DiscoveryTrickle.Imax * 4)
	h.GetActions()

	b.AdvertisementSolicitReceived(eui(9), testNetwork)
	b.ConfigurationSolicitReceived(eui(9), 0xabcd)
	b.FastTimer(state.DiscoveryTrickle.Imin)
	a := h.GetActions()
	a.AssertContains(t, "PA")
	a.AssertContains(t, "PC")
}

func TestCleanupReturnsToInit(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	joinActive(t, b, eui(2), 5)
	b.Cleanup()
	assert.Equal(t, StateInit, b.State())
	assert.Empty(t, b.NeighborInfo())
	h.GetActions()

	b.FastTimer(1000)
	b.AdvertisementReceived(eui(2), -40, testAdv(5, 0, 0))
	assert.Empty(t, h.GetActions())
	assert.Empty(t, b.NeighborInfo())
}

func TestTestProcedures(t *testing.T) {
	b, h := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	require.NoError(t, b.TestProcedureTrigger(TestPas))
	h.GetActions().AssertContains(t, "PAS")
	assert.ErrorIs(t, b.TestProcedureTrigger(TestPa), ErrTestProcedure)
	assert.ErrorIs(t, b.TestProcedureTrigger(TestEapol), ErrTestProcedure)
	assert.ErrorIs(t, b.TestProcedureTrigger(TestProcedure(99)), ErrTestProcedure)

	require.NoError(t, b.TestProcedureTrigger(TestAutoOff))
	b.FastTimer(state.DiscoveryTrickle.Imax * 4)
	h.GetActions().AssertNotContains(t, "PAS")
	require.NoError(t, b.TestProcedureTrigger(TestAutoOn))

	joinActive(t, b, eui(2), 5)
	h.GetActions()
	require.NoError(t, b.TestProcedureTrigger(TestPa))
	require.NoError(t, b.TestProcedureTrigger(TestPc))
	require.NoError(t, b.TestProcedureTrigger(TestDio))
	a := h.GetActions()
	a.AssertContains(t, "PA")
	a.AssertContains(t, "PC")
	a.AssertContains(t, "TRIGGER", TestDio)

	idle, err := New(testCfg(3, state.RoleRouter), h.Collaborators(), slog.New(slog.DiscardHandler), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, idle.TestProcedureTrigger(TestPas), ErrNotStarted)
}

func TestBootstrapStateString(t *testing.T) {
	assert.Equal(t, "WAIT_ROUTING", StateWaitRouting.String())
	assert.Equal(t, "AUTO_OFF", TestAutoOff.String())
}

func TestInspect(t *testing.T) {
	b, _ := newTestBootstrap(t, testCfg(1, state.RoleRouter))
	out := b.Inspect()
	assert.Contains(t, out, "DISCOVERY")
	assert.Contains(t, out, "(none)")

	joinActive(t, b, eui(2), 5)
	out = b.Inspect()
	assert.Contains(t, out, "ACTIVE")
	assert.Contains(t, out, "parent "+eui(2).String())
	assert.Contains(t, out, "[parent]")
}
