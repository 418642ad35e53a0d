//go:build integration

package integration

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/encodeous/wisun/core"
	"github.com/encodeous/wisun/mock"
	"github.com/encodeous/wisun/state"
)

// Speedup shrinks every protocol timer so a mesh converges in well under a second.
func Speedup() {
	state.FastTickInterval = time.Millisecond * 5
	state.FastTicksPerSlow = 4
	state.DiscoveryDwell = 3
	state.DiscoveryTrickle = state.TrickleParams{Imin: 4, Imax: 32, K: 1}
	state.ConfigurationTrickle = state.TrickleParams{Imin: 4, Imax: 32, K: 1}
	state.NudProbeInterval = 10
	state.NudProbeTimeout = 3
	state.LinkSampleInterval = 5
	state.BlacklistTTL = time.Millisecond * 200
	state.EapolStartDedupTTL = time.Millisecond * 50
	state.AuthenticationTimeout = 50
	mock.Latency = time.Millisecond
}

// MeshBuilder assembles a MeshCfg for tests.
type MeshBuilder struct {
	Cfg  state.MeshCfg
	next byte
}

func schedule() state.FhssConfig {
	return state.FhssConfig{
		Plan:              state.ChannelPlan{RegulatoryDomain: state.RegDomainNA, OperatingClass: 1},
		UnicastFunction:   state.ChannelFunctionDh1cf,
		BroadcastFunction: state.ChannelFunctionDh1cf,
		UnicastDwell:      255,
		BroadcastInterval: 1020,
		BroadcastDwell:    255,
	}
}

func (b *MeshBuilder) add(id string, role state.Role) *MeshBuilder {
	b.next++
	b.Cfg.Nodes = append(b.Cfg.Nodes, state.NodeCfg{
		Id:               id,
		Eui64:            state.Eui64{0x02, 0, 0, 0, 0, 0, 0, b.next},
		Role:             role,
		NetworkName:      "wisun-it",
		RegulatoryDomain: state.RegDomainNA,
		Schedule:         schedule(),
	})
	return b
}

func (b *MeshBuilder) BorderRouter(id string) *MeshBuilder {
	return b.add(id, state.RoleBorderRouter)
}

func (b *MeshBuilder) Router(id string) *MeshBuilder {
	return b.add(id, state.RoleRouter)
}

func (b *MeshBuilder) Link(a, c string, rsl int16) *MeshBuilder {
	b.Cfg.Links = append(b.Cfg.Links, state.LinkCfg{A: a, B: c, Rsl: rsl})
	return b
}

func (b *MeshBuilder) Start() (*mock.Mesh, error) {
	if b.Cfg.AuthDelay == 0 {
		b.Cfg.AuthDelay = time.Millisecond * 10
	}
	var logger func(*state.NodeCfg) *slog.Logger
	if os.Getenv("WISUN_IT_LOG") != "" {
		logger = func(n *state.NodeCfg) *slog.Logger {
			log, _, err := core.NewLogger(n, slog.LevelDebug, os.Stderr)
			if err != nil {
				panic(err)
			}
			return log
		}
	}
	return mock.StartMesh(b.Cfg, 1, logger)
}

// WaitFor polls cond on the state of a node until it holds.
func WaitFor(m *mock.Mesh, id string, timeout time.Duration, cond func(core.StackInfo) bool) error {
	deadline := time.Now().Add(timeout)
	for {
		info, err := m.StackInfo(id)
		if err != nil {
			return err
		}
		if cond(info) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("node %s: condition not met after %s, state %s", id, timeout, info.State)
		}
		time.Sleep(time.Millisecond * 10)
	}
}
