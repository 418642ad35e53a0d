package core

import (
	"errors"
	"fmt"
	"slices"

	"github.com/encodeous/wisun/state"
)

var (
	ErrChannelPlan     = errors.New("unsupported channel plan")
	ErrChannelFunction = errors.New("unsupported channel function")
	ErrSchedule        = errors.New("invalid schedule timing")
	ErrNetworkName     = errors.New("network name mismatch")
)

const minUnicastDwell = 15 // ms

// ValidateSchedule checks that a distributed schedule can be followed with the
// local radio capability.
func ValidateSchedule(local *state.NodeCfg, s state.FhssConfig) error {
	n := s.Plan.NumChannels()
	if s.Plan.Explicit {
		if n == 0 || s.Plan.SpacingKhz == 0 || s.Plan.Ch0Khz == 0 {
			return fmt.Errorf("%w: incomplete explicit plan", ErrChannelPlan)
		}
		if n > local.MaxChannels {
			return fmt.Errorf("%w: %d channels exceeds %d", ErrChannelPlan, n, local.MaxChannels)
		}
	} else {
		if s.Plan.RegulatoryDomain != local.RegulatoryDomain {
			return fmt.Errorf("%w: regulatory domain %s, local %s", ErrChannelPlan, s.Plan.RegulatoryDomain, local.RegulatoryDomain)
		}
		if n == 0 {
			return fmt.Errorf("%w: unknown operating class %d", ErrChannelPlan, s.Plan.OperatingClass)
		}
		if len(local.OperatingClasses) > 0 && !slices.Contains(local.OperatingClasses, s.Plan.OperatingClass) {
			return fmt.Errorf("%w: operating class %d", ErrChannelPlan, s.Plan.OperatingClass)
		}
	}
	for _, f := range []state.ChannelFunction{s.UnicastFunction, s.BroadcastFunction} {
		if !slices.Contains(local.ChannelFunctions, f) {
			return fmt.Errorf("%w: %s", ErrChannelFunction, f)
		}
	}
	if (s.UnicastFunction == state.ChannelFunctionFixed || s.BroadcastFunction == state.ChannelFunctionFixed) && s.FixedChannel >= n {
		return fmt.Errorf("%w: fixed channel %d outside plan", ErrChannelFunction, s.FixedChannel)
	}
	if s.UnicastDwell < minUnicastDwell {
		return fmt.Errorf("%w: unicast dwell %dms", ErrSchedule, s.UnicastDwell)
	}
	if s.BroadcastInterval != 0 && s.BroadcastInterval <= uint32(s.BroadcastDwell) {
		return fmt.Errorf("%w: broadcast dwell %dms does not fit interval %dms", ErrSchedule, s.BroadcastDwell, s.BroadcastInterval)
	}
	return nil
}

// validateConfiguration checks a PAN configuration frame against the local node.
func validateConfiguration(local *state.NodeCfg, panId uint16, pc *state.PanConfiguration) error {
	if pc.NetworkName != local.NetworkName {
		return fmt.Errorf("%w: %q", ErrNetworkName, pc.NetworkName)
	}
	if pc.PanId != panId {
		return fmt.Errorf("pan id %04x, expected %04x", pc.PanId, panId)
	}
	return ValidateSchedule(local, pc.Schedule)
}
