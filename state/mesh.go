package state

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"
)

// Eui64 is the MAC address of a mesh node.
type Eui64 [8]byte

func (e Eui64) String() string {
	var sb strings.Builder
	for i, b := range e {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(hex.EncodeToString([]byte{b}))
	}
	return sb.String()
}

func (e Eui64) IsZero() bool {
	return e == Eui64{}
}

// LinkLocal returns the IPv6 link local address derived from the EUI-64.
func (e Eui64) LinkLocal() netip.Addr {
	var a [16]byte
	a[0], a[1] = 0xfe, 0x80
	copy(a[8:], e[:])
	a[8] ^= 0x02
	return netip.AddrFrom16(a)
}

func (e Eui64) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Eui64) UnmarshalText(text []byte) error {
	s := strings.ReplaceAll(strings.TrimSpace(string(text)), ":", "")
	s = strings.ReplaceAll(s, "-", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid eui64 %q: %w", text, err)
	}
	if len(b) != len(e) {
		return fmt.Errorf("invalid eui64 %q: expected %d bytes, got %d", text, len(e), len(b))
	}
	copy(e[:], b)
	return nil
}

func ParseEui64(s string) (Eui64, error) {
	var e Eui64
	err := e.UnmarshalText([]byte(s))
	return e, err
}

type RoutingMethod uint8

const (
	RoutingMethodMhds RoutingMethod = iota
	RoutingMethodRpl
)

// PanFlags are the flag bits carried next to the PAN information counters.
type PanFlags struct {
	UseParentBsIe  bool
	RoutingMethod  RoutingMethod
	LfnWindowStyle bool
	FanTpsVersion  uint8 // 3 bits on the wire
}

// PanInformation is what a router advertises about its position in the PAN.
type PanInformation struct {
	PanSize     uint16
	RoutingCost uint16
	Version     uint16
	Flags       PanFlags
}

// PanCost is the cost of joining a PAN through this advertisement.
func (p PanInformation) PanCost() uint16 {
	return p.RoutingCost/PrcWeightFactor + p.PanSize/PsWeightFactor
}

// Advertisement is a decoded PAN advertisement frame.
type Advertisement struct {
	NetworkName string
	PanId       uint16
	Pan         PanInformation
}

// PanConfiguration is a decoded PAN configuration frame.
type PanConfiguration struct {
	NetworkName string
	PanId       uint16
	PanVersion  uint16
	GtkHash     GtkHash
	Schedule    FhssConfig
}

// CandidateParent is a neighbour heard during discovery.
type CandidateParent struct {
	Addr      Eui64
	Rsl       int16  // received signal level, dBm
	Etx       uint16 // expected transmission count, EtxUnit is a perfect link
	PanId     uint16
	Pan       PanInformation
	Score     int32
	LastHeard uint64 // slow tick counter value when last heard
}

// Acceptable reports whether the link is strong enough to select as a parent.
func (c *CandidateParent) Acceptable() bool {
	return c.Rsl >= DeviceMinSens+CandParentThreshold+CandParentHysteresis
}

// InterfaceId identifies the network interface a component is bound to. Negative ids are invalid.
type InterfaceId int8
