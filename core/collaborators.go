package core

import (
	"crypto/x509"

	"github.com/encodeous/wisun/auth"
	"github.com/encodeous/wisun/state"
)

// Mac is the radio. Frame encoding and the hopping schedule computation live behind it.
type Mac interface {
	SendAdvertisementSolicit()
	SendAdvertisement(adv state.Advertisement)
	SendConfigurationSolicit(panId uint16)
	SendConfiguration(cfg state.PanConfiguration)
	SetSchedule(schedule state.FhssConfig, panId uint16) error
	// LinkQuality returns the current RSL and ETX towards a neighbour.
	LinkQuality(addr state.Eui64) (rsl int16, etx uint16, ok bool)
	TxQueueLen() int
}

// Supplicant is the node side of the PAE. Start returns immediately, the result
// is reported through Bootstrap.AuthenticationDone.
type Supplicant interface {
	Start(target state.Eui64, panId uint16) error
	Cancel()
	GtkHashChanged(hash state.GtkHash)
}

// Routing is the IPv6 routing layer. Readiness is reported through Bootstrap.RoutingReady.
type Routing interface {
	Start(parent state.Eui64) error
	StartRoot() error
	Stop()
	// RoutingCost is the cost from this node to the border router, in ETX units.
	RoutingCost() uint16
	PanSize() uint16
	Trigger(p TestProcedure)
}

// Nud probes neighbour reachability. Results are reported through Bootstrap.NudResult.
type Nud interface {
	Probe(addr state.Eui64)
}

// KeyTable holds the group keys used by the radio on the border router.
type KeyTable interface {
	Install(index uint8, key state.GtkKey)
	Remove(index uint8)
	SetIndex(index uint8)
}

type Collaborators struct {
	Mac        Mac
	Supplicant Supplicant
	Routing    Routing
	Nud        Nud

	// border router only
	Keys  KeyTable
	Kmp   auth.KmpService
	Certs []*x509.Certificate
}
