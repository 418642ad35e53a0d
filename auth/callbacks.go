package auth

import (
	"net/netip"

	"github.com/encodeous/wisun/pae"
	"github.com/encodeous/wisun/state"
)

// Callbacks is how the authenticator reaches the rest of the stack. It never
// touches neighbour tables, addressing or admission policy directly.
type Callbacks interface {
	// GtkHashSet publishes the hash advertised in PAN configuration frames.
	GtkHashSet(hash state.GtkHash)
	// NwKeyInsert installs the group keys, reporting whether anything changed.
	NwKeyInsert(gtks *state.GtkSet, force bool) bool
	// NwKeysRemove uninstalls the keys at the given indexes.
	NwKeysRemove(indexes []uint8)
	// NwKeyIndexSet selects the broadcast key index.
	NwKeyIndexSet(index uint8)
	// NwInfoUpdated reports a PAN id or network name change.
	NwInfoUpdated(panId uint16, networkName string)
	IpAddressGet() netip.Addr
	// CongestionGet reports whether a new negotiation should be refused.
	CongestionGet(activeSupplicants int) bool
}

// KmpService is the KMP engine. It owns the cryptographic exchanges; the
// authenticator only starts, times and deletes them. Completion is reported
// through Authenticator.KmpFinished.
type KmpService interface {
	Create(t pae.KmpType, supp *pae.SupplicantEntry) (pae.Kmp, error)
	// Timeout is called when an exchange's retry timer expires. It returns the
	// ticks until the next retry, or zero to abort the exchange.
	Timeout(k pae.Kmp) uint32
	Delete(k pae.Kmp)
	KeyIndexSet(k pae.Kmp, index uint8)
}
