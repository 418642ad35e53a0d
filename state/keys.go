package state

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrKeyIndex      = errors.New("gtk index out of range")
	ErrDuplicateKey  = errors.New("gtk installed in more than one slot")
	ErrMultiActive   = errors.New("more than one active gtk")
	ErrLifetimeRange = errors.New("gtk lifetime out of range")
)

type GtkKey [16]byte

func NewGtkKey() (GtkKey, error) {
	var k GtkKey
	_, err := rand.Read(k[:])
	return k, err
}

func (k GtkKey) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(k[:])), nil
}

func (k *GtkKey) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(k) {
		return fmt.Errorf("invalid gtk length %d", len(b))
	}
	copy(k[:], b)
	return nil
}

type GtkStatus uint8

const (
	GtkStatusNew GtkStatus = iota
	GtkStatusFresh
	GtkStatusActive
	GtkStatusOld
)

func (s GtkStatus) String() string {
	switch s {
	case GtkStatusNew:
		return "new"
	case GtkStatusFresh:
		return "fresh"
	case GtkStatusActive:
		return "active"
	case GtkStatusOld:
		return "old"
	default:
		return "unknown"
	}
}

type Gtk struct {
	Set          bool      `yaml:"set"`
	Key          GtkKey    `yaml:"key"`
	Lifetime     uint32    `yaml:"lifetime"` // seconds remaining
	Status       GtkStatus `yaml:"status"`
	InstallOrder uint8     `yaml:"install_order"`
}

// GtkSet holds the group keys of a PAN, indexed by key index.
type GtkSet struct {
	Gtks [GtkCount]Gtk `yaml:"gtks"`
}

// GtkHash is the truncated SHA-256 of each installed key, zero for empty slots.
type GtkHash [GtkCount][8]byte

func (h GtkHash) String() string {
	s := ""
	for i, v := range h {
		if i > 0 {
			s += " "
		}
		s += hex.EncodeToString(v[:])
	}
	return s
}

func (g *GtkSet) Hash() GtkHash {
	var h GtkHash
	for i, gtk := range g.Gtks {
		if !gtk.Set {
			continue
		}
		sum := sha256.Sum256(gtk.Key[:])
		copy(h[i][:], sum[:8])
	}
	return h
}

func (g *GtkSet) Count() int {
	n := 0
	for _, gtk := range g.Gtks {
		if gtk.Set {
			n++
		}
	}
	return n
}

// ActiveIndex returns the key index currently used for broadcast traffic.
func (g *GtkSet) ActiveIndex() (uint8, bool) {
	for i, gtk := range g.Gtks {
		if gtk.Set && gtk.Status == GtkStatusActive {
			return uint8(i), true
		}
	}
	return 0, false
}

// SetActive makes index the broadcast key, demoting the previous one to old.
func (g *GtkSet) SetActive(index uint8) error {
	if int(index) >= GtkCount || !g.Gtks[index].Set {
		return ErrKeyIndex
	}
	for i := range g.Gtks {
		if g.Gtks[i].Set && g.Gtks[i].Status == GtkStatusActive && uint8(i) != index {
			g.Gtks[i].Status = GtkStatusOld
		}
	}
	g.Gtks[index].Status = GtkStatusActive
	return nil
}

func (g *GtkSet) nextOrder() uint8 {
	var order uint8
	for _, gtk := range g.Gtks {
		if gtk.Set && gtk.InstallOrder >= order {
			order = gtk.InstallOrder + 1
		}
	}
	return order
}

func (g *GtkSet) Insert(index uint8, key GtkKey, lifetime uint32) error {
	if int(index) >= GtkCount {
		return ErrKeyIndex
	}
	g.Gtks[index] = Gtk{
		Set:          true,
		Key:          key,
		Lifetime:     lifetime,
		Status:       GtkStatusNew,
		InstallOrder: g.nextOrder(),
	}
	return nil
}

func (g *GtkSet) Remove(index uint8) {
	if int(index) < GtkCount {
		g.Gtks[index] = Gtk{}
	}
}

// FreeIndex returns the slot the next key should be installed to: an empty slot
// if there is one, otherwise the oldest key that is not active.
func (g *GtkSet) FreeIndex() (uint8, bool) {
	for i, gtk := range g.Gtks {
		if !gtk.Set {
			return uint8(i), true
		}
	}
	best := -1
	for i, gtk := range g.Gtks {
		if gtk.Status == GtkStatusActive {
			continue
		}
		if best == -1 || gtk.InstallOrder < g.Gtks[best].InstallOrder {
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	return uint8(best), true
}

// Validate checks the structural consistency of a key set restored from storage.
func (g *GtkSet) Validate(maxLifetime uint32) error {
	active := 0
	for i, gtk := range g.Gtks {
		if !gtk.Set {
			continue
		}
		if gtk.Status == GtkStatusActive {
			active++
		}
		if maxLifetime != 0 && gtk.Lifetime > maxLifetime {
			return fmt.Errorf("gtk %d: %w", i, ErrLifetimeRange)
		}
		if gtk.Status > GtkStatusOld {
			return fmt.Errorf("gtk %d: invalid status %d", i, gtk.Status)
		}
		for j := i + 1; j < GtkCount; j++ {
			if g.Gtks[j].Set && g.Gtks[j].Key == gtk.Key {
				return fmt.Errorf("gtk %d and %d: %w", i, j, ErrDuplicateKey)
			}
		}
	}
	if active > 1 {
		return ErrMultiActive
	}
	return nil
}
