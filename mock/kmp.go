package mock

import (
	"time"

	"github.com/encodeous/wisun/core"
	"github.com/encodeous/wisun/pae"
	"github.com/encodeous/wisun/state"
)

// DefaultAuthDelay is used when the mesh does not configure one.
var DefaultAuthDelay = time.Millisecond * 50

const kmpMaxRetries = 3

type kmpInstance struct {
	t        pae.KmpType
	supp     state.Eui64
	retries  int
	keyIndex uint8
}

func (k *kmpInstance) Type() pae.KmpType {
	return k.t
}

// KmpEngine completes every exchange successfully after a fixed delay. It runs
// on the border router dispatch goroutine only.
type KmpEngine struct {
	r     *Radio
	delay time.Duration
	live  map[*kmpInstance]struct{}
}

func (e *KmpEngine) Create(t pae.KmpType, supp *pae.SupplicantEntry) (pae.Kmp, error) {
	k := &kmpInstance{t: t, supp: supp.Addr.Eui64}
	e.live[k] = struct{}{}
	e.r.env.ScheduleTask(func(s *state.State) error {
		e.complete(s, k)
		return nil
	}, e.delay)
	return k, nil
}

func (e *KmpEngine) complete(s *state.State, k *kmpInstance) {
	if _, ok := e.live[k]; !ok {
		return
	}
	br := core.Get[*core.Node](s).BorderRouter()
	if br == nil {
		return
	}
	br.Authenticator().KmpFinished(k.supp, k, true)
	if k.t != pae.KmpFourWayHandshake {
		return
	}
	m := e.r.m
	m.mu.Lock()
	target, joining := m.auth[k.supp]
	supp := m.nodes[k.supp]
	m.mu.Unlock()
	if !joining || supp == nil {
		return
	}
	supp.env.ScheduleTask(func(s *state.State) error {
		core.Get[*core.Node](s).AuthenticationDone(target, true)
		return nil
	}, Latency)
}

func (e *KmpEngine) Timeout(kmp pae.Kmp) uint32 {
	k := kmp.(*kmpInstance)
	k.retries++
	if k.retries >= kmpMaxRetries {
		return 0
	}
	return state.KmpRetryTicks
}

func (e *KmpEngine) Delete(kmp pae.Kmp) {
	delete(e.live, kmp.(*kmpInstance))
}

func (e *KmpEngine) KeyIndexSet(kmp pae.Kmp, index uint8) {
	kmp.(*kmpInstance).keyIndex = index
}
