package mock

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/encodeous/wisun/core"
	"github.com/encodeous/wisun/state"
)

// Mesh runs every node of a MeshCfg in process, joined by a Medium.
type Mesh struct {
	Cfg    state.MeshCfg
	Medium *Medium

	mu   sync.Mutex
	envs map[string]*state.Env
	errs []error
	wg   sync.WaitGroup
}

// NewCerts returns a self signed chain for a simulated border router.
func NewCerts(name string) ([]*x509.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour * 24 * 365),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return []*x509.Certificate{cert}, nil
}

// Factory returns the collaborators of a node attached to the medium.
func (m *Medium) Factory(authDelay time.Duration, certs []*x509.Certificate) core.CollaboratorFactory {
	if authDelay == 0 {
		authDelay = DefaultAuthDelay
	}
	return func(env *state.Env) (core.Collaborators, error) {
		r := &Radio{m: m, env: env, addr: env.Eui64}
		c := core.Collaborators{
			Mac:        r,
			Supplicant: &Supplicant{r},
			Routing:    &Routing{r},
			Nud:        &Nud{r},
		}
		if env.Role == state.RoleBorderRouter {
			kt := &KeyTable{}
			m.mu.Lock()
			m.keys[r.addr] = kt
			m.mu.Unlock()
			c.Keys = kt
			c.Kmp = &KmpEngine{r: r, delay: authDelay, live: make(map[*kmpInstance]struct{})}
			c.Certs = certs
		}
		m.attach(r)
		go func() {
			<-env.Context.Done()
			m.detach(r.addr)
		}()
		return c, nil
	}
}

// StartMesh expands and validates cfg, then starts every node. logger picks the
// logger of each node, nil logs nothing.
func StartMesh(cfg state.MeshCfg, seed uint64, logger func(*state.NodeCfg) *slog.Logger) (*Mesh, error) {
	for i := range cfg.Nodes {
		state.ExpandNodeConfig(&cfg.Nodes[i])
	}
	if err := state.MeshConfigValidator(&cfg); err != nil {
		return nil, err
	}
	certs, err := NewCerts("wisun simulation")
	if err != nil {
		return nil, err
	}
	m := &Mesh{
		Cfg:    cfg,
		Medium: NewMedium(&cfg, seed),
		envs:   make(map[string]*state.Env),
	}
	factory := m.Medium.Factory(cfg.AuthDelay, certs)
	for _, node := range cfg.Nodes {
		log := slog.New(slog.DiscardHandler)
		if logger != nil {
			log = logger(&node)
		}
		ready := make(chan *state.Env, 1)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			var s *state.State
			err := core.Start(node, func(env *state.Env) (core.Collaborators, error) {
				ready <- env
				return factory(env)
			}, log, &s)
			if err != nil {
				m.mu.Lock()
				m.errs = append(m.errs, fmt.Errorf("node %s: %w", node.Id, err))
				m.mu.Unlock()
				close(ready)
			}
		}()
		env, ok := <-ready
		if !ok {
			m.Stop()
			return nil, m.Err()
		}
		m.mu.Lock()
		m.envs[node.Id] = env
		m.mu.Unlock()
	}
	return m, nil
}

// Err returns the errors of nodes that failed to start.
func (m *Mesh) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.errs...)
}

// Stop cancels every node and waits for them to clean up.
func (m *Mesh) Stop() {
	m.mu.Lock()
	for _, env := range m.envs {
		env.Cancel(errors.New("mesh stopped"))
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Mesh) env(id string) (*state.Env, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	env, ok := m.envs[id]
	if !ok {
		return nil, fmt.Errorf("unknown node %s", id)
	}
	return env, nil
}

// StackInfo snapshots the bootstrap of a node.
func (m *Mesh) StackInfo(id string) (core.StackInfo, error) {
	env, err := m.env(id)
	if err != nil {
		return core.StackInfo{}, err
	}
	res, err := env.DispatchWait(func(s *state.State) (any, error) {
		return core.Get[*core.Node](s).StackInfo(), nil
	})
	if err != nil {
		return core.StackInfo{}, err
	}
	return res.(core.StackInfo), nil
}

// Inspect renders the state of a node.
func (m *Mesh) Inspect(id string) (string, error) {
	env, err := m.env(id)
	if err != nil {
		return "", err
	}
	res, err := env.DispatchWait(func(s *state.State) (any, error) {
		return core.Get[*core.Node](s).Inspect(), nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// Do runs fun on the dispatch goroutine of a node and waits for it.
func (m *Mesh) Do(id string, fun func(n *core.Node) error) error {
	env, err := m.env(id)
	if err != nil {
		return err
	}
	// errors from fun belong to the caller, the node keeps running
	res, err := env.DispatchWait(func(s *state.State) (any, error) {
		return fun(core.Get[*core.Node](s)), nil
	})
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	return res.(error)
}

// WaitActive polls until every listed node is ACTIVE or the timeout passes.
func (m *Mesh) WaitActive(timeout time.Duration, ids ...string) error {
	deadline := time.Now().Add(timeout)
	for {
		pending := ""
		for _, id := range ids {
			info, err := m.StackInfo(id)
			if err != nil {
				return err
			}
			if info.State != core.StateActive {
				pending = id
				break
			}
		}
		if pending == "" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("node %s is not active after %s", pending, timeout)
		}
		time.Sleep(time.Millisecond * 20)
	}
}
