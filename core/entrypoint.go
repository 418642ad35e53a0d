package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"reflect"
	"runtime"
	"time"

	"github.com/encodeous/tint"
	"github.com/encodeous/wisun/perf"
	"github.com/encodeous/wisun/state"
	slogmulti "github.com/samber/slog-multi"
)

// CollaboratorFactory builds the layers below and beside the bootstrap once the
// node environment exists, so they can dispatch events back onto the node.
type CollaboratorFactory func(env *state.Env) (Collaborators, error)

// NewLogger builds the node logger, writing to stderr and to cfg.LogPath if set.
// The returned closer releases the log file.
func NewLogger(cfg *state.NodeCfg, level slog.Level, w io.Writer) (*slog.Logger, func() error, error) {
	if w == nil {
		w = os.Stderr
	}
	handlers := []slog.Handler{
		tint.NewHandler(w, &tint.Options{
			Level:        level,
			AddSource:    false,
			TimeFormat:   "15:04:05.000",
			CustomPrefix: cfg.Id,
		}),
	}
	closer := func() error { return nil }
	if cfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(cfg.LogPath), 0700)
		if err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(cfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
		closer = f.Close
	}
	return slog.New(slogmulti.Fanout(handlers...)).With("node", cfg.Id), closer, nil
}

// Start runs a node until its context is cancelled. If initState is not nil it
// receives the node state as soon as it exists. Signals are left to the caller,
// which may host many nodes in one process.
func Start(cfg state.NodeCfg, factory CollaboratorFactory, logger *slog.Logger, initState **state.State) error {
	ctx, cancel := context.WithCancelCause(context.Background())
	dispatch := make(chan func(s *state.State) error, 128)

	if logger == nil {
		logger = slog.Default()
	}

	s := state.State{
		Modules: make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			NodeCfg:         cfg,
			Log:             logger,
		},
	}
	if initState != nil {
		*initState = &s
	}

	s.Log.Debug("init modules")
	err := initModules(&s, factory)
	if err != nil {
		cancel(err)
		Stop(&s)
		return err
	}
	s.Log.Debug("init modules complete")

	return MainLoop(&s, dispatch)
}

func initModules(s *state.State, factory CollaboratorFactory) error {
	modules := []state.Module{
		&Node{factory: factory},
	}
	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > time.Millisecond*4 {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Debug("stopped main loop", "reason", context.Cause(s.Context).Error())
	Stop(s)
	return nil
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Debug("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop", "module", moduleName, "error", err)
		}
	}
	s.Log.Info("stopped")
}

func Get[T state.Module](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}
