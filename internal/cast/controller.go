package cast

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledcast/caster/internal/action"
	"github.com/ledcast/caster/internal/config"
	"github.com/ledcast/caster/internal/device"
	"github.com/ledcast/caster/internal/logging"
)

// Controller owns the process-global set of running casts sharing one
// Device registry and one Action registry (spec.md §5: "cast_names ... and
// cast_name_todo ... mutated only under a per-kind mutex"). One Controller
// runs per castd process.
type Controller struct {
	devices *device.Registry
	actions *action.Registry

	queueDepth  int
	busAddr     string
	newRecorder func(cfg config.RecordConfig, castName string, destinations []string) (Recorder, error)

	mu    sync.Mutex
	casts map[string]*Cast
}

// NewController builds a Controller. queueDepth is the default C2 bound
// applied to every cast's sendqueues; busAddr is the shared frame bus
// address used by `queue`-sourced casts (empty if C10 isn't running).
// newRecorder may be nil until C14 is wired in, in which case record_enabled
// casts simply run without a recorder.
func NewController(queueDepth int, busAddr string, newRecorder func(cfg config.RecordConfig, castName string, destinations []string) (Recorder, error)) *Controller {
	return &Controller{
		devices:     device.NewRegistry(),
		actions:     action.NewRegistry(),
		queueDepth:  queueDepth,
		busAddr:     busAddr,
		newRecorder: newRecorder,
		casts:       make(map[string]*Cast),
	}
}

// Actions exposes the shared action registry so the control surface (C13)
// and CLI can enqueue entries directly.
func (ctl *Controller) Actions() *action.Registry { return ctl.actions }

// Devices exposes the shared device registry for status reporting.
func (ctl *Controller) Devices() *device.Registry { return ctl.devices }

// liveNames reports whether name currently identifies a registered cast,
// used by action.Registry.Take to garbage-collect entries for dead casts.
func (ctl *Controller) liveNames(name string) bool {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	_, ok := ctl.casts[name]
	return ok
}

// StartCast validates uniqueness, builds a Cast, and runs its Opening
// phase. On success the cast is registered and its Running/Closing loop is
// already in flight; on failure nothing is registered.
func (ctl *Controller) StartCast(ctx context.Context, cfg config.CastConfig) (*Cast, error) {
	ctl.mu.Lock()
	if _, exists := ctl.casts[cfg.Name]; exists {
		ctl.mu.Unlock()
		return nil, fmt.Errorf("cast controller: cast %q already running", cfg.Name)
	}
	ctl.mu.Unlock()

	deps := Deps{
		Devices:     ctl.devices,
		Actions:     ctl.actions,
		QueueDepth:  ctl.queueDepth,
		BusAddr:     ctl.busAddr,
		LiveNames:   ctl.liveNames,
		NewRecorder: ctl.newRecorder,
	}
	c := New(cfg, deps)
	if err := c.Start(ctx); err != nil {
		return nil, err
	}

	ctl.mu.Lock()
	ctl.casts[cfg.Name] = c
	ctl.mu.Unlock()

	go ctl.reapWhenDone(c)

	return c, nil
}

// reapWhenDone removes a cast from the registry once it reaches Terminated,
// so a later StartCast with the same name doesn't collide with a finished
// run and so action GC (liveNames) stops protecting its stale todo entries.
func (ctl *Controller) reapWhenDone(c *Cast) {
	<-c.Done()
	ctl.mu.Lock()
	delete(ctl.casts, c.Name())
	ctl.mu.Unlock()
	log.Debug("cast reaped from controller", logging.KeyCastName, c.Name())
}

// StopCast requests the named cast stop at its next tick boundary. Returns
// an error if no such cast is running.
func (ctl *Controller) StopCast(name string) error {
	ctl.mu.Lock()
	c, ok := ctl.casts[name]
	ctl.mu.Unlock()
	if !ok {
		return fmt.Errorf("cast controller: no running cast named %q", name)
	}
	c.Stop()
	return nil
}

// Get returns the named running cast, if any.
func (ctl *Controller) Get(name string) (*Cast, bool) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	c, ok := ctl.casts[name]
	return c, ok
}

// List returns a snapshot of every currently registered cast's stats.
func (ctl *Controller) List() []Snapshot {
	ctl.mu.Lock()
	casts := make([]*Cast, 0, len(ctl.casts))
	for _, c := range ctl.casts {
		casts = append(casts, c)
	}
	ctl.mu.Unlock()

	out := make([]Snapshot, 0, len(casts))
	for _, c := range casts {
		out = append(out, c.Stats())
	}
	return out
}

// StopAll requests every running cast stop, for a clean daemon shutdown
// (spec.md §5's "global exit event").
func (ctl *Controller) StopAll() {
	ctl.mu.Lock()
	casts := make([]*Cast, 0, len(ctl.casts))
	for _, c := range ctl.casts {
		casts = append(casts, c)
	}
	ctl.mu.Unlock()

	for _, c := range casts {
		c.Stop()
	}
	for _, c := range casts {
		<-c.Done()
	}
}
