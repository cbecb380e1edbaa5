// Package singleton owns one globally shared Instance and hands it out
// through several construction strategies: single-check locking,
// double-check locking, first-use initialization behind a run-once latch,
// and eager initialization.
//
// A Registry also remembers the identity of every instance it has built so
// that a driver can check, after a burst of concurrent accesses, that exactly
// one was created.
package singleton

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map"

	"github.com/zhuanxuhit/singleton-notes/mutex/guard"
	"github.com/zhuanxuhit/singleton-notes/once"
)

var (
	// ErrModeMismatch is returned when a lazy strategy is used on an eager
	// registry or the eager strategy on a lazy one.
	ErrModeMismatch = errors.New("singleton: strategy does not match registry mode")
	// ErrNotInitialized is returned by EagerInit when the eager instance could
	// not be rebuilt after a Reset.
	ErrNotInitialized = errors.New("singleton: eager instance not initialized")
	// ErrUnknownStrategy is returned for a strategy name or value the
	// registry does not know.
	ErrUnknownStrategy = errors.New("singleton: unknown strategy")
)

// Option configures a Registry.
type Option func(*Registry)

// WithFactory replaces NewInstance as the way instances are built.
func WithFactory(f Factory) Option {
	return func(r *Registry) {
		r.factory = f
	}
}

// WithLogger sets the logger used to report instance creation.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithCreateHook registers f to be called after every successful creation.
// f runs inside the creation critical section and must not access r.
func WithCreateHook(f func(Strategy, *Instance)) Option {
	return func(r *Registry) {
		r.hooks = append(r.hooks, f)
	}
}

// Registry holds the shared instance slot, the guard protecting its
// creation and the set of identities created so far.
//
// Create one with New or NewEager; the zero value is not usable. Reset must
// not run concurrently with any access.
type Registry struct {
	// slot is published with a release store after the instance is fully
	// built and read with an acquire load.
	slot  atomic.Pointer[Instance]
	guard guard.Mutex

	// static is only written inside staticOnce.
	static     *Instance
	staticOnce once.Latch

	refs cmap.ConcurrentMap

	mode    Mode
	factory Factory
	logger  *slog.Logger
	hooks   []func(Strategy, *Instance)
}

// New returns an empty lazy registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		refs: cmap.New(),
		mode: Lazy,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.factory == nil {
		r.factory = NewInstance
	}
	return r
}

// NewEager returns an eager registry whose instance is already built.
func NewEager(opts ...Option) (*Registry, error) {
	r := New(opts...)
	r.mode = Eager
	if _, err := r.create(EagerInit); err != nil {
		return nil, err
	}
	return r, nil
}

// MustNewEager is like NewEager but panics if the instance cannot be built.
func MustNewEager(opts ...Option) *Registry {
	r, err := NewEager(opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Mode returns whether r is lazy or eager.
func (r *Registry) Mode() Mode {
	return r.mode
}

// Reset empties the slot, the first-use latch and the identity set. An eager
// registry rebuilds its instance straight away; if that fails, EagerInit
// returns ErrNotInitialized until the next successful Reset.
func (r *Registry) Reset() {
	r.slot.Store(nil)
	r.static = nil
	r.staticOnce.Reset()
	r.refs = cmap.New()
	r.guard.ResetAcquisitions()

	if r.mode == Eager {
		if _, err := r.create(EagerInit); err != nil {
			r.logger.Warn("eager instance rebuild failed", slog.String("error", err.Error()))
		}
	}
}

// UniqueReferenceCount returns how many distinct instances have been
// recorded since the last Reset. It is a diagnostic for quiescent points.
func (r *Registry) UniqueReferenceCount() int {
	return r.refs.Count()
}

// References returns the recorded identities in sorted order.
func (r *Registry) References() []string {
	keys := r.refs.Keys()
	sort.Strings(keys)
	return keys
}

// GuardAcquisitions returns how many times the creation guard was taken
// since the last Reset.
func (r *Registry) GuardAcquisitions() int64 {
	return r.guard.Acquisitions()
}

// GuardHolders returns how many goroutines currently hold or wait for the
// creation guard.
func (r *Registry) GuardHolders() int {
	return r.guard.Count()
}

// Peek returns the slot contents without creating anything.
func (r *Registry) Peek() *Instance {
	return r.slot.Load()
}

// Access dispatches to the accessor for s.
func (r *Registry) Access(s Strategy) (*Instance, error) {
	switch s {
	case SingleCheckLocking:
		return r.SingleCheckLocking()
	case DoubleCheckLocking:
		return r.DoubleCheckLocking()
	case FirstUseStaticInit:
		return r.FirstUseStaticInit()
	case EagerInit:
		return r.EagerInit()
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
}

// SingleCheckLocking takes the guard, creates the instance if the slot is
// empty, and returns the slot. Every call serializes on the guard.
func (r *Registry) SingleCheckLocking() (*Instance, error) {
	if r.mode != Lazy {
		return nil, r.mismatch(SingleCheckLocking)
	}

	r.guard.Lock()
	defer r.guard.Unlock()

	if inst := r.slot.Load(); inst != nil {
		return inst, nil
	}
	return r.create(SingleCheckLocking)
}

// DoubleCheckLocking returns the slot without locking once it is set. While
// it is empty, callers take the guard and check again before creating.
func (r *Registry) DoubleCheckLocking() (*Instance, error) {
	if r.mode != Lazy {
		return nil, r.mismatch(DoubleCheckLocking)
	}

	if inst := r.slot.Load(); inst != nil {
		return inst, nil
	}
	return r.doubleCheckSlow()
}

func (r *Registry) doubleCheckSlow() (*Instance, error) {
	r.guard.Lock()
	defer r.guard.Unlock()

	// another caller may have created it while we waited for the guard
	if inst := r.slot.Load(); inst != nil {
		return inst, nil
	}
	return r.create(DoubleCheckLocking)
}

// FirstUseStaticInit returns a dedicated instance built by the first caller.
// Callers racing with the first one wait on the latch rather than the guard.
// The identity is recorded on every call.
func (r *Registry) FirstUseStaticInit() (*Instance, error) {
	if r.mode != Lazy {
		return nil, r.mismatch(FirstUseStaticInit)
	}

	err := r.staticOnce.Do(func() error {
		inst, err := r.build(FirstUseStaticInit)
		if err != nil {
			return err
		}
		r.static = inst
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Do returning nil means the latch stored Done after f returned, so the
	// write to r.static is visible here without the lock.
	inst := r.static
	key := inst.Key()
	if !r.refs.Has(key) {
		r.refs.SetIfAbsent(key, inst)
	}
	return inst, nil
}

// EagerInit returns the instance built when the registry was created.
// It never takes the guard.
func (r *Registry) EagerInit() (*Instance, error) {
	if r.mode != Eager {
		return nil, r.mismatch(EagerInit)
	}

	inst := r.slot.Load()
	if inst == nil {
		return nil, ErrNotInitialized
	}
	return inst, nil
}

// create builds an instance, records it and publishes it in the slot.
// Callers other than the eager constructor must hold the guard.
func (r *Registry) create(s Strategy) (*Instance, error) {
	inst, err := r.build(s)
	if err != nil {
		return nil, err
	}
	r.refs.Set(inst.Key(), inst)
	r.slot.Store(inst)
	return inst, nil
}

func (r *Registry) build(s Strategy) (*Instance, error) {
	inst, err := r.factory()
	if err != nil {
		r.logger.Debug("instance creation failed",
			slog.String("strategy", s.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("singleton: %s: %w", s, err)
	}
	r.logger.Debug("instance created",
		slog.String("strategy", s.String()),
		slog.String("id", inst.Key()))
	for _, hook := range r.hooks {
		hook(s, inst)
	}
	return inst, nil
}

func (r *Registry) mismatch(s Strategy) error {
	return fmt.Errorf("%w: %s on %s registry", ErrModeMismatch, s, r.mode)
}
