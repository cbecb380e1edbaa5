package singleton

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFactory = errors.New("factory failed")

// failingFactory fails the first n calls and then builds normally.
func failingFactory(n int) (Factory, *int) {
	calls := 0
	return func() (*Instance, error) {
		calls++
		if calls <= n {
			return nil, errFactory
		}
		return NewInstance()
	}, &calls
}

func TestRegistry_SequentialAccessIsIdempotent(t *testing.T) {
	for _, s := range LazyStrategies() {
		t.Run(s.String(), func(t *testing.T) {
			r := New()
			first, err := r.Access(s)
			require.NoError(t, err)
			require.NotNil(t, first)

			for i := 0; i < 100; i++ {
				inst, err := r.Access(s)
				require.NoError(t, err)
				assert.True(t, first.Same(inst))
			}
			assert.Equal(t, 1, r.UniqueReferenceCount())
		})
	}
}

func TestRegistry_ResetYieldsFreshCreation(t *testing.T) {
	for _, s := range LazyStrategies() {
		t.Run(s.String(), func(t *testing.T) {
			r := New()
			before, err := r.Access(s)
			require.NoError(t, err)

			r.Reset()
			assert.Equal(t, 0, r.UniqueReferenceCount())
			assert.Nil(t, r.Peek())

			after, err := r.Access(s)
			require.NoError(t, err)
			assert.Equal(t, 1, r.UniqueReferenceCount())
			assert.False(t, before.Same(after))
			assert.Equal(t, []string{after.Key()}, r.References())
		})
	}
}

func TestRegistry_SingleCheckLockingAlwaysLocks(t *testing.T) {
	r := New()
	for i := 0; i < 10; i++ {
		_, err := r.SingleCheckLocking()
		require.NoError(t, err)
	}
	assert.Equal(t, int64(10), r.GuardAcquisitions())
}

func TestRegistry_DoubleCheckLockingLocksOnlyWhileEmpty(t *testing.T) {
	r := New()
	for i := 0; i < 10; i++ {
		_, err := r.DoubleCheckLocking()
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), r.GuardAcquisitions())
}

func TestRegistry_FirstUseNeverTakesGuard(t *testing.T) {
	r := New()
	for i := 0; i < 10; i++ {
		_, err := r.FirstUseStaticInit()
		require.NoError(t, err)
	}
	assert.Equal(t, int64(0), r.GuardAcquisitions())
	// the first-use instance lives apart from the guarded slot
	assert.Nil(t, r.Peek())
}

func TestRegistry_SharedSlotAcrossLockingStrategies(t *testing.T) {
	r := New()
	a, err := r.SingleCheckLocking()
	require.NoError(t, err)
	b, err := r.DoubleCheckLocking()
	require.NoError(t, err)
	assert.True(t, a.Same(b))
	assert.True(t, a.Same(r.Peek()))
	assert.Equal(t, 1, r.UniqueReferenceCount())
}

func TestRegistry_Eager(t *testing.T) {
	r, err := NewEager()
	require.NoError(t, err)
	assert.Equal(t, Eager, r.Mode())

	// built before any access
	require.NotNil(t, r.Peek())
	assert.Equal(t, 1, r.UniqueReferenceCount())

	for i := 0; i < 1000; i++ {
		inst, err := r.EagerInit()
		require.NoError(t, err)
		assert.True(t, inst.Same(r.Peek()))
	}
	assert.Equal(t, 1, r.UniqueReferenceCount())
	assert.Equal(t, int64(0), r.GuardAcquisitions())
}

func TestRegistry_EagerResetRebuilds(t *testing.T) {
	r := MustNewEager()
	before := r.Peek()

	r.Reset()
	after, err := r.EagerInit()
	require.NoError(t, err)
	assert.False(t, before.Same(after))
	assert.Equal(t, 1, r.UniqueReferenceCount())
}

func TestRegistry_EagerResetFailure(t *testing.T) {
	calls := 0
	r, err := NewEager(WithFactory(func() (*Instance, error) {
		calls++
		if calls == 2 {
			return nil, errFactory
		}
		return NewInstance()
	}))
	require.NoError(t, err)

	r.Reset()
	_, err = r.EagerInit()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, 0, r.UniqueReferenceCount())

	r.Reset()
	inst, err := r.EagerInit()
	require.NoError(t, err)
	assert.NotNil(t, inst)
}

func TestNewEager_FactoryFailure(t *testing.T) {
	f, _ := failingFactory(1)
	r, err := NewEager(WithFactory(f))
	assert.Nil(t, r)
	assert.ErrorIs(t, err, errFactory)

	assert.Panics(t, func() {
		f, _ := failingFactory(1)
		MustNewEager(WithFactory(f))
	})
}

func TestRegistry_ModeMismatch(t *testing.T) {
	lazy := New()
	_, err := lazy.EagerInit()
	assert.ErrorIs(t, err, ErrModeMismatch)

	eager := MustNewEager()
	for _, s := range LazyStrategies() {
		_, err := eager.Access(s)
		assert.ErrorIs(t, err, ErrModeMismatch, s.String())
	}
}

func TestRegistry_UnknownStrategy(t *testing.T) {
	_, err := New().Access(Strategy(42))
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRegistry_FactoryFailureLeavesSlotEmpty(t *testing.T) {
	for _, s := range LazyStrategies() {
		t.Run(s.String(), func(t *testing.T) {
			f, calls := failingFactory(2)
			r := New(WithFactory(f))

			for i := 0; i < 2; i++ {
				inst, err := r.Access(s)
				assert.Nil(t, inst)
				assert.ErrorIs(t, err, errFactory)
				assert.Nil(t, r.Peek())
				assert.Equal(t, 0, r.UniqueReferenceCount())
			}

			inst, err := r.Access(s)
			require.NoError(t, err)
			assert.NotNil(t, inst)
			assert.Equal(t, 1, r.UniqueReferenceCount())
			assert.Equal(t, 3, *calls)

			// the guard was released on the failing paths
			assert.False(t, r.guard.IsLocked())
			assert.Equal(t, 0, r.GuardHolders())
		})
	}
}

func TestRegistry_CreateHookAndLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var created []Strategy
	r := New(
		WithLogger(logger),
		WithCreateHook(func(s Strategy, _ *Instance) { created = append(created, s) }),
	)

	inst, err := r.DoubleCheckLocking()
	require.NoError(t, err)
	_, err = r.DoubleCheckLocking()
	require.NoError(t, err)
	_, err = r.FirstUseStaticInit()
	require.NoError(t, err)

	assert.Equal(t, []Strategy{DoubleCheckLocking, FirstUseStaticInit}, created)
	assert.Contains(t, buf.String(), "instance created")
	assert.Contains(t, buf.String(), inst.Key())
	assert.Contains(t, buf.String(), "strategy=double-check")
}

func TestDefaultRegistries(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Equal(t, Lazy, Default().Mode())

	eager := DefaultEager()
	assert.Equal(t, Eager, eager.Mode())
	inst, err := eager.EagerInit()
	require.NoError(t, err)
	assert.NotNil(t, inst)
}

func TestInstance(t *testing.T) {
	a, err := NewInstance()
	require.NoError(t, err)
	b, err := NewInstance()
	require.NoError(t, err)

	assert.True(t, a.Same(a))
	assert.False(t, a.Same(b))
	assert.False(t, a.Same(nil))
	assert.True(t, (*Instance)(nil).Same(nil))
	assert.Equal(t, a.ID().String(), a.Key())
	assert.False(t, a.CreatedAt().IsZero())
	assert.Equal(t, "instance("+a.Key()+")", a.String())
	assert.Equal(t, "<nil>", (*Instance)(nil).String())
}

func TestStrategy(t *testing.T) {
	for _, s := range []Strategy{SingleCheckLocking, DoubleCheckLocking, FirstUseStaticInit, EagerInit} {
		parsed, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseStrategy("triple-check")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	assert.Equal(t, "strategy(9)", Strategy(9).String())
	assert.Equal(t, "Double Check Locking", DoubleCheckLocking.Title())
	assert.Equal(t, Eager, EagerInit.Mode())
	assert.Equal(t, Lazy, FirstUseStaticInit.Mode())
	assert.Equal(t, "eager", Eager.String())
	assert.Equal(t, "lazy", Lazy.String())
}
