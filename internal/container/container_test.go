package container

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/modrun/pkg/lifecycle"
	"github.com/bft-labs/modrun/pkg/module"
)

var _ module.Container = (*Instance)(nil)

func TestFactory_Containers(t *testing.T) {
	cs, err := Factory{}.Containers([]module.Description{
		{Name: "a"},
		{Name: ""},
		{Name: "b", Dependencies: []string{"a"}},
	})
	assert.ErrorIs(t, err, module.ErrInvalidDescription)
	require.Len(t, cs, 2)
	assert.Equal(t, "a", cs[0].Name())
	assert.Equal(t, []string{"a"}, cs[1].Description().Dependencies)
}

func TestInstance_Release(t *testing.T) {
	inst := New(module.Description{Name: "a"})
	assert.False(t, inst.Released())
	require.NoError(t, inst.Release(context.Background()))
	require.NoError(t, inst.Release(context.Background()))
	assert.True(t, inst.Released())
}

func TestRegistry_Build(t *testing.T) {
	r := NewRegistry(nil)
	assert.Equal(t, []string{"log", "release", "sleep"}, r.Names())

	inst := New(module.Description{Name: "a"})
	ctx := context.Background()

	for _, spec := range []string{"log", "sleep:1ms", "release"} {
		a, err := r.Build("enabled", spec)
		require.NoError(t, err, spec)
		require.True(t, a.Applies(inst))
		require.NoError(t, a.Run(ctx, inst), spec)
	}

	assert.Equal(t, []string{"enabled:log", "enabled:sleep:1ms", "enabled:release"}, inst.Invocations())
	assert.True(t, inst.Released())
}

func TestRegistry_BuildErrors(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Build("s", "explode")
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = r.Build("s", "sleep:soon")
	assert.Error(t, err)

	_, err = r.Build("s", "sleep:-1s")
	assert.Error(t, err)
}

func TestRegistry_SleepHonorsContext(t *testing.T) {
	a, err := NewRegistry(nil).Build("s", "sleep:1h")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Run(ctx, New(module.Description{Name: "a"})), context.DeadlineExceeded)
}

type plainTarget string

func (p plainTarget) Name() string { return string(p) }

func TestRegistry_ReleaseSkipsNonReleasers(t *testing.T) {
	a, err := NewRegistry(nil).Build("s", "release")
	require.NoError(t, err)
	assert.False(t, a.Applies(plainTarget("x")))

	var _ lifecycle.Target = plainTarget("x")
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil)
	called := false
	r.Register("mark", func(state, arg string) (lifecycle.Action, error) {
		return lifecycle.ActionFunc(func(context.Context, lifecycle.Target) error {
			called = true
			return nil
		}), nil
	})

	a, err := r.Build("enabled", "mark:x")
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background(), New(module.Description{Name: "a"})))
	assert.True(t, called)
}

// countingInstance counts Release calls reaching the container.
type countingInstance struct {
	*Instance
	releases atomic.Int32
}

func (c *countingInstance) Release(ctx context.Context) error {
	c.releases.Add(1)
	return c.Instance.Release(ctx)
}

func TestRegistry_ReleaseOnceUnderManager(t *testing.T) {
	reg := NewRegistry(nil)
	build := func(state, spec string) lifecycle.Action {
		a, err := reg.Build(state, spec)
		require.NoError(t, err)
		return a
	}

	enabled := &lifecycle.State{Name: "enabled", From: []string{"first"}}
	unloaded := &lifecycle.State{
		Name:     "unloaded",
		From:     []string{"enabled"},
		Order:    lifecycle.Descending,
		Terminal: true,
		Actions:  []lifecycle.Action{build("unloaded", "release"), build("unloaded", "log")},
	}
	g, err := lifecycle.NewGraph(lifecycle.Config{
		States:  []*lifecycle.State{enabled, unloaded},
		Initial: &lifecycle.State{Name: "first"},
		Failed:  &lifecycle.State{Name: "failed", Order: lifecycle.Unordered},
	})
	require.NoError(t, err)

	m, err := module.New(g)
	require.NoError(t, err)
	defer m.Close()

	c := &countingInstance{Instance: New(module.Description{Name: "db"})}
	_, err = m.AddModule(context.Background(), c, true)
	require.NoError(t, err)

	report, err := m.RunState(context.Background(), "unloaded")
	require.NoError(t, err)
	assert.Empty(t, report.Failed())
	assert.EqualValues(t, 1, c.releases.Load())
	assert.True(t, c.Released())
}
