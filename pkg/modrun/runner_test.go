package modrun

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/modrun/internal/cliconfig"
	"github.com/bft-labs/modrun/internal/container"
	"github.com/bft-labs/modrun/pkg/descriptor"
	"github.com/bft-labs/modrun/pkg/module"
)

func writeDescriptor(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestRunner(t *testing.T, dir string, cfg RunnerConfig) *Runner {
	t.Helper()
	graph, err := cliconfig.DefaultLifecycle().Build(container.NewRegistry(nil))
	require.NoError(t, err)

	m, err := New(graph)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	return NewRunner(m, descriptor.NewDir(dir), container.Factory{}, cfg, nil)
}

func instance(t *testing.T, r *Runner, name string) *container.Instance {
	t.Helper()
	rt, ok := r.Manager().Get(name)
	require.True(t, ok, "module %q is not registered", name)
	inst, ok := rt.Container().(*container.Instance)
	require.True(t, ok)
	return inst
}

func TestRunner_SyncRunShutdown(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "db.toml", `name = "db"`)
	writeDescriptor(t, dir, "api.yaml", "name: api\ndependencies: [db]\n")

	r := newTestRunner(t, dir, RunnerConfig{
		Targets:       []string{"loaded", "enabled"},
		ShutdownState: "unloaded",
	})
	ctx := context.Background()

	added, err := r.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"db"}, mustGet(t, r, "api").Dependencies())

	added, err = r.Sync(ctx)
	require.NoError(t, err)
	assert.Zero(t, added)

	require.NoError(t, r.RunTargets(ctx))
	assert.Equal(t, map[string]string{"api": "enabled", "db": "enabled"}, r.Manager().States())
	assert.Equal(t, []string{"loaded:log", "enabled:log"}, instance(t, r, "db").Invocations())

	report, err := r.Shutdown(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unloaded", report.Target)
	assert.Empty(t, report.Failed())
	assert.True(t, instance(t, r, "api").Released())
	assert.True(t, instance(t, r, "db").Released())
}

func mustGet(t *testing.T, r *Runner, name string) *module.Runtime {
	t.Helper()
	rt, ok := r.Manager().Get(name)
	require.True(t, ok)
	return rt
}

func TestRunner_SyncReportsBadDescriptors(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "good.toml", `name = "good"`)
	writeDescriptor(t, dir, "broken.toml", `name = `)
	writeDescriptor(t, dir, "nameless.toml", `version = "1.0.0"`)

	r := newTestRunner(t, dir, RunnerConfig{Targets: []string{"enabled"}})

	added, err := r.Sync(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, module.ErrInvalidDescription)
	assert.Equal(t, 1, added)
}

func TestRunner_ShutdownDisabled(t *testing.T) {
	r := newTestRunner(t, t.TempDir(), RunnerConfig{Targets: []string{"enabled"}})

	report, err := r.Shutdown(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.RunID)
}

func TestRunner_UnknownTargetStops(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "db.toml", `name = "db"`)

	r := newTestRunner(t, dir, RunnerConfig{Targets: []string{"nowhere", "enabled"}})
	_, err := r.Sync(context.Background())
	require.NoError(t, err)

	require.Error(t, r.RunTargets(context.Background()))
	assert.Equal(t, "discovered", mustGet(t, r, "db").State().Name)
}

func TestRunner_ConcurrentSyncRegistersOnce(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "db.toml", `name = "db"`)
	writeDescriptor(t, dir, "api.toml", "name = \"api\"\ndependencies = [\"db\"]\n")

	r := newTestRunner(t, dir, RunnerConfig{Targets: []string{"enabled"}})

	var wg sync.WaitGroup
	added := make([]int, 4)
	errs := make([]error, 4)
	for i := range added {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			added[i], errs[i] = r.Sync(context.Background())
		}(i)
	}
	wg.Wait()

	total := 0
	for i := range added {
		assert.NoError(t, errs[i])
		total += added[i]
	}
	assert.Equal(t, 2, total)
}

func TestRunner_WatchDrivesNewModules(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "db.toml", `name = "db"`)

	r := newTestRunner(t, dir, RunnerConfig{
		Targets:       []string{"enabled"},
		DebounceDelay: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := r.Sync(ctx)
	require.NoError(t, err)
	require.NoError(t, r.RunTargets(ctx))

	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()

	// Rewrite until the watcher has picked the file up; the first write may
	// land before the directory is being watched.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "cache.toml"), []byte("name = \"cache\"\ndependencies = [\"db\"]\n"), 0o644)
		rt, ok := r.Manager().Get("cache")
		return ok && rt.State().Name == "enabled"
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestCheckVersion(t *testing.T) {
	require.NoError(t, checkVersion("1.2.0", "1.0.0"))
	require.NoError(t, checkVersion("1.0.0", "1.0.0"))
	require.Error(t, checkVersion("0.9.0", "1.0.0"))
	require.Error(t, checkVersion("one", "1.0.0"))
	require.NoError(t, validateModuleVersions())
}
