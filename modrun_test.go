package modrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/modrun/internal/cliconfig"
	"github.com/bft-labs/modrun/internal/container"
)

func TestNewRunner(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db.toml"), []byte(`name = "db"`), 0o644))

	graph, err := cliconfig.DefaultLifecycle().Build(container.NewRegistry(nil))
	require.NoError(t, err)

	m, err := New(graph)
	require.NoError(t, err)
	defer m.Close()

	r := NewRunner(m, dir, container.Factory{}, RunnerConfig{Targets: []string{"loaded"}}, nil)
	added, err := r.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, added)

	require.NoError(t, r.RunTargets(context.Background()))
	require.Equal(t, map[string]string{"db": "loaded"}, m.States())
}
