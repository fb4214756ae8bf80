package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/modrun/pkg/module"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDecode(t *testing.T) {
	want := module.Description{
		Name:         "billing",
		Version:      "1.4.0",
		Website:      "https://example.com/billing",
		Authors:      []string{"ops"},
		Dependencies: []string{"db", "?cache", "<ui"},
	}

	tests := []struct {
		file string
		data string
	}{
		{"billing.toml", `
name = "billing"
version = "1.4.0"
website = "https://example.com/billing"
authors = ["ops"]
dependencies = ["db", "?cache", "<ui"]
`},
		{"billing.yaml", `
name: billing
version: 1.4.0
website: https://example.com/billing
authors: [ops]
dependencies: ["db", "?cache", "<ui"]
`},
		{"billing.YML", `
name: billing
version: "1.4.0"
website: https://example.com/billing
authors:
  - ops
dependencies:
  - db
  - "?cache"
  - "<ui"
`},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := Decode(tt.file, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("module.json", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Decode("module.toml", []byte(`name = `))
	assert.Error(t, err)
}

func TestDir_Descriptions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", "name: b\ndependencies: [a]\n")
	writeFile(t, dir, "a.toml", "name = \"a\"\n")
	writeFile(t, dir, "README.md", "not a descriptor")
	writeFile(t, dir, "broken.toml", "name = [")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.toml"), 0o755))

	descs, err := NewDir(dir).Descriptions()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "broken.toml")
	require.Len(t, descs, 2)
	assert.Equal(t, "a", descs[0].Name)
	assert.Equal(t, "b", descs[1].Name)
	assert.Equal(t, []string{"a"}, descs[1].Dependencies)
}

func TestDir_Missing(t *testing.T) {
	_, err := NewDir(filepath.Join(t.TempDir(), "nope")).Descriptions()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("x.toml"))
	assert.True(t, Supported("x.yaml"))
	assert.True(t, Supported("dir/x.yml"))
	assert.False(t, Supported("x.json"))
	assert.False(t, Supported("toml"))
}
