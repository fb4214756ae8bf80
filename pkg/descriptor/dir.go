package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/bft-labs/modrun/pkg/module"
)

// ErrUnsupportedFormat is returned for files with an unknown extension.
var ErrUnsupportedFormat = errors.New("descriptor: unsupported format")

// Provider supplies module descriptions.
type Provider interface {
	Descriptions() ([]module.Description, error)
}

// Dir is a Provider reading descriptor files from a directory.
type Dir struct {
	path string
}

// NewDir creates a provider for the directory at path.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// Descriptions decodes every descriptor file in the directory, sorted by file
// name. Files that fail to decode are skipped and their errors joined; the
// remaining descriptions are still returned.
func (d *Dir) Descriptions() ([]module.Description, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var (
		out  []module.Description
		errs []error
	)
	for _, name := range names {
		desc, err := LoadFile(filepath.Join(d.path, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, desc)
	}
	return out, errors.Join(errs...)
}

// Supported reports whether name has a descriptor file extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadFile reads and decodes the descriptor file at path.
func LoadFile(path string) (module.Description, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return module.Description{}, err
	}
	desc, err := Decode(filepath.Base(path), b)
	if err != nil {
		return module.Description{}, fmt.Errorf("%s: %w", path, err)
	}
	return desc, nil
}

// Decode decodes data in the format implied by name's extension.
func Decode(name string, data []byte) (module.Description, error) {
	var desc module.Description
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		if err := toml.Unmarshal(data, &desc); err != nil {
			return desc, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &desc); err != nil {
			return desc, err
		}
	default:
		return desc, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return desc, nil
}
