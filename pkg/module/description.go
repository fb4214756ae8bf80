package module

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Description is the immutable metadata of a module.
type Description struct {
	// Name uniquely identifies the module.
	Name string `toml:"name" yaml:"name" validate:"required"`

	// Website is an optional project URL.
	Website string `toml:"website" yaml:"website" validate:"omitempty,url"`

	// Version is an optional semantic version. It is informational only.
	Version string `toml:"version" yaml:"version"`

	// Authors lists the module authors.
	Authors []string `toml:"authors" yaml:"authors"`

	// Dependencies holds dependency declarations in order, e.g. "db", "?cache", "<ui".
	Dependencies []string `toml:"dependencies" yaml:"dependencies"`
}

// Validate checks the description's fields.
func (d Description) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidDescription, d.Name, err)
	}
	return nil
}

// ValidVersion reports whether Version is empty or a semantic version.
// A leading "v" is optional.
func (d Description) ValidVersion() bool {
	if d.Version == "" {
		return true
	}
	v := d.Version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.IsValid(v)
}
