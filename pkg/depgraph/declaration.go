package depgraph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyTarget is returned for declarations that name no module.
var ErrEmptyTarget = errors.New("depgraph: declaration has no target")

// reverseMarker flips the direction of a declaration.
const reverseMarker = "<"

// Priority classifies a declared dependency.
type Priority int

const (
	Required Priority = iota
	Recommended
	Optional
	Incompatible
)

// priorities lists sigil-carrying priorities in match order. "?!" must be
// tested before "?".
var priorities = []Priority{Recommended, Optional, Incompatible}

// Prefix returns the sigil introducing p. Required has none.
func (p Priority) Prefix() string {
	switch p {
	case Recommended:
		return "?!"
	case Optional:
		return "?"
	case Incompatible:
		return "!!"
	default:
		return ""
	}
}

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case Required:
		return "required"
	case Recommended:
		return "recommended"
	case Optional:
		return "optional"
	case Incompatible:
		return "incompatible"
	default:
		return "unknown"
	}
}

// Declaration is a parsed dependency string.
type Declaration struct {
	// Raw is the declaration as written.
	Raw string

	// Target is the referenced module name.
	Target string

	// Priority controls failure semantics.
	Priority Priority

	// Reversed means Target depends on the declaring module.
	Reversed bool
}

// String returns the declaration as written.
func (d Declaration) String() string { return d.Raw }

// Parse parses a dependency declaration string.
func Parse(s string) (Declaration, error) {
	d := Declaration{Raw: s, Priority: Required}

	rest := s
	if strings.HasPrefix(rest, reverseMarker) {
		d.Reversed = true
		rest = rest[len(reverseMarker):]
	}

	for _, p := range priorities {
		if strings.HasPrefix(rest, p.Prefix()) {
			d.Priority = p
			rest = rest[len(p.Prefix()):]
			break
		}
	}

	if rest == "" {
		return d, fmt.Errorf("%w: %q", ErrEmptyTarget, s)
	}
	d.Target = rest
	return d, nil
}

// edge returns the (dependent, dependency) pair a resolved declaration of
// module owner produces.
func (d Declaration) edge(owner string) Edge {
	if d.Reversed {
		return Edge{From: d.Target, To: owner}
	}
	return Edge{From: owner, To: d.Target}
}
