package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		target   string
		priority Priority
		reversed bool
	}{
		{"X", "X", Required, false},
		{"?X", "X", Optional, false},
		{"?!X", "X", Recommended, false},
		{"!!X", "X", Incompatible, false},
		{"<X", "X", Required, true},
		{"<?X", "X", Optional, true},
		{"<?!X", "X", Recommended, true},
		{"<!!X", "X", Incompatible, true},
		{"??X", "?X", Optional, false},
		{"!X", "!X", Required, false},
		{"x-Y.z", "x-Y.z", Required, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.target, d.Target)
			assert.Equal(t, tt.priority, d.Priority)
			assert.Equal(t, tt.reversed, d.Reversed)
			assert.Equal(t, tt.in, d.String())
		})
	}
}

func TestParse_EmptyTarget(t *testing.T) {
	for _, in := range []string{"", "<", "?", "?!", "!!", "<?!"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrEmptyTarget, "input %q", in)
	}
}

func TestPriority_String(t *testing.T) {
	assert.Equal(t, "required", Required.String())
	assert.Equal(t, "recommended", Recommended.String())
	assert.Equal(t, "optional", Optional.String())
	assert.Equal(t, "incompatible", Incompatible.String())
	assert.Equal(t, "unknown", Priority(42).String())
	assert.Equal(t, "", Required.Prefix())
}
