package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescription_Validate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Description
		wantErr bool
	}{
		{"minimal", Description{Name: "db"}, false},
		{"full", Description{Name: "db", Website: "https://example.com/db", Version: "1.2.0", Authors: []string{"ops"}}, false},
		{"missing name", Description{Website: "https://example.com"}, true},
		{"bad website", Description{Name: "db", Website: "not a url"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDescription)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDescription_ValidVersion(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"", true},
		{"1.0.0", true},
		{"v2.1.3", true},
		{"1.0.0-rc.1", true},
		{"banana", false},
		{"1.0.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, Description{Name: "m", Version: tt.version}.ValidVersion())
		})
	}
}
