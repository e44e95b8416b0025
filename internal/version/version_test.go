package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		version string
		target  string
		greater bool
		geq     bool
	}{
		{"0.2.0", "0.1.9", true, true},
		{"0.2.0", "0.2.0", false, true},
		{"0.1.0", "0.2.0", false, false},
		{"v1.0.0", "0.9.0", true, true},
		{"0.2.0", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.version+"_"+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.greater, IsVersionGreaterThan(tt.version, tt.target))
			if tt.target != "" {
				assert.Equal(t, tt.geq, IsVersionGreaterOrEqualThan(tt.version, tt.target))
			}
		})
	}
}

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, DevVersion, GetCurrentVersion("dev"))
	assert.Equal(t, DevVersion, GetCurrentVersion("demo"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
}
