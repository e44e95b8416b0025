package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileFromEnv(t *testing.T) {
	t.Setenv("AGENTROUTER_LEARNING_RATE", "0.2")
	t.Setenv("AGENTROUTER_ML_THRESHOLD", "0.55")
	t.Setenv("AGENTROUTER_MATURITY_THRESHOLD", "3")
	t.Setenv("AGENTROUTER_AUTO_INIT", "false")

	p := &Profile{}
	p.FromEnv()

	assert.InDelta(t, 0.2, p.LearningRate, 1e-9)
	assert.InDelta(t, 0.55, p.MLThreshold, 1e-9)
	assert.Equal(t, 3, p.MaturityThreshold)
	assert.False(t, p.AutoInit)
	assert.InDelta(t, 20.0, p.FeedbackRPS, 1e-9)
	assert.Equal(t, 40, p.FeedbackBurst)
}

func TestProfileFromEnv_KeepsExplicitValues(t *testing.T) {
	t.Setenv("AGENTROUTER_LEARNING_RATE", "0.9")
	t.Setenv("AGENTROUTER_ML_THRESHOLD", "not-a-number")

	p := &Profile{LearningRate: 0.1}
	p.FromEnv()

	assert.InDelta(t, 0.1, p.LearningRate, 1e-9)
	assert.Zero(t, p.MLThreshold)
	assert.True(t, p.AutoInit)
}

func TestProfileValidate(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		profile Profile
		wantErr bool
		wantDSN string
	}{
		{
			name:    "sqlite default dsn",
			profile: Profile{Mode: "dev", Driver: "sqlite", Data: dir},
			wantDSN: filepath.Join(dir, "agentrouter_dev.db"),
		},
		{
			name:    "unknown mode falls back to demo",
			profile: Profile{Mode: "weird", Driver: "sqlite", Data: dir},
			wantDSN: filepath.Join(dir, "agentrouter_demo.db"),
		},
		{
			name:    "custom sqlite dsn kept",
			profile: Profile{Mode: "dev", Driver: "sqlite", Data: dir, DSN: "/tmp/x.db"},
			wantDSN: "/tmp/x.db",
		},
		{
			name:    "postgres requires dsn",
			profile: Profile{Mode: "dev", Driver: "postgres", Data: dir},
			wantErr: true,
		},
		{
			name:    "unsupported driver",
			profile: Profile{Mode: "dev", Driver: "mysql", Data: dir},
			wantErr: true,
		},
		{
			name:    "missing data dir",
			profile: Profile{Mode: "dev", Driver: "sqlite", Data: filepath.Join(dir, "missing")},
			wantErr: true,
		},
		{
			name:    "learning rate out of range",
			profile: Profile{Mode: "dev", Driver: "sqlite", Data: dir, LearningRate: 1.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.profile
			err := p.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDSN, p.DSN)
		})
	}
}
