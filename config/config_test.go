package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "1"
provider: aws
profiles: ["dev-admin", "staging-admin"]
regions: ["eu-west-1", "us-east-1"]
restricted_accounts: ["999988887777"]
protected_domain: corp.example
scan_workers: 4
call_timeout: 90s
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"dev-admin", "staging-admin"}, cfg.Profiles)
	assert.Equal(t, 4, cfg.ScanWorkers)
	assert.Equal(t, 90*time.Second, cfg.CallTimeout)
	assert.True(t, cfg.IsRestricted("999988887777"))
	assert.False(t, cfg.IsRestricted("111122223333"))
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "1"
provider: aws
profiles: [""]
regions: ["us-east-1"]
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 8, cfg.ScanWorkers)
	assert.Equal(t, 2*time.Minute, cfg.CallTimeout)
	assert.Equal(t, uint64(4), cfg.MaxRetries)
}

func TestValidateRejectsIncompleteConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing version", Config{Provider: "aws", Profiles: []string{"x"}, Regions: []string{"r"}}},
		{"missing provider", Config{Version: "1", Profiles: []string{"x"}, Regions: []string{"r"}}},
		{"no profiles", Config{Version: "1", Provider: "aws", Regions: []string{"r"}}},
		{"no regions", Config{Version: "1", Provider: "aws", Profiles: []string{"x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
