package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aayushadhikari7/aegis/internal/capability"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProfileFull(t *testing.T) {
	dataDir := t.TempDir()
	profile, err := LoadProfileFromReader(strings.NewReader(`
profile:
  name: report-generator
  version: 1.2.0
  host_api: ">= 1.0.0 < 2.0.0"
capabilities:
  filesystem:
    - path: ` + dataDir + `
      access: read-write
  network:
    - host: "*.example.com"
      protocols: [https]
      ports: [443]
  logging:
    min_level: info
    max_message_bytes: 2048
    messages_per_second: 10
  clock:
    monotonic: true
limits:
  memory_bytes_max: 33554432
  fuel_max: 500000
  timeout: 5s
`))
	require.NoError(t, err)
	assert.Equal(t, "report-generator", profile.Metadata.Name)

	caps, err := profile.BuildCapabilities()
	require.NoError(t, err)
	assert.Equal(t, 4, caps.Len())
	assert.True(t, caps.Check(capability.FilesystemRequest{Path: dataDir, Read: true, Write: true}).Allowed)
	assert.True(t, caps.Check(capability.NetworkRequest{Host: "api.example.com", Port: 443, Protocol: capability.ProtocolHTTPS}).Allowed)
	assert.True(t, caps.Check(capability.LoggingRequest{Level: slog.LevelInfo, MessageBytes: 100}).Allowed)
	assert.False(t, caps.Check(capability.ClockRequest{Access: capability.ClockRealtime}).Allowed)

	limits, err := profile.BuildLimits()
	require.NoError(t, err)
	assert.Equal(t, uint64(33554432), limits.MemoryBytesMax)
	assert.Equal(t, uint64(500000), limits.FuelMax)
	assert.Equal(t, 5*time.Second, limits.Timeout)
	assert.Equal(t, uint64(10_000), limits.TableElementsMax, "unset fields keep defaults")
}

func TestLoadProfileMinimalDeniesEverything(t *testing.T) {
	profile, err := LoadProfileFromReader(strings.NewReader(`
profile:
  name: locked-down
`))
	require.NoError(t, err)

	caps, err := profile.BuildCapabilities()
	require.NoError(t, err)
	assert.Equal(t, 0, caps.Len())
	assert.False(t, caps.Check(capability.ClockRequest{Access: capability.ClockMonotonic}).Allowed)
}

func TestLoadProfileRejectsUnknownKeys(t *testing.T) {
	_, err := LoadProfileFromReader(strings.NewReader(`
profile:
  name: typo-profile
capabilities:
  filesytem:
    - path: /data
      access: read
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestLoadProfileRejectsBadAccess(t *testing.T) {
	_, err := LoadProfileFromReader(strings.NewReader(`
profile:
  name: bad-access
capabilities:
  filesystem:
    - path: /data
      access: rw
`))
	assert.Error(t, err)
}

func TestLoadProfileHostAPIConstraint(t *testing.T) {
	_, err := LoadProfileFromReader(strings.NewReader(`
profile:
  name: future-profile
  host_api: ">= 99.0.0"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host API")
}

func TestLoadProfileMissingName(t *testing.T) {
	_, err := LoadProfileFromReader(strings.NewReader(`
profile:
  version: 1.0.0
`))
	assert.Error(t, err)
}

func TestLoadProfileFromFile(t *testing.T) {
	path := writeProfile(t, `
profile:
  name: from-file
`)
	profile, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", profile.Metadata.Name)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
