package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "procmet.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
dir = "/var/lib/procmet"
lock_file = "/var/lib/procmet/custom.lock"

[history]
enabled = true
path = "/var/lib/procmet/history"
max_memory_mb = 64

[sweep]
interval = "30s"
`))
	require.NoError(t, err)
	require.Equal(t, "/var/lib/procmet", cfg.Dir)
	require.Equal(t, "/var/lib/procmet/custom.lock", cfg.LockFile)
	require.True(t, cfg.History.Enabled)
	require.Equal(t, "/var/lib/procmet/history", cfg.History.Path)
	require.Equal(t, int64(64), cfg.History.MaxMemoryMB)
	require.Equal(t, 30*time.Second, cfg.Sweep.Interval.Duration)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `dir = "/var/lib/procmet"`))
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/var/lib/procmet", "compact.lock"), cfg.LockFile)
	require.False(t, cfg.History.Enabled)
	require.Equal(t, time.Minute, cfg.Sweep.Interval.Duration)
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing dir", `lock_file = "/tmp/x.lock"`},
		{"blank dir", `dir = "  "`},
		{"history without path", "dir = \"/d\"\n[history]\nenabled = true\n"},
		{"bad duration", "dir = \"/d\"\n[sweep]\ninterval = \"soon\"\n"},
		{"negative interval", "dir = \"/d\"\n[sweep]\ninterval = \"-5s\"\n"},
		{"malformed toml", `dir = `},
	}
	for _, c := range cases {
		_, err := Load(writeConfig(t, c.body))
		require.Error(t, err, c.name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestValidate_MutatesDerivedDefaults(t *testing.T) {
	cfg := Default()
	cfg.Dir = "/data"
	require.NoError(t, cfg.Validate())
	require.Equal(t, filepath.Join("/data", "compact.lock"), cfg.LockFile)
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1h30m")))
	require.Equal(t, 90*time.Minute, d.Duration)

	require.NoError(t, d.UnmarshalText(nil))
	require.Equal(t, time.Duration(0), d.Duration)

	require.Error(t, d.UnmarshalText([]byte("fast")))
}
