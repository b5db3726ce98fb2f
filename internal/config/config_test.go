package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 1024, cfg.MaxBufferSize)
	assert.Equal(t, "> ", cfg.Prompt)
	assert.True(t, cfg.ReuseAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"logs/p2pchat.log"}, cfg.Log.Outputs)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.yaml")
	yaml := `
port: 5000
max_buffer_size: 2048
color: false
log:
  level: debug
  outputs: [stderr]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, 2048, cfg.MaxBufferSize)
	assert.False(t, cfg.Color)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"stderr"}, cfg.Log.Outputs)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("P2PCHAT_LOG_LEVEL", "warn")
	t.Setenv("P2PCHAT_MAX_BUFFER_SIZE", "512")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 512, cfg.MaxBufferSize)
}

func TestLoad_FlagsWin(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("P2PCHAT_LOG_LEVEL", "warn")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	fs.Int("buffer-size", 1024, "")
	require.NoError(t, fs.Parse([]string{"--log-level=error"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	// unchanged flag must not shadow the default
	assert.Equal(t, 1024, cfg.MaxBufferSize)
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("P2PCHAT_LOG_LEVEL", "loud")
	_, err := Load("", nil)
	assert.Error(t, err)

	t.Setenv("P2PCHAT_LOG_LEVEL", "info")
	t.Setenv("P2PCHAT_MAX_BUFFER_SIZE", "0")
	_, err = Load("", nil)
	assert.Error(t, err)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}
