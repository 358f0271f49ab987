package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	b, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7700", b.ListenAddr)
	assert.Equal(t, "info", b.LogLevel)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poolctld.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: "0.0.0.0:9000"
board_profile: "/etc/poolctld/board.toml"
log_level: "debug"
`), 0o644))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", b.ListenAddr)
	assert.Equal(t, "/etc/poolctld/board.toml", b.BoardProfile)
	assert.Equal(t, "debug", b.LogLevel)
}

func TestLoadToleratesMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NoError(t, err)
}

func TestWatchLogLevelFiresImmediatelyThenOnEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poolctld.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	levels := make(chan string, 4)
	_, err := WatchLogLevel(path, func(level string) { levels <- level })
	require.NoError(t, err)

	select {
	case lvl := <-levels:
		assert.Equal(t, "info", lvl)
	case <-time.After(time.Second):
		t.Fatal("expected an immediate callback")
	}

	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))

	select {
	case lvl := <-levels:
		assert.Equal(t, "debug", lvl)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a callback after the file changed")
	}
}
