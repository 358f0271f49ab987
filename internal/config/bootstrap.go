// Package config loads the daemon's bootstrap configuration: the handful
// of settings that must be known before the config store, event bus, or
// any module exists to read them from cfgstore (listen address, state
// directory, board profile path, log level). It is deliberately thin and
// separate from internal/cfgstore, the same split the original firmware
// draws between NVS-backed module variables and the one Preferences
// namespace read at setup() before anything else is wired.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Bootstrap holds the settings read once at process start, with a live
// LogLevel that can change if the file is edited while the daemon runs.
type Bootstrap struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	StateDir     string `mapstructure:"state_dir"`
	BoardProfile string `mapstructure:"board_profile"`
	LogLevel     string `mapstructure:"log_level"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "127.0.0.1:7700")
	v.SetDefault("state_dir", "./state")
	v.SetDefault("board_profile", "")
	v.SetDefault("log_level", "info")
}

// Load reads path (if it exists; a missing file just yields defaults) and
// overlays POOLCTLD_-prefixed environment variables, mirroring the
// firmware's "env overrides the persisted value" convention.
func Load(path string) (*Bootstrap, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("poolctld")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	var b Bootstrap
	if err := v.Unmarshal(&b); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &b, nil
}

// Watcher reloads Bootstrap.LogLevel when the backing file changes, the
// Go analog of the firmware's "config changed, re-read before acting"
// pattern applied to a file instead of NVS.
type Watcher struct {
	v        *viper.Viper
	path     string
	onChange func(level string)
}

// WatchLogLevel loads path and calls onChange immediately with the
// current log level, then again every time the file is modified. Watcher
// has no Close method: once started, watching lasts for the life of the
// process. An empty path disables watching and onChange fires once with
// the default level.
func WatchLogLevel(path string, onChange func(level string)) (*Watcher, error) {
	v := viper.New()
	defaults(v)
	w := &Watcher{v: v, path: path, onChange: onChange}

	if path == "" {
		onChange(v.GetString("log_level"))
		return w, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	v.OnConfigChange(func(fsnotify.Event) {
		onChange(v.GetString("log_level"))
	})
	v.WatchConfig()
	onChange(v.GetString("log_level"))
	return w, nil
}
