// Package settings holds the runtime knobs of the engine: defaults,
// optional settings file and BLOCKFLOW_* environment overrides.
package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	Shell      string        `mapstructure:"shell"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
	LogDir     string        `mapstructure:"log_dir"`
	CacheDir   string        `mapstructure:"cache_dir"`
	AgentDir   string        `mapstructure:"agent_dir"`
	LogLevel   string        `mapstructure:"log_level"`
}

// Load builds settings from defaults, an optional YAML settings file
// and environment variables, in increasing priority.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("shell", "/bin/sh")
	// The document contract carries no execution_time_limit, so the
	// per-job wall clock budget comes from here.
	v.SetDefault("job_timeout", "1h")
	v.SetDefault("log_dir", ".blockflow/logs")
	v.SetDefault("cache_dir", ".blockflow/cache")
	v.SetDefault("agent_dir", "")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("BLOCKFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if s.JobTimeout <= 0 {
		return nil, fmt.Errorf("job_timeout must be positive, got %s", s.JobTimeout)
	}

	return &s, nil
}
