package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// FileName is the config file searched for in the cascade
const FileName = "jolli.toml"

var (
	mu     sync.Mutex
	cached *Config
	shared *viper.Viper
)

// Load reads the cascade once per process and caches the result
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if cached != nil {
		return cached, nil
	}
	cfg, err := LoadWithViper(sharedViper())
	if err != nil {
		return nil, err
	}
	cached = cfg
	return cached, nil
}

// LoadWithViper decodes and validates whatever v has been given
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// LoadFromFile reads exactly one TOML file over the defaults.
// Environment variables are not consulted.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		err = errors.Wrap(err, "failed to read config file")
		return nil, errors.WithDetailf(err, "Path: %s", path)
	}
	return LoadWithViper(v)
}

// GetViper returns the shared cascade instance
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return sharedViper()
}

// Get returns one value by dot-notation key, e.g. "jobs.max_concurrent"
func Get(key string) interface{} {
	return GetViper().Get(key)
}

// Reset drops the cached config and viper instance (tests)
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cached = nil
	shared = nil
}

// sharedViper builds the cascade on first use. Callers hold mu.
func sharedViper() *viper.Viper {
	if shared != nil {
		return shared
	}

	v := viper.New()
	SetDefaults(v)
	for _, path := range CascadePaths() {
		mergeFile(v, path)
	}

	// JOLLI_JOBS_MAX_CONCURRENT -> jobs.max_concurrent
	v.SetEnvPrefix("JOLLI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	shared = v
	return shared
}

// CascadePaths lists config files lowest precedence first: the user file,
// then the nearest jolli.toml at or above the working directory.
// Missing files are included; they are skipped when merging.
func CascadePaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".jolli", FileName))
	}
	if project := findUpward(FileName); project != "" {
		paths = append(paths, project)
	}
	return paths
}

func findUpward(name string) string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeFile overlays one TOML file; unreadable files are ignored
func mergeFile(v *viper.Viper, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("toml")
	if err := file.ReadInConfig(); err != nil {
		return
	}
	_ = v.MergeConfigMap(file.AllSettings())
}
