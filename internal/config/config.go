// Package config loads engine settings from an optional YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	naming "github.com/toejough/weavetest/internal/synth/1_naming"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "WEAVETEST_CONFIG"

// Exported variables.
var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the engine configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Defaults to warn.
	LogLevel string `yaml:"log_level,omitempty"`

	// Tags replace the tags embedded in generated unit names.
	Tags Tags `yaml:"tags,omitempty"`

	// TraceTransforms logs a diff of every woven unit at debug level.
	TraceTransforms bool `yaml:"trace_transforms,omitempty"`
}

// Tags are the name tags of each kind of generated unit.
type Tags struct {
	Proxy    string `yaml:"proxy,omitempty"`
	Selector string `yaml:"selector,omitempty"`
	Caller   string `yaml:"caller,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "warn",
		Tags: Tags{
			Proxy:    naming.ProxyTag,
			Selector: naming.SelectorTag,
			Caller:   naming.CallerTag,
		},
	}
}

// Load reads the file named by EnvVar, if set, over the defaults.
func Load(getEnv func(string) string, readFile func(string) ([]byte, error)) (Config, error) {
	cfg := Default()

	path := getEnv(EnvVar)
	if path == "" {
		return cfg, nil
	}

	data, err := readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s names a missing file %q", ErrInvalidConfig, EnvVar, path)
		}

		return cfg, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes YAML over the defaults. Unknown keys and invalid values are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	err := decoder.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return Default(), fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	err = cfg.Validate()
	if err != nil {
		return Default(), err
	}

	return cfg, nil
}

// Level is the slog level for LogLevel.
func (c Config) Level() slog.Level {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.LogLevel))
	if err != nil {
		return slog.LevelWarn
	}

	return level
}

// Validate checks the log level and that every tag can appear in a unit name.
func (c Config) Validate() error {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.LogLevel))
	if err != nil {
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	for key, tag := range map[string]string{"proxy": c.Tags.Proxy, "selector": c.Tags.Selector, "caller": c.Tags.Caller} {
		if tag == "" || strings.Contains(tag, naming.Delimiter) {
			return fmt.Errorf("%w: tags.%s %q must be non-empty and must not contain %q",
				ErrInvalidConfig, key, tag, naming.Delimiter)
		}
	}

	return nil
}
