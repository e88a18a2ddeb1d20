package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// Config is the YAML configuration of the tool.
type Config struct {
	Logger     Logger     `yaml:"logger"`
	Normalizer Normalizer `yaml:"normalizer"`
	Batch      Batch      `yaml:"batch"`
	Output     Output     `yaml:"output"`
}

// Logger configures hclog and the optional rotating log file.
type Logger struct {
	Level           string `yaml:"level"`
	DisableTime     *bool  `yaml:"disable_time"`
	JSONFormat      *bool  `yaml:"json_format"`
	IncludeLocation *bool  `yaml:"include_location"`
	File            string `yaml:"file"`
	MaxSizeMB       int    `yaml:"max_size_mb"`
	MaxBackups      int    `yaml:"max_backups"`
	MaxAgeDays      int    `yaml:"max_age_days"`
	Compress        *bool  `yaml:"compress"`
}

// Normalizer configures how findings become diagnostics.
type Normalizer struct {
	IgnoreArrayGetters *bool  `yaml:"ignore_array_getters"`
	IncludeExcerpt     *bool  `yaml:"include_excerpt"`
	MaxMessageLength   *int   `yaml:"max_message_length"`
	Bytecode           string `yaml:"bytecode"`
	Workers            int    `yaml:"workers"`
}

// Batch configures how many artifacts are processed at once.
type Batch struct {
	Parallel int `yaml:"parallel"`
}

// Output selects the report format and destination. An empty path means stdout.
type Output struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

const (
	DefaultMaxMessageLength = 120
	DefaultWorkers          = 4
	DefaultParallel         = 4
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	ignore := true
	excerpt := false
	maxLen := DefaultMaxMessageLength
	return &Config{
		Logger: Logger{Level: "INFO"},
		Normalizer: Normalizer{
			IgnoreArrayGetters: &ignore,
			IncludeExcerpt:     &excerpt,
			MaxMessageLength:   &maxLen,
			Bytecode:           "deployed",
			Workers:            DefaultWorkers,
		},
		Batch:  Batch{Parallel: DefaultParallel},
		Output: Output{Format: "json"},
	}
}

// ValidateConfigPath checks that path names a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// NewConfig loads configPath over the defaults and validates the result. An empty path yields
// the defaults.
func NewConfig(configPath string) (*Config, error) {
	config := Default()
	if configPath == "" {
		return config, nil
	}

	if err := LoadYAML(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
	}
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}
