package config

import (
	"fmt"
	"strings"
)

const (
	maxWorkers          = 64
	maxMessageLengthCap = 10000
)

var (
	validLevels    = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}
	validBytecodes = []string{"deployed", "creation"}
	validFormats   = []string{"json", "sarif", "table"}
)

// ValidateConfig checks if the global configurations have valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateLoggerConfig(&cfg.Logger); err != nil {
		return fmt.Errorf("YAML global config: logger directive is invalid: %w", err)
	}
	if err := ValidateNormalizerConfig(&cfg.Normalizer); err != nil {
		return fmt.Errorf("YAML global config: normalizer directive is invalid: %w", err)
	}
	if err := validateRange(cfg.Batch.Parallel, "parallel", 1, maxWorkers); err != nil {
		return fmt.Errorf("YAML global config: batch directive is invalid: %w", err)
	}
	if err := validateOneOf(cfg.Output.Format, "format", validFormats); err != nil {
		return fmt.Errorf("YAML global config: output directive is invalid: %w", err)
	}
	return nil
}

// ValidateLoggerConfig checks the logger section.
func ValidateLoggerConfig(l *Logger) error {
	if l == nil {
		return fmt.Errorf("logger configuration is nil")
	}
	if l.Level != "" {
		if err := validateOneOf(strings.ToUpper(l.Level), "level", validLevels); err != nil {
			return err
		}
	}
	sizes := map[string]int{
		"max_size_mb":  l.MaxSizeMB,
		"max_backups":  l.MaxBackups,
		"max_age_days": l.MaxAgeDays,
	}
	for name, v := range sizes {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative: %d", name, v)
		}
	}
	return nil
}

// ValidateNormalizerConfig checks the normalizer section.
func ValidateNormalizerConfig(n *Normalizer) error {
	if n == nil {
		return fmt.Errorf("normalizer configuration is nil")
	}
	if err := validateRange(n.Workers, "workers", 1, maxWorkers); err != nil {
		return err
	}
	if n.MaxMessageLength != nil {
		if err := validateRange(*n.MaxMessageLength, "max_message_length", 0, maxMessageLengthCap); err != nil {
			return err
		}
	}
	return validateOneOf(strings.ToLower(n.Bytecode), "bytecode", validBytecodes)
}

// validateRange checks that v lies within [lo, hi].
func validateRange(v int, name string, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be between %d and %d: %d", name, lo, hi, v)
	}
	return nil
}

// validateOneOf checks that v is one of allowed.
func validateOneOf(v, name string, allowed []string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q, expected one of %s", name, v, strings.Join(allowed, ", "))
}
