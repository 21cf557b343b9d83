package extension

import "time"

// Config holds the Prepaid extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.prepaid" or "prepaid" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// OperationDeadline bounds every engine operation; operations that
	// exceed it fail with prepaid.ErrOperationTimeout (default: 30s).
	OperationDeadline time.Duration `json:"operation_deadline" mapstructure:"operation_deadline" yaml:"operation_deadline"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and auto-constructs
	// the appropriate store based on the driver type (pg/sqlite/mongo).
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		OperationDeadline: 30 * time.Second,
	}
}
