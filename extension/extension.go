// Package extension provides the Forge extension adapter for Prepaid.
//
// It implements the forge.Extension interface to integrate Prepaid
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.prepaid" or "prepaid" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	prepaid "github.com/clubworks/prepaid"
	"github.com/clubworks/prepaid/store"
	"github.com/clubworks/prepaid/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "prepaid"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Prepaid voucher balance and transfer engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Prepaid as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *prepaid.Engine
	store      store.Store
	engineOpts []prepaid.Option
	useGrove   bool
}

// New creates a new Prepaid Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Prepaid engine.
// This is nil until Register is called.
func (e *Extension) Engine() *prepaid.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the prepaid engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := prepaid.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*prepaid.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("prepaid: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("prepaid: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs prepaid.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []prepaid.Option {
	opts := make([]prepaid.Option, 0, len(e.engineOpts)+1)

	if e.config.OperationDeadline > 0 {
		opts = append(opts, prepaid.WithOperationDeadline(e.config.OperationDeadline))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("prepaid: configuration is required but not found in config files; " +
				"ensure 'extensions.prepaid' or 'prepaid' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("prepaid: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("operation_deadline", e.config.OperationDeadline),
		forge.F("grove_database", e.config.GroveDatabase),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.prepaid" first (namespaced pattern).
	if cm.IsSet("extensions.prepaid") {
		if err := cm.Bind("extensions.prepaid", &cfg); err == nil {
			e.Logger().Debug("prepaid: loaded config from file",
				forge.F("key", "extensions.prepaid"),
			)
			return cfg, true
		}
		e.Logger().Warn("prepaid: failed to bind extensions.prepaid config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "prepaid" key.
	if cm.IsSet("prepaid") {
		if err := cm.Bind("prepaid", &cfg); err == nil {
			e.Logger().Debug("prepaid: loaded config from file",
				forge.F("key", "prepaid"),
			)
			return cfg, true
		}
		e.Logger().Warn("prepaid: failed to bind prepaid config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.OperationDeadline == 0 {
		cfg.OperationDeadline = defaults.OperationDeadline
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.GroveDatabase == "" && programmaticConfig.GroveDatabase != "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}

	// Duration fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.OperationDeadline == 0 && programmaticConfig.OperationDeadline != 0 {
		yamlConfig.OperationDeadline = programmaticConfig.OperationDeadline
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
