package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onVoucherCreated   []OnVoucherCreated
	onVoucherClosed    []OnVoucherClosed
	onBalanceConsumed  []OnBalanceConsumed
	onFocRemoved       []OnFocRemoved
	onPackageCreated   []OnPackageCreated
	onPackageUpdated   []OnPackageUpdated
	onTransferExecuted []OnTransferExecuted
	onBatchFailed      []OnBatchFailed
	onLogAppended      []OnLogAppended
	onLogCorrected     []OnLogCorrected
	onLogDeleted       []OnLogDeleted
	transferValidators []TransferValidator
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnVoucherCreated); ok {
		r.onVoucherCreated = append(r.onVoucherCreated, v)
	}
	if v, ok := p.(OnVoucherClosed); ok {
		r.onVoucherClosed = append(r.onVoucherClosed, v)
	}
	if v, ok := p.(OnBalanceConsumed); ok {
		r.onBalanceConsumed = append(r.onBalanceConsumed, v)
	}
	if v, ok := p.(OnFocRemoved); ok {
		r.onFocRemoved = append(r.onFocRemoved, v)
	}
	if v, ok := p.(OnPackageCreated); ok {
		r.onPackageCreated = append(r.onPackageCreated, v)
	}
	if v, ok := p.(OnPackageUpdated); ok {
		r.onPackageUpdated = append(r.onPackageUpdated, v)
	}
	if v, ok := p.(OnTransferExecuted); ok {
		r.onTransferExecuted = append(r.onTransferExecuted, v)
	}
	if v, ok := p.(OnBatchFailed); ok {
		r.onBatchFailed = append(r.onBatchFailed, v)
	}
	if v, ok := p.(OnLogAppended); ok {
		r.onLogAppended = append(r.onLogAppended, v)
	}
	if v, ok := p.(OnLogCorrected); ok {
		r.onLogCorrected = append(r.onLogCorrected, v)
	}
	if v, ok := p.(OnLogDeleted); ok {
		r.onLogDeleted = append(r.onLogDeleted, v)
	}
	if v, ok := p.(TransferValidator); ok {
		r.transferValidators = append(r.transferValidators, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnVoucherCreated)(nil)).Elem(), "OnVoucherCreated")
	checkInterface(reflect.TypeOf((*OnVoucherClosed)(nil)).Elem(), "OnVoucherClosed")
	checkInterface(reflect.TypeOf((*OnFocRemoved)(nil)).Elem(), "OnFocRemoved")
	checkInterface(reflect.TypeOf((*OnPackageCreated)(nil)).Elem(), "OnPackageCreated")
	checkInterface(reflect.TypeOf((*OnTransferExecuted)(nil)).Elem(), "OnTransferExecuted")
	checkInterface(reflect.TypeOf((*OnBatchFailed)(nil)).Elem(), "OnBatchFailed")
	checkInterface(reflect.TypeOf((*OnLogAppended)(nil)).Elem(), "OnLogAppended")
	checkInterface(reflect.TypeOf((*TransferValidator)(nil)).Elem(), "TransferValidator")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitVoucherCreated emits a voucher created event.
func (r *Registry) EmitVoucherCreated(ctx context.Context, v interface{}) {
	r.mu.RLock()
	plugins := r.onVoucherCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnVoucherCreated(ctx, v)
		}); err != nil {
			r.logger.Warn("plugin OnVoucherCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitVoucherClosed emits a voucher closed event.
func (r *Registry) EmitVoucherClosed(ctx context.Context, v interface{}) {
	r.mu.RLock()
	plugins := r.onVoucherClosed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnVoucherClosed(ctx, v)
		}); err != nil {
			r.logger.Warn("plugin OnVoucherClosed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBalanceConsumed emits a balance consumed event.
func (r *Registry) EmitBalanceConsumed(ctx context.Context, v interface{}, amount interface{}) {
	r.mu.RLock()
	plugins := r.onBalanceConsumed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBalanceConsumed(ctx, v, amount)
		}); err != nil {
			r.logger.Warn("plugin OnBalanceConsumed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFocRemoved emits a free-of-charge removal event.
func (r *Registry) EmitFocRemoved(ctx context.Context, voucherID string, amount interface{}) {
	r.mu.RLock()
	plugins := r.onFocRemoved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFocRemoved(ctx, voucherID, amount)
		}); err != nil {
			r.logger.Warn("plugin OnFocRemoved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPackageCreated emits a package created event.
func (r *Registry) EmitPackageCreated(ctx context.Context, pkg interface{}) {
	r.mu.RLock()
	plugins := r.onPackageCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPackageCreated(ctx, pkg)
		}); err != nil {
			r.logger.Warn("plugin OnPackageCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPackageUpdated emits a package updated event.
func (r *Registry) EmitPackageUpdated(ctx context.Context, oldPkg, newPkg interface{}) {
	r.mu.RLock()
	plugins := r.onPackageUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPackageUpdated(ctx, oldPkg, newPkg)
		}); err != nil {
			r.logger.Warn("plugin OnPackageUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTransferExecuted emits a transfer executed event.
func (r *Registry) EmitTransferExecuted(ctx context.Context, result interface{}) {
	r.mu.RLock()
	plugins := r.onTransferExecuted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTransferExecuted(ctx, result)
		}); err != nil {
			r.logger.Warn("plugin OnTransferExecuted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBatchFailed emits a batch failed event.
func (r *Registry) EmitBatchFailed(ctx context.Context, batchErr error, reverted bool) {
	r.mu.RLock()
	plugins := r.onBatchFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBatchFailed(ctx, batchErr, reverted)
		}); err != nil {
			r.logger.Warn("plugin OnBatchFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLogAppended emits a log appended event.
func (r *Registry) EmitLogAppended(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onLogAppended
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLogAppended(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnLogAppended failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLogCorrected emits a log corrected event.
func (r *Registry) EmitLogCorrected(ctx context.Context, oldEntry, newEntry interface{}) {
	r.mu.RLock()
	plugins := r.onLogCorrected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLogCorrected(ctx, oldEntry, newEntry)
		}); err != nil {
			r.logger.Warn("plugin OnLogCorrected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLogDeleted emits a log deleted event.
func (r *Registry) EmitLogDeleted(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onLogDeleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLogDeleted(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnLogDeleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// ValidateTransfer runs all registered transfer validators. Unlike event
// emission, a validator error is returned to the caller and blocks the
// transfer.
func (r *Registry) ValidateTransfer(ctx context.Context, req interface{}) error {
	r.mu.RLock()
	validators := r.transferValidators
	r.mu.RUnlock()

	for _, v := range validators {
		if err := r.callWithTimeout(ctx, v.Name(), func() error {
			return v.ValidateTransfer(ctx, req)
		}); err != nil {
			return fmt.Errorf("plugin %s rejected transfer: %w", v.Name(), err)
		}
	}
	return nil
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(callTimeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
