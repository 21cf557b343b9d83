// Package observability provides a metrics extension for Prepaid that
// records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/clubworks/prepaid/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnVoucherCreated   = (*MetricsExtension)(nil)
	_ plugin.OnVoucherClosed    = (*MetricsExtension)(nil)
	_ plugin.OnBalanceConsumed  = (*MetricsExtension)(nil)
	_ plugin.OnFocRemoved       = (*MetricsExtension)(nil)
	_ plugin.OnPackageCreated   = (*MetricsExtension)(nil)
	_ plugin.OnPackageUpdated   = (*MetricsExtension)(nil)
	_ plugin.OnTransferExecuted = (*MetricsExtension)(nil)
	_ plugin.OnBatchFailed      = (*MetricsExtension)(nil)
	_ plugin.OnLogAppended      = (*MetricsExtension)(nil)
	_ plugin.OnLogCorrected     = (*MetricsExtension)(nil)
	_ plugin.OnLogDeleted       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Prepaid plugin to automatically track balance metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Voucher metrics
	VoucherCreated Counter
	VoucherClosed  Counter

	// Consumption metrics
	BalanceConsumed Counter
	FocRemoved      Counter

	// Package metrics
	PackageCreated Counter
	PackageUpdated Counter

	// Transfer metrics
	TransferExecuted Counter
	BatchFailed      Counter
	BatchReverted    Counter

	// Transaction log metrics
	LogAppended  Counter
	LogCorrected Counter
	LogDeleted   Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Voucher metrics
		VoucherCreated: factory.Counter("prepaid.voucher.created"),
		VoucherClosed:  factory.Counter("prepaid.voucher.closed"),

		// Consumption metrics
		BalanceConsumed: factory.Counter("prepaid.balance.consumed"),
		FocRemoved:      factory.Counter("prepaid.foc.removed"),

		// Package metrics
		PackageCreated: factory.Counter("prepaid.package.created"),
		PackageUpdated: factory.Counter("prepaid.package.updated"),

		// Transfer metrics
		TransferExecuted: factory.Counter("prepaid.transfer.executed"),
		BatchFailed:      factory.Counter("prepaid.transfer.batch.failed"),
		BatchReverted:    factory.Counter("prepaid.transfer.batch.reverted"),

		// Transaction log metrics
		LogAppended:  factory.Counter("prepaid.txlog.appended"),
		LogCorrected: factory.Counter("prepaid.txlog.corrected"),
		LogDeleted:   factory.Counter("prepaid.txlog.deleted"),

		// Error metrics
		StoreErrors:  factory.Counter("prepaid.store.errors"),
		PluginErrors: factory.Counter("prepaid.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Voucher lifecycle hooks
// ──────────────────────────────────────────────────

// OnVoucherCreated implements plugin.OnVoucherCreated.
func (m *MetricsExtension) OnVoucherCreated(_ context.Context, _ interface{}) error {
	m.VoucherCreated.Inc()
	return nil
}

// OnVoucherClosed implements plugin.OnVoucherClosed.
func (m *MetricsExtension) OnVoucherClosed(_ context.Context, _ interface{}) error {
	m.VoucherClosed.Inc()
	return nil
}

// OnBalanceConsumed implements plugin.OnBalanceConsumed.
func (m *MetricsExtension) OnBalanceConsumed(_ context.Context, _ interface{}, _ interface{}) error {
	m.BalanceConsumed.Inc()
	return nil
}

// OnFocRemoved implements plugin.OnFocRemoved.
func (m *MetricsExtension) OnFocRemoved(_ context.Context, _ string, _ interface{}) error {
	m.FocRemoved.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Package lifecycle hooks
// ──────────────────────────────────────────────────

// OnPackageCreated implements plugin.OnPackageCreated.
func (m *MetricsExtension) OnPackageCreated(_ context.Context, _ interface{}) error {
	m.PackageCreated.Inc()
	return nil
}

// OnPackageUpdated implements plugin.OnPackageUpdated.
func (m *MetricsExtension) OnPackageUpdated(_ context.Context, _, _ interface{}) error {
	m.PackageUpdated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Transfer lifecycle hooks
// ──────────────────────────────────────────────────

// OnTransferExecuted implements plugin.OnTransferExecuted.
func (m *MetricsExtension) OnTransferExecuted(_ context.Context, _ interface{}) error {
	m.TransferExecuted.Inc()
	return nil
}

// OnBatchFailed implements plugin.OnBatchFailed.
func (m *MetricsExtension) OnBatchFailed(_ context.Context, _ error, reverted bool) error {
	m.BatchFailed.Inc()
	if reverted {
		m.BatchReverted.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Transaction log hooks
// ──────────────────────────────────────────────────

// OnLogAppended implements plugin.OnLogAppended.
func (m *MetricsExtension) OnLogAppended(_ context.Context, _ interface{}) error {
	m.LogAppended.Inc()
	return nil
}

// OnLogCorrected implements plugin.OnLogCorrected.
func (m *MetricsExtension) OnLogCorrected(_ context.Context, _, _ interface{}) error {
	m.LogCorrected.Inc()
	return nil
}

// OnLogDeleted implements plugin.OnLogDeleted.
func (m *MetricsExtension) OnLogDeleted(_ context.Context, _ interface{}) error {
	m.LogDeleted.Inc()
	return nil
}
