// Package plugin provides an extensible plugin system for Prepaid.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Voucher lifecycle hooks
// ──────────────────────────────────────────────────

// OnVoucherCreated is called when a new voucher is issued.
type OnVoucherCreated interface {
	Plugin
	OnVoucherCreated(ctx context.Context, v interface{}) error
}

// OnVoucherClosed is called when a voucher is closed after a transfer-out.
type OnVoucherClosed interface {
	Plugin
	OnVoucherClosed(ctx context.Context, v interface{}) error
}

// OnBalanceConsumed is called when balance is consumed from a voucher.
type OnBalanceConsumed interface {
	Plugin
	OnBalanceConsumed(ctx context.Context, v interface{}, amount interface{}) error
}

// OnFocRemoved is called when a free-of-charge sub-balance is stripped
// from a source voucher ahead of a transfer.
type OnFocRemoved interface {
	Plugin
	OnFocRemoved(ctx context.Context, voucherID string, amount interface{}) error
}

// ──────────────────────────────────────────────────
// Package lifecycle hooks
// ──────────────────────────────────────────────────

// OnPackageCreated is called when a package is created.
type OnPackageCreated interface {
	Plugin
	OnPackageCreated(ctx context.Context, p interface{}) error
}

// OnPackageUpdated is called when a package is updated.
type OnPackageUpdated interface {
	Plugin
	OnPackageUpdated(ctx context.Context, oldPkg, newPkg interface{}) error
}

// ──────────────────────────────────────────────────
// Transfer hooks
// ──────────────────────────────────────────────────

// OnTransferExecuted is called after a transfer batch completed successfully.
type OnTransferExecuted interface {
	Plugin
	OnTransferExecuted(ctx context.Context, result interface{}) error
}

// OnBatchFailed is called when a transfer batch fails. reverted reports
// whether compensation restored the already-mutated sources.
type OnBatchFailed interface {
	Plugin
	OnBatchFailed(ctx context.Context, batchErr error, reverted bool) error
}

// ──────────────────────────────────────────────────
// Transaction log hooks
// ──────────────────────────────────────────────────

// OnLogAppended is called when a transaction log entry is appended.
type OnLogAppended interface {
	Plugin
	OnLogAppended(ctx context.Context, entry interface{}) error
}

// OnLogCorrected is called when a historical entry is rewritten and
// subsequent snapshots recomputed.
type OnLogCorrected interface {
	Plugin
	OnLogCorrected(ctx context.Context, oldEntry, newEntry interface{}) error
}

// OnLogDeleted is called when a historical entry is deleted.
type OnLogDeleted interface {
	Plugin
	OnLogDeleted(ctx context.Context, entry interface{}) error
}

// ──────────────────────────────────────────────────
// Transfer validators
// ──────────────────────────────────────────────────

// TransferValidator provides custom pre-execution validation for transfer
// requests. All registered validators must pass before any mutation runs.
type TransferValidator interface {
	Plugin
	ValidateTransfer(ctx context.Context, req interface{}) error
}

// callTimeout bounds every plugin callback so a misbehaving plugin cannot
// stall the ledger pipeline.
const callTimeout = 5 * time.Second
