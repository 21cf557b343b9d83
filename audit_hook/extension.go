// Package audithook bridges Prepaid lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clubworks/prepaid/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnVoucherCreated   = (*Extension)(nil)
	_ plugin.OnVoucherClosed    = (*Extension)(nil)
	_ plugin.OnBalanceConsumed  = (*Extension)(nil)
	_ plugin.OnFocRemoved       = (*Extension)(nil)
	_ plugin.OnPackageCreated   = (*Extension)(nil)
	_ plugin.OnPackageUpdated   = (*Extension)(nil)
	_ plugin.OnTransferExecuted = (*Extension)(nil)
	_ plugin.OnBatchFailed      = (*Extension)(nil)
	_ plugin.OnLogAppended      = (*Extension)(nil)
	_ plugin.OnLogCorrected     = (*Extension)(nil)
	_ plugin.OnLogDeleted       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Prepaid lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Voucher lifecycle hooks
// ──────────────────────────────────────────────────

// OnVoucherCreated implements plugin.OnVoucherCreated.
func (e *Extension) OnVoucherCreated(ctx context.Context, v interface{}) error {
	return e.record(ctx, ActionVoucherCreated, SeverityInfo, OutcomeSuccess,
		ResourceVoucher, resourceID(v), CategoryBalance, nil,
		"event", "voucher_created",
	)
}

// OnVoucherClosed implements plugin.OnVoucherClosed.
func (e *Extension) OnVoucherClosed(ctx context.Context, v interface{}) error {
	return e.record(ctx, ActionVoucherClosed, SeverityInfo, OutcomeSuccess,
		ResourceVoucher, resourceID(v), CategoryBalance, nil,
		"event", "voucher_closed",
	)
}

// OnBalanceConsumed implements plugin.OnBalanceConsumed.
func (e *Extension) OnBalanceConsumed(ctx context.Context, v interface{}, amount interface{}) error {
	return e.record(ctx, ActionBalanceConsumed, SeverityInfo, OutcomeSuccess,
		ResourceVoucher, resourceID(v), CategoryBalance, nil,
		"event", "balance_consumed",
		"amount", fmt.Sprintf("%v", amount),
	)
}

// OnFocRemoved implements plugin.OnFocRemoved.
func (e *Extension) OnFocRemoved(ctx context.Context, voucherID string, amount interface{}) error {
	return e.record(ctx, ActionFocRemoved, SeverityWarning, OutcomeSuccess,
		ResourceVoucher, voucherID, CategoryBalance, nil,
		"voucher_id", voucherID,
		"amount", fmt.Sprintf("%v", amount),
	)
}

// ──────────────────────────────────────────────────
// Package lifecycle hooks
// ──────────────────────────────────────────────────

// OnPackageCreated implements plugin.OnPackageCreated.
func (e *Extension) OnPackageCreated(ctx context.Context, p interface{}) error {
	return e.record(ctx, ActionPackageCreated, SeverityInfo, OutcomeSuccess,
		ResourcePackage, resourceID(p), CategoryCatalog, nil,
		"event", "package_created",
	)
}

// OnPackageUpdated implements plugin.OnPackageUpdated.
func (e *Extension) OnPackageUpdated(ctx context.Context, _, newPkg interface{}) error {
	return e.record(ctx, ActionPackageUpdated, SeverityInfo, OutcomeSuccess,
		ResourcePackage, resourceID(newPkg), CategoryCatalog, nil,
		"event", "package_updated",
	)
}

// ──────────────────────────────────────────────────
// Transfer hooks
// ──────────────────────────────────────────────────

// OnTransferExecuted implements plugin.OnTransferExecuted.
func (e *Extension) OnTransferExecuted(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionTransferExecuted, SeverityInfo, OutcomeSuccess,
		ResourceTransfer, "", CategoryTransfer, nil,
		"event", "transfer_executed",
	)
}

// OnBatchFailed implements plugin.OnBatchFailed.
func (e *Extension) OnBatchFailed(ctx context.Context, batchErr error, reverted bool) error {
	action := ActionBatchReverted
	outcome := OutcomePartial
	severity := SeverityWarning
	if !reverted {
		// Compensation did not restore every mutated source.
		action = ActionBatchFailed
		outcome = OutcomeFailure
		severity = SeverityCritical
	}
	return e.record(ctx, action, severity, outcome,
		ResourceTransfer, "", CategoryTransfer, batchErr,
		"event", "batch_failed",
		"reverted", reverted,
	)
}

// ──────────────────────────────────────────────────
// Transaction log hooks
// ──────────────────────────────────────────────────

// OnLogAppended implements plugin.OnLogAppended.
func (e *Extension) OnLogAppended(_ context.Context, _ interface{}) error {
	// Appends accompany every balance mutation already audited above,
	// so recording them separately only doubles the noise.
	return nil
}

// OnLogCorrected implements plugin.OnLogCorrected.
func (e *Extension) OnLogCorrected(ctx context.Context, _, newEntry interface{}) error {
	return e.record(ctx, ActionLogCorrected, SeverityWarning, OutcomeSuccess,
		ResourceLogEntry, resourceID(newEntry), CategoryLedger, nil,
		"event", "log_corrected",
	)
}

// OnLogDeleted implements plugin.OnLogDeleted.
func (e *Extension) OnLogDeleted(ctx context.Context, entry interface{}) error {
	return e.record(ctx, ActionLogDeleted, SeverityWarning, OutcomeSuccess,
		ResourceLogEntry, resourceID(entry), CategoryLedger, nil,
		"event", "log_deleted",
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// identifiable is satisfied by the engine's voucher, package and log entry
// types without importing them here.
type identifiable interface {
	EntityID() string
}

// resourceID extracts a stable identifier from a hook payload when the
// payload exposes one.
func resourceID(payload interface{}) string {
	if ident, ok := payload.(identifiable); ok {
		return ident.EntityID()
	}
	return ""
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
