package audithook

// Action constants for audit events.
const (
	// Voucher actions
	ActionVoucherCreated  = "voucher.created"
	ActionVoucherClosed   = "voucher.closed"
	ActionBalanceConsumed = "voucher.consumed"
	ActionFocRemoved      = "voucher.foc_removed"

	// Package actions
	ActionPackageCreated = "package.created"
	ActionPackageUpdated = "package.updated"

	// Transfer actions
	ActionTransferExecuted = "transfer.executed"
	ActionBatchFailed      = "transfer.batch_failed"
	ActionBatchReverted    = "transfer.batch_reverted"

	// Transaction log actions
	ActionLogAppended  = "txlog.appended"
	ActionLogCorrected = "txlog.corrected"
	ActionLogDeleted   = "txlog.deleted"
)

// Resource constants for audit events.
const (
	ResourceVoucher  = "voucher"
	ResourcePackage  = "package"
	ResourceTransfer = "transfer"
	ResourceLogEntry = "log_entry"
)

// Category constants for audit events.
const (
	CategoryBalance  = "balance"
	CategoryCatalog  = "catalog"
	CategoryTransfer = "transfer"
	CategoryLedger   = "ledger"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
