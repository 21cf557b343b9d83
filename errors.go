package prepaid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("prepaid: not found")
	ErrAlreadyExists = errors.New("prepaid: already exists")
	ErrInvalidInput  = errors.New("prepaid: invalid input")

	// Lookup errors — each aborts a batch before any mutation begins.
	ErrMemberNotFound   = errors.New("prepaid: member not found")
	ErrTemplateNotFound = errors.New("prepaid: voucher template not found")
	ErrVoucherNotFound  = errors.New("prepaid: voucher not found")
	ErrPackageNotFound  = errors.New("prepaid: package not found")
	ErrLogEntryNotFound = errors.New("prepaid: transaction log entry not found")

	// Voucher errors
	ErrVoucherClosed       = errors.New("prepaid: voucher is closed")
	ErrInsufficientBalance = errors.New("prepaid: insufficient balance")
	ErrConflict            = errors.New("prepaid: version conflict on balance mutation")

	// Package errors
	ErrPackageFrozen = errors.New("prepaid: package is not customizable")

	// Batch errors
	ErrEmptyBatch       = errors.New("prepaid: batch has nothing to execute")
	ErrCreationMismatch = errors.New("prepaid: bulk creation returned fewer ids than submitted")
	ErrOperationTimeout = errors.New("prepaid: operation deadline exceeded")

	// Directory errors
	ErrNoDirectory = errors.New("prepaid: no member directory configured")

	// Store errors
	ErrStoreNotReady     = errors.New("prepaid: store not ready")
	ErrStoreClosed       = errors.New("prepaid: store is closed")
	ErrTransactionFailed = errors.New("prepaid: transaction failed")
	ErrMigrationFailed   = errors.New("prepaid: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("prepaid: validation failed for %s: %s", e.Field, e.Message)
}

// UnresolvedKeyError reports a transfer whose destination correlation key
// was not produced by the batch's creation phase. It always fails the whole
// batch before any transfer mutation runs.
type UnresolvedKeyError struct {
	Key string
}

func (e *UnresolvedKeyError) Error() string {
	return fmt.Sprintf("prepaid: destination temp key %q did not resolve to a created package", e.Key)
}

// SourceResult records what happened to one source voucher during a
// multi-source transfer.
type SourceResult struct {
	VoucherID   id.VoucherID
	Transferred types.Money
	FocRemoved  types.Money
}

// PartialBatchError reports a multi-source transfer that failed mid-loop.
// Completed lists sources that had been mutated before the failure surfaced,
// including the failing source itself when it was partially drained; Reverted
// lists those whose mutation was compensated (balance restored, reversal
// logged). Destination is the voucher issued for the batch; compensation
// voids it, and DestinationVoided records whether that succeeded. Any id in
// Completed but not Reverted, and an unvoided destination, need manual
// reconciliation.
type PartialBatchError struct {
	Failed    id.VoucherID
	Cause     error
	Completed []id.VoucherID
	Reverted  []id.VoucherID

	Destination       id.VoucherID
	DestinationVoided bool
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("prepaid: transfer failed at source %s (%d completed, %d reverted, destination voided: %t): %v",
		e.Failed, len(e.Completed), len(e.Reverted), e.DestinationVoided, e.Cause)
}

func (e *PartialBatchError) Unwrap() error { return e.Cause }

// Unreconciled returns the voucher ids whose mutations were applied but not
// reverted, including the destination when it could not be voided. Empty
// means the compensation fully restored prior state.
func (e *PartialBatchError) Unreconciled() []id.VoucherID {
	reverted := make(map[string]bool, len(e.Reverted))
	for _, r := range e.Reverted {
		reverted[r.String()] = true
	}
	var out []id.VoucherID
	for _, c := range e.Completed {
		if !reverted[c.String()] {
			out = append(out, c)
		}
	}
	if !e.Destination.IsNil() && !e.DestinationVoided {
		out = append(out, e.Destination)
	}
	return out
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrVoucherNotFound) ||
		errors.Is(err, ErrPackageNotFound) ||
		errors.Is(err, ErrLogEntryNotFound)
}

// IsValidation returns true if the error is recoverable locally by fixing
// the input before any mutation happened.
func IsValidation(err error) bool {
	var ve ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var vep *ValidationError
	if errors.As(err, &vep) {
		return true
	}
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrEmptyBatch)
}

// IsConflict returns true if the error is an optimistic-concurrency clash;
// the caller should re-read the voucher and retry.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried without operator intervention.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrOperationTimeout) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}

// firstNonEmpty is a small helper for error remarks.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
