package prepaid

import (
	"context"

	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/txlog"
	"github.com/clubworks/prepaid/types"
)

// CorrectLogEntry rewrites one historical transaction-log entry and
// cascade-recomputes the balance snapshot of that entry and every later
// entry on the same voucher, then brings the voucher's live balance in line
// with the final snapshot. Corrections exist for operator fixes of mistyped
// amounts; they are not part of normal ledger flow.
func (e *Engine) CorrectLogEntry(ctx context.Context, entryID id.LogEntryID, c txlog.Correction) (*txlog.Entry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	entry, err := e.store.GetLogEntry(ctx, entryID)
	if err != nil {
		return nil, wrapTimeout(err)
	}
	old := *entry

	if c.Delta != nil {
		if c.Delta.Currency != entry.Delta.Currency {
			return nil, &ValidationError{Field: "delta", Message: "currency differs from original entry"}
		}
		entry.Delta = *c.Delta
	}
	if c.Remark != nil {
		entry.Remark = *c.Remark
	}
	if c.HandledBy != nil {
		entry.HandledBy = *c.HandledBy
	}
	entry.Touch()

	if err := e.store.UpdateLogEntry(ctx, entry); err != nil {
		return nil, wrapTimeout(err)
	}

	if c.Delta != nil {
		if err := e.recomputeSnapshots(ctx, entry.VoucherID); err != nil {
			return nil, wrapTimeout(err)
		}
	}

	e.plugins.EmitLogCorrected(ctx, &old, entry)
	return entry, nil
}

// DeleteLogEntry removes a transaction-log entry and cascade-recomputes the
// snapshots of every later entry on the voucher, then the live balance.
func (e *Engine) DeleteLogEntry(ctx context.Context, entryID id.LogEntryID) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	entry, err := e.store.GetLogEntry(ctx, entryID)
	if err != nil {
		return wrapTimeout(err)
	}

	if err := e.store.DeleteLogEntry(ctx, entryID); err != nil {
		return wrapTimeout(err)
	}

	if err := e.recomputeSnapshots(ctx, entry.VoucherID); err != nil {
		return wrapTimeout(err)
	}

	e.plugins.EmitLogDeleted(ctx, entry)
	return nil
}

// recomputeSnapshots replays the voucher's full log in order, rewriting
// each entry's balance snapshot as the running sum of deltas, and writes
// the final running balance back onto the voucher.
func (e *Engine) recomputeSnapshots(ctx context.Context, voucherID id.VoucherID) error {
	entries, err := e.store.ListLogEntries(ctx, voucherID, txlog.ListOpts{})
	if err != nil {
		return err
	}

	v, err := e.store.GetVoucher(ctx, voucherID)
	if err != nil {
		return err
	}

	running := types.Zero(v.Balance.Currency)
	for _, entry := range entries {
		running = running.Add(entry.Delta)
		if !entry.Balance.Equal(running) {
			entry.Balance = running
			if err := e.store.UpdateLogEntry(ctx, entry); err != nil {
				return err
			}
		}
	}

	if !v.Balance.Equal(running) {
		expected := v.Version
		v.Balance = running
		if v.FreeOfCharge.IsPositive() && v.FreeOfCharge.GreaterThan(v.Balance) {
			v.FreeOfCharge = v.Balance
		}
		if err := e.store.UpdateVoucher(ctx, v, expected); err != nil {
			return err
		}
	}

	return nil
}
