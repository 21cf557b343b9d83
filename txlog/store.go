package txlog

import (
	"context"

	"github.com/clubworks/prepaid/id"
)

type Store interface {
	Append(ctx context.Context, e *Entry) error
	Get(ctx context.Context, entryID id.LogEntryID) (*Entry, error)
	// List returns a voucher's entries ordered by At, then by ID for entries
	// sharing a timestamp. Snapshot recomputation depends on this ordering.
	List(ctx context.Context, voucherID id.VoucherID, opts ListOpts) ([]*Entry, error)
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, entryID id.LogEntryID) error
}

type ListOpts struct {
	Kind   Kind
	Limit  int
	Offset int
}
