package voucher

import (
	"context"

	"github.com/clubworks/prepaid/id"
)

type Store interface {
	Create(ctx context.Context, v *Voucher) error
	Get(ctx context.Context, voucherID id.VoucherID) (*Voucher, error)
	List(ctx context.Context, memberID id.MemberID, appID string, opts ListOpts) ([]*Voucher, error)
	// Update persists balance/status changes. expectedVersion is the version
	// the caller read; the store must reject the write when it no longer
	// matches so that concurrent operators cannot race a balance mutation.
	Update(ctx context.Context, v *Voucher, expectedVersion int64) error

	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplateByName(ctx context.Context, name string, appID string) (*Template, error)
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
