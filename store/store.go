package store

import (
	"context"

	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/pack"
	"github.com/clubworks/prepaid/txlog"
	"github.com/clubworks/prepaid/voucher"
)

// Store is the unified storage interface for all Prepaid entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Voucher methods
	CreateVoucher(ctx context.Context, v *voucher.Voucher) error
	GetVoucher(ctx context.Context, voucherID id.VoucherID) (*voucher.Voucher, error)
	ListVouchers(ctx context.Context, memberID id.MemberID, appID string, opts voucher.ListOpts) ([]*voucher.Voucher, error)
	// UpdateVoucher persists balance/status changes. expectedVersion is the
	// version the caller read; the write must fail with ErrConflict when it
	// no longer matches, and the stored version increments on success.
	UpdateVoucher(ctx context.Context, v *voucher.Voucher, expectedVersion int64) error
	CreateTemplate(ctx context.Context, t *voucher.Template) error
	GetTemplateByName(ctx context.Context, name string, appID string) (*voucher.Template, error)

	// Transaction log methods. Entries are append-only; UpdateLogEntry and
	// DeleteLogEntry exist solely for the explicit correction operations.
	AppendLogEntry(ctx context.Context, e *txlog.Entry) error
	GetLogEntry(ctx context.Context, entryID id.LogEntryID) (*txlog.Entry, error)
	ListLogEntries(ctx context.Context, voucherID id.VoucherID, opts txlog.ListOpts) ([]*txlog.Entry, error)
	UpdateLogEntry(ctx context.Context, e *txlog.Entry) error
	DeleteLogEntry(ctx context.Context, entryID id.LogEntryID) error

	// Package methods. CreatePackages must preserve submission order.
	CreatePackage(ctx context.Context, p *pack.Package) error
	CreatePackages(ctx context.Context, ps []*pack.Package) error
	GetPackage(ctx context.Context, packageID id.PackageID) (*pack.Package, error)
	ListPackages(ctx context.Context, memberID id.MemberID, appID string, opts pack.ListOpts) ([]*pack.Package, error)
	UpdatePackage(ctx context.Context, p *pack.Package) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
