package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	prepaid "github.com/clubworks/prepaid"
	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/pack"
	prepaidstore "github.com/clubworks/prepaid/store"
	"github.com/clubworks/prepaid/txlog"
	"github.com/clubworks/prepaid/voucher"
)

// compile-time interface check
var _ prepaidstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("prepaid/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("prepaid/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Voucher Store ====================

func (s *Store) CreateVoucher(ctx context.Context, v *voucher.Voucher) error {
	m := toVoucherModel(v)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetVoucher(ctx context.Context, voucherID id.VoucherID) (*voucher.Voucher, error) {
	m := new(voucherModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", voucherID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, prepaid.ErrVoucherNotFound
		}
		return nil, err
	}
	return fromVoucherModel(m)
}

func (s *Store) ListVouchers(ctx context.Context, memberID id.MemberID, appID string, opts voucher.ListOpts) ([]*voucher.Voucher, error) {
	var models []voucherModel
	q := s.pg.NewSelect(&models).
		Where("member_id = ?", memberID.String()).
		Where("app_id = ?", appID)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*voucher.Voucher, len(models))
	for i := range models {
		v, err := fromVoucherModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

// UpdateVoucher writes balance and status changes guarded by the version
// column. A row matched by id but not by version means another operator got
// there first, which surfaces as ErrConflict.
func (s *Store) UpdateVoucher(ctx context.Context, v *voucher.Voucher, expectedVersion int64) error {
	t := now()
	res, err := s.pg.NewUpdate((*voucherModel)(nil)).
		Set("balance_amount = ?", v.Balance.Amount).
		Set("balance_currency = ?", v.Balance.Currency).
		Set("foc_amount = ?", v.FreeOfCharge.Amount).
		Set("foc_currency = ?", v.FreeOfCharge.Currency).
		Set("status = ?", string(v.Status)).
		Set("version = ?", expectedVersion+1).
		Set("remarks = ?", v.Remarks).
		Set("handled_by = ?", v.HandledBy.String()).
		Set("closed_at = ?", v.ClosedAt).
		Set("updated_at = ?", t).
		Where("id = ?", v.ID.String()).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a stale version from a missing row.
		probe := new(voucherModel)
		if err := s.pg.NewSelect(probe).Where("id = ?", v.ID.String()).Scan(ctx); err != nil {
			if isNoRows(err) {
				return prepaid.ErrVoucherNotFound
			}
			return err
		}
		return prepaid.ErrConflict
	}

	v.Version = expectedVersion + 1
	v.UpdatedAt = t
	return nil
}

func (s *Store) CreateTemplate(ctx context.Context, t *voucher.Template) error {
	m := toTemplateModel(t)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetTemplateByName(ctx context.Context, name, appID string) (*voucher.Template, error) {
	m := new(templateModel)
	err := s.pg.NewSelect(m).
		Where("name = ?", name).
		Where("app_id = ?", appID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, prepaid.ErrTemplateNotFound
		}
		return nil, err
	}
	return fromTemplateModel(m)
}

// ==================== Transaction Log Store ====================

func (s *Store) AppendLogEntry(ctx context.Context, e *txlog.Entry) error {
	m := toLogEntryModel(e)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetLogEntry(ctx context.Context, entryID id.LogEntryID) (*txlog.Entry, error) {
	m := new(logEntryModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", entryID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, prepaid.ErrLogEntryNotFound
		}
		return nil, err
	}
	return fromLogEntryModel(m)
}

func (s *Store) ListLogEntries(ctx context.Context, voucherID id.VoucherID, opts txlog.ListOpts) ([]*txlog.Entry, error) {
	var models []logEntryModel
	q := s.pg.NewSelect(&models).
		Where("voucher_id = ?", voucherID.String())

	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	// Oldest first; TypeIDs are K-sortable so id breaks same-instant ties.
	q = q.OrderExpr("logged_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*txlog.Entry, len(models))
	for i := range models {
		e, err := fromLogEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) UpdateLogEntry(ctx context.Context, e *txlog.Entry) error {
	m := toLogEntryModel(e)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return prepaid.ErrLogEntryNotFound
	}
	return nil
}

func (s *Store) DeleteLogEntry(ctx context.Context, entryID id.LogEntryID) error {
	res, err := s.pg.NewDelete((*logEntryModel)(nil)).
		Where("id = ?", entryID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return prepaid.ErrLogEntryNotFound
	}
	return nil
}

// ==================== Package Store ====================

func (s *Store) CreatePackage(ctx context.Context, p *pack.Package) error {
	m := toPackageModel(p)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) CreatePackages(ctx context.Context, ps []*pack.Package) error {
	if len(ps) == 0 {
		return nil
	}
	models := make([]packageModel, len(ps))
	for i, p := range ps {
		models[i] = *toPackageModel(p)
	}
	_, err := s.pg.NewInsert(&models).Exec(ctx)
	return err
}

func (s *Store) GetPackage(ctx context.Context, packageID id.PackageID) (*pack.Package, error) {
	m := new(packageModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", packageID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, prepaid.ErrPackageNotFound
		}
		return nil, err
	}
	return fromPackageModel(m)
}

func (s *Store) ListPackages(ctx context.Context, memberID id.MemberID, appID string, opts pack.ListOpts) ([]*pack.Package, error) {
	var models []packageModel
	q := s.pg.NewSelect(&models).
		Where("member_id = ?", memberID.String()).
		Where("app_id = ?", appID)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*pack.Package, len(models))
	for i := range models {
		p, err := fromPackageModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePackage(ctx context.Context, p *pack.Package) error {
	m := toPackageModel(p)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return prepaid.ErrPackageNotFound
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
