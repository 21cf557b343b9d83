package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	prepaid "github.com/clubworks/prepaid"
	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/pack"
	prepaidstore "github.com/clubworks/prepaid/store"
	"github.com/clubworks/prepaid/txlog"
	"github.com/clubworks/prepaid/voucher"
)

// Collection name constants.
const (
	colVouchers  = "prepaid_vouchers"
	colTemplates = "prepaid_voucher_templates"
	colTxLog     = "prepaid_tx_log"
	colPackages  = "prepaid_packages"
)

// compile-time interface check
var _ prepaidstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all prepaid collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("prepaid/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("prepaid/mongo: create voucher: %w", err)
	}
	return nil
}

func (s *Store) GetVoucher(ctx context.Context, voucherID id.VoucherID) (*voucher.Voucher, error) {
	var m voucherModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": voucherID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, prepaid.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("prepaid/mongo: get voucher: %w", err)
	}
	return fromVoucherModel(&m)
}

func (s *Store) ListVouchers(ctx context.Context, memberID id.MemberID, appID string, opts voucher.ListOpts) ([]*voucher.Voucher, error) {
	var models []voucherModel

	filter := bson.M{"member_id": memberID.String(), "app_id": appID}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("prepaid/mongo: list vouchers: %w", err)
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
// field. A document matched by id but not by version means another operator
// got there first, which surfaces as ErrConflict.
func (s *Store) UpdateVoucher(ctx context.Context, v *voucher.Voucher, expectedVersion int64) error {
	t := now()
	res, err := s.mdb.NewUpdate((*voucherModel)(nil)).
		Filter(bson.M{"_id": v.ID.String(), "version": expectedVersion}).
		Set("balance_amount", v.Balance.Amount).
		Set("balance_currency", v.Balance.Currency).
		Set("foc_amount", v.FreeOfCharge.Amount).
		Set("foc_currency", v.FreeOfCharge.Currency).
		Set("status", string(v.Status)).
		Set("version", expectedVersion+1).
		Set("remarks", v.Remarks).
		Set("handled_by", v.HandledBy.String()).
		Set("closed_at", v.ClosedAt).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("prepaid/mongo: update voucher: %w", err)
	}
	if res.MatchedCount() == 0 {
		// Distinguish a stale version from a missing document.
		var probe voucherModel
		err := s.mdb.NewFind(&probe).Filter(bson.M{"_id": v.ID.String()}).Scan(ctx)
		if err != nil {
			if isNoDocuments(err) {
				return prepaid.ErrVoucherNotFound
			}
			return fmt.Errorf("prepaid/mongo: update voucher: %w", err)
		}
		return prepaid.ErrConflict
	}

	v.Version = expectedVersion + 1
	v.UpdatedAt = t
	return nil
}

func (s *Store) CreateTemplate(ctx context.Context, t *voucher.Template) error {
	m := toTemplateModel(t)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("prepaid/mongo: create template: %w", err)
	}
	return nil
}

func (s *Store) GetTemplateByName(ctx context.Context, name, appID string) (*voucher.Template, error) {
	var m templateModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name, "app_id": appID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, prepaid.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("prepaid/mongo: get template by name: %w", err)
	}
	return fromTemplateModel(&m)
}

// ==================== Transaction Log Store ====================

func (s *Store) AppendLogEntry(ctx context.Context, e *txlog.Entry) error {
	m := toLogEntryModel(e)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("prepaid/mongo: append log entry: %w", err)
	}
	return nil
}

func (s *Store) GetLogEntry(ctx context.Context, entryID id.LogEntryID) (*txlog.Entry, error) {
	var m logEntryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, prepaid.ErrLogEntryNotFound
		}
		return nil, fmt.Errorf("prepaid/mongo: get log entry: %w", err)
	}
	return fromLogEntryModel(&m)
}

func (s *Store) ListLogEntries(ctx context.Context, voucherID id.VoucherID, opts txlog.ListOpts) ([]*txlog.Entry, error) {
	var models []logEntryModel

	filter := bson.M{"voucher_id": voucherID.String()}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	// Oldest first; TypeIDs are K-sortable so _id breaks same-instant ties.
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "logged_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("prepaid/mongo: list log entries: %w", err)
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

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("prepaid/mongo: update log entry: %w", err)
	}
	if res.MatchedCount() == 0 {
		return prepaid.ErrLogEntryNotFound
	}
	return nil
}

func (s *Store) DeleteLogEntry(ctx context.Context, entryID id.LogEntryID) error {
	res, err := s.mdb.NewDelete((*logEntryModel)(nil)).
		Filter(bson.M{"_id": entryID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("prepaid/mongo: delete log entry: %w", err)
	}
	if res.DeletedCount() == 0 {
		return prepaid.ErrLogEntryNotFound
	}
	return nil
}

// ==================== Package Store ====================

func (s *Store) CreatePackage(ctx context.Context, p *pack.Package) error {
	m := toPackageModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("prepaid/mongo: create package: %w", err)
	}
	return nil
}

func (s *Store) CreatePackages(ctx context.Context, ps []*pack.Package) error {
	if len(ps) == 0 {
		return nil
	}
	models := make([]packageModel, len(ps))
	for i, p := range ps {
		models[i] = *toPackageModel(p)
	}
	_, err := s.mdb.NewInsert(&models).Exec(ctx)
	if err != nil {
		return fmt.Errorf("prepaid/mongo: create packages: %w", err)
	}
	return nil
}

func (s *Store) GetPackage(ctx context.Context, packageID id.PackageID) (*pack.Package, error) {
	var m packageModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": packageID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, prepaid.ErrPackageNotFound
		}
		return nil, fmt.Errorf("prepaid/mongo: get package: %w", err)
	}
	return fromPackageModel(&m)
}

func (s *Store) ListPackages(ctx context.Context, memberID id.MemberID, appID string, opts pack.ListOpts) ([]*pack.Package, error) {
	var models []packageModel

	filter := bson.M{"member_id": memberID.String(), "app_id": appID}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("prepaid/mongo: list packages: %w", err)
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

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("prepaid/mongo: update package: %w", err)
	}
	if res.MatchedCount() == 0 {
		return prepaid.ErrPackageNotFound
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all prepaid collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colVouchers: {
			{Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "app_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "app_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "template_id", Value: 1}}},
		},
		colTemplates: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}, {Key: "app_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colTxLog: {
			{Keys: bson.D{{Key: "voucher_id", Value: 1}, {Key: "logged_at", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "voucher_id", Value: 1}, {Key: "kind", Value: 1}}},
		},
		colPackages: {
			{Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "app_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "app_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
}
