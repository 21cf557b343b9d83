package prepaid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/member"
	"github.com/clubworks/prepaid/pack"
	"github.com/clubworks/prepaid/plugin"
	"github.com/clubworks/prepaid/store"
	"github.com/clubworks/prepaid/txlog"
	"github.com/clubworks/prepaid/types"
	"github.com/clubworks/prepaid/voucher"
)

// Engine is the main prepaid-balance engine: vouchers, packages, the
// transaction log, and the transfer executor behind one typed API.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Member lookup is external; nil means transfers must carry a member id.
	directory member.Directory

	// Configuration
	opDeadline time.Duration
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		plugins:    plugin.NewRegistry(),
		logger:     slog.Default(),
		opDeadline: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithMemberDirectory sets the external member directory used to resolve
// transfer requests by name or phone.
func WithMemberDirectory(d member.Directory) Option {
	return func(e *Engine) {
		e.directory = d
	}
}

// WithOperationDeadline bounds every balance-mutating operation. Exceeding
// it surfaces as ErrOperationTimeout. Zero disables the deadline.
func WithOperationDeadline(d time.Duration) Option {
	return func(e *Engine) {
		e.opDeadline = d
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("prepaid engine started",
		"op_deadline", e.opDeadline,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Plugins exposes the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// opCtx applies the configured operation deadline.
func (e *Engine) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opDeadline <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.opDeadline)
}

// wrapTimeout maps a context deadline to the engine's sentinel so callers
// can classify it as retryable.
func wrapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrOperationTimeout, err)
	}
	return err
}

// ──────────────────────────────────────────────────
// Voucher Management
// ──────────────────────────────────────────────────

// CreateVoucher issues a new voucher and writes its opening ledger entries:
// a PURCHASE entry for the paid portion and, when a free-of-charge grant is
// present, a FOC_GRANT entry on top.
func (e *Engine) CreateVoucher(ctx context.Context, v *voucher.Voucher) error {
	if v.MemberID.IsNil() {
		return &ValidationError{Field: "member_id", Message: "is required"}
	}
	if v.Balance.IsNegative() {
		return &ValidationError{Field: "balance", Message: "must not be negative"}
	}
	if v.FreeOfCharge.IsNegative() {
		return &ValidationError{Field: "free_of_charge", Message: "must not be negative"}
	}
	if v.FreeOfCharge.IsPositive() {
		if v.FreeOfCharge.Currency != v.Balance.Currency {
			return &ValidationError{Field: "free_of_charge", Message: "currency differs from balance"}
		}
		if v.FreeOfCharge.GreaterThan(v.Balance) {
			return &ValidationError{Field: "free_of_charge", Message: "exceeds balance"}
		}
	}

	if v.ID.IsNil() {
		v.ID = id.NewVoucherID()
	}
	v.Entity = types.NewEntity()
	v.Status = voucher.StatusActive
	v.Version = 1

	if err := e.store.CreateVoucher(ctx, v); err != nil {
		return err
	}

	now := time.Now()
	paid := v.Balance
	if v.FreeOfCharge.IsPositive() {
		paid = v.Balance.Subtract(v.FreeOfCharge)
	}

	purchase := &txlog.Entry{
		Entity:    types.NewEntity(),
		ID:        id.NewLogEntryID(),
		VoucherID: v.ID,
		Kind:      txlog.KindPurchase,
		Delta:     paid,
		Balance:   paid,
		CreatedBy: v.CreatedBy,
		HandledBy: v.HandledBy,
		Remark:    v.Remarks,
		At:        now,
	}
	if err := e.store.AppendLogEntry(ctx, purchase); err != nil {
		return err
	}
	e.plugins.EmitLogAppended(ctx, purchase)

	if v.FreeOfCharge.IsPositive() {
		grant := &txlog.Entry{
			Entity:    types.NewEntity(),
			ID:        id.NewLogEntryID(),
			VoucherID: v.ID,
			Kind:      txlog.KindFocGrant,
			Delta:     v.FreeOfCharge,
			Balance:   v.Balance,
			CreatedBy: v.CreatedBy,
			HandledBy: v.HandledBy,
			At:        now,
		}
		if err := e.store.AppendLogEntry(ctx, grant); err != nil {
			return err
		}
		e.plugins.EmitLogAppended(ctx, grant)
	}

	e.plugins.EmitVoucherCreated(ctx, v)
	return nil
}

// GetVoucher retrieves a voucher by ID.
func (e *Engine) GetVoucher(ctx context.Context, voucherID id.VoucherID) (*voucher.Voucher, error) {
	return e.store.GetVoucher(ctx, voucherID)
}

// ListVouchers lists a member's vouchers.
func (e *Engine) ListVouchers(ctx context.Context, memberID id.MemberID, appID string, opts voucher.ListOpts) ([]*voucher.Voucher, error) {
	return e.store.ListVouchers(ctx, memberID, appID, opts)
}

// CurrentBalance re-reads the authoritative balance of a voucher.
func (e *Engine) CurrentBalance(ctx context.Context, voucherID id.VoucherID) (types.Money, error) {
	v, err := e.store.GetVoucher(ctx, voucherID)
	if err != nil {
		return types.Money{}, err
	}
	return v.Balance, nil
}

// CreateTemplate registers immutable voucher reference data.
func (e *Engine) CreateTemplate(ctx context.Context, t *voucher.Template) error {
	if t.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if t.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	if t.ID.IsNil() {
		t.ID = id.NewTemplateID()
	}
	t.Entity = types.NewEntity()

	return e.store.CreateTemplate(ctx, t)
}

// GetTemplateByName looks up a voucher template by name.
func (e *Engine) GetTemplateByName(ctx context.Context, name, appID string) (*voucher.Template, error) {
	return e.store.GetTemplateByName(ctx, name, appID)
}

// ConsumeRequest draws down a voucher balance for a rendered service.
type ConsumeRequest struct {
	VoucherID id.VoucherID
	Amount    types.Money
	HandledBy id.MemberID
	Remark    string
}

// Consume debits a voucher and appends a CONSUMPTION entry. The balance is
// re-read and version-checked, so a concurrent mutation surfaces as
// ErrConflict rather than a lost update.
func (e *Engine) Consume(ctx context.Context, req ConsumeRequest) (*txlog.Entry, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if !req.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Message: "must be positive"}
	}

	v, err := e.store.GetVoucher(ctx, req.VoucherID)
	if err != nil {
		return nil, wrapTimeout(err)
	}
	if !v.IsActive() {
		return nil, ErrVoucherClosed
	}
	if req.Amount.Currency != v.Balance.Currency {
		return nil, &ValidationError{Field: "amount", Message: "currency differs from voucher balance"}
	}
	if req.Amount.GreaterThan(v.Balance) {
		return nil, fmt.Errorf("%w: have %s, need %s",
			ErrInsufficientBalance, v.Balance.FormatMajor(), req.Amount.FormatMajor())
	}

	expected := v.Version
	v.Balance = v.Balance.Subtract(req.Amount)
	if v.FreeOfCharge.IsPositive() && v.FreeOfCharge.GreaterThan(v.Balance) {
		// Consumption eats into the grant once the paid portion is spent.
		v.FreeOfCharge = v.Balance
	}
	if err := e.store.UpdateVoucher(ctx, v, expected); err != nil {
		return nil, wrapTimeout(err)
	}

	entry := &txlog.Entry{
		Entity:    types.NewEntity(),
		ID:        id.NewLogEntryID(),
		VoucherID: v.ID,
		Kind:      txlog.KindConsumption,
		Delta:     req.Amount.Negate(),
		Balance:   v.Balance,
		CreatedBy: req.HandledBy,
		HandledBy: req.HandledBy,
		Remark:    req.Remark,
		At:        time.Now(),
	}
	if err := e.store.AppendLogEntry(ctx, entry); err != nil {
		return nil, wrapTimeout(err)
	}

	e.plugins.EmitLogAppended(ctx, entry)
	e.plugins.EmitBalanceConsumed(ctx, v, req.Amount)

	return entry, nil
}

// History lists a voucher's transaction log, ordered oldest first.
func (e *Engine) History(ctx context.Context, voucherID id.VoucherID, opts txlog.ListOpts) ([]*txlog.Entry, error) {
	return e.store.ListLogEntries(ctx, voucherID, opts)
}

// ──────────────────────────────────────────────────
// Package Management
// ──────────────────────────────────────────────────

// CreatePackage validates and persists a package with its line items.
func (e *Engine) CreatePackage(ctx context.Context, p *pack.Package) error {
	if err := e.preparePackage(p); err != nil {
		return err
	}

	if err := e.store.CreatePackage(ctx, p); err != nil {
		return err
	}

	e.plugins.EmitPackageCreated(ctx, p)
	return nil
}

// CreatePackages bulk-creates packages in one request, preserving submission
// order so callers can correlate returned ids positionally.
func (e *Engine) CreatePackages(ctx context.Context, ps []*pack.Package) ([]id.PackageID, error) {
	for i, p := range ps {
		if err := e.preparePackage(p); err != nil {
			return nil, fmt.Errorf("package %d: %w", i, err)
		}
	}

	if err := e.store.CreatePackages(ctx, ps); err != nil {
		return nil, err
	}

	ids := make([]id.PackageID, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
		e.plugins.EmitPackageCreated(ctx, p)
	}
	return ids, nil
}

// GetPackage retrieves a package by ID.
func (e *Engine) GetPackage(ctx context.Context, packageID id.PackageID) (*pack.Package, error) {
	return e.store.GetPackage(ctx, packageID)
}

// ListPackages lists a member's packages.
func (e *Engine) ListPackages(ctx context.Context, memberID id.MemberID, appID string, opts pack.ListOpts) ([]*pack.Package, error) {
	return e.store.ListPackages(ctx, memberID, appID, opts)
}

// UpdatePackage persists package changes. A non-customizable package's line
// items are frozen after creation; anything beyond Active toggles is
// rejected with ErrPackageFrozen.
func (e *Engine) UpdatePackage(ctx context.Context, p *pack.Package) error {
	old, err := e.store.GetPackage(ctx, p.ID)
	if err != nil {
		return err
	}

	if !old.Customizable && !pack.SameLines(old.Lines, p.Lines) {
		return ErrPackageFrozen
	}
	for i, line := range p.Lines {
		if err := line.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
	}

	p.Touch()
	if err := e.store.UpdatePackage(ctx, p); err != nil {
		return err
	}

	e.plugins.EmitPackageUpdated(ctx, old, p)
	return nil
}

// preparePackage validates a creation payload and assigns ids.
func (e *Engine) preparePackage(p *pack.Package) error {
	if p == nil {
		return &ValidationError{Field: "package", Message: "is required"}
	}
	if p.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if p.MemberID.IsNil() {
		return &ValidationError{Field: "member_id", Message: "is required"}
	}
	if len(p.Lines) == 0 {
		return &ValidationError{Field: "lines", Message: "must not be empty"}
	}

	if p.ID.IsNil() {
		p.ID = id.NewPackageID()
	}
	p.Entity = types.NewEntity()
	if p.Status == "" {
		p.Status = pack.StatusActive
	}

	for i := range p.Lines {
		line := &p.Lines[i]
		if line.ID.IsNil() {
			line.ID = id.NewLineItemID()
		}
		line.PackageID = p.ID
		if err := line.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
		if _, err := pack.LineTotal(line.UnitPrice, line.DiscountFactor, line.Quantity); err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
	}

	// Reject bundles the pricing aggregator cannot total.
	if _, err := pack.BundleTotal(p.Lines); err != nil {
		return err
	}

	return nil
}
