package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/clubworks/prepaid"
	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/pack"
	prepaidstore "github.com/clubworks/prepaid/store"
	"github.com/clubworks/prepaid/txlog"
	"github.com/clubworks/prepaid/voucher"
)

// compile-time interface check
var _ prepaidstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store. It copies entities on
// the way in and out so callers cannot alias stored state, which keeps the
// optimistic version check honest.
type Store struct {
	mu sync.RWMutex

	vouchers  map[string]*voucher.Voucher
	templates map[string]*voucher.Template

	// Log entries per voucher id, in append order.
	logs       map[string][]*txlog.Entry
	logIndex   map[string]string // entry id -> voucher id
	packages   map[string]*pack.Package
	packOrder  []string
	closedFlag bool
}

func New() *Store {
	return &Store{
		vouchers:  make(map[string]*voucher.Voucher),
		templates: make(map[string]*voucher.Template),
		logs:      make(map[string][]*txlog.Entry),
		logIndex:  make(map[string]string),
		packages:  make(map[string]*pack.Package),
	}
}

// Voucher Store implementation

func (s *Store) CreateVoucher(_ context.Context, v *voucher.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closedFlag {
		return prepaid.ErrStoreClosed
	}
	if _, exists := s.vouchers[v.ID.String()]; exists {
		return prepaid.ErrAlreadyExists
	}
	s.vouchers[v.ID.String()] = cloneVoucher(v)
	return nil
}

func (s *Store) GetVoucher(_ context.Context, voucherID id.VoucherID) (*voucher.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.vouchers[voucherID.String()]; ok {
		return cloneVoucher(v), nil
	}
	return nil, prepaid.ErrVoucherNotFound
}

func (s *Store) ListVouchers(_ context.Context, memberID id.MemberID, appID string, opts voucher.ListOpts) ([]*voucher.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*voucher.Voucher, 0)
	for _, v := range s.vouchers {
		if v.MemberID.String() != memberID.String() || v.AppID != appID {
			continue
		}
		if opts.Status == "" || v.Status == opts.Status {
			result = append(result, cloneVoucher(v))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateVoucher(_ context.Context, v *voucher.Voucher, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.vouchers[v.ID.String()]
	if !exists {
		return prepaid.ErrVoucherNotFound
	}
	if stored.Version != expectedVersion {
		return prepaid.ErrConflict
	}

	next := cloneVoucher(v)
	next.Version = expectedVersion + 1
	next.Touch()
	s.vouchers[v.ID.String()] = next
	v.Version = next.Version
	return nil
}

func (s *Store) CreateTemplate(_ context.Context, t *voucher.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[t.ID.String()]; exists {
		return prepaid.ErrAlreadyExists
	}
	cp := *t
	s.templates[t.ID.String()] = &cp
	return nil
}

func (s *Store) GetTemplateByName(_ context.Context, name, appID string) (*voucher.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.templates {
		if t.Name == name && t.AppID == appID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, prepaid.ErrTemplateNotFound
}

// Transaction log Store implementation

func (s *Store) AppendLogEntry(_ context.Context, e *txlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.logIndex[e.ID.String()]; exists {
		return prepaid.ErrAlreadyExists
	}
	cp := *e
	s.logs[e.VoucherID.String()] = append(s.logs[e.VoucherID.String()], &cp)
	s.logIndex[e.ID.String()] = e.VoucherID.String()
	return nil
}

func (s *Store) GetLogEntry(_ context.Context, entryID id.LogEntryID) (*txlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vid, ok := s.logIndex[entryID.String()]
	if !ok {
		return nil, prepaid.ErrLogEntryNotFound
	}
	for _, e := range s.logs[vid] {
		if e.ID.String() == entryID.String() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, prepaid.ErrLogEntryNotFound
}

func (s *Store) ListLogEntries(_ context.Context, voucherID id.VoucherID, opts txlog.ListOpts) ([]*txlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.logs[voucherID.String()]
	result := make([]*txlog.Entry, 0, len(entries))
	for _, e := range entries {
		if opts.Kind == "" || e.Kind == opts.Kind {
			cp := *e
			result = append(result, &cp)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].At.Equal(result[j].At) {
			return result[i].At.Before(result[j].At)
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateLogEntry(_ context.Context, e *txlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vid, ok := s.logIndex[e.ID.String()]
	if !ok {
		return prepaid.ErrLogEntryNotFound
	}
	for i, stored := range s.logs[vid] {
		if stored.ID.String() == e.ID.String() {
			cp := *e
			s.logs[vid][i] = &cp
			return nil
		}
	}
	return prepaid.ErrLogEntryNotFound
}

func (s *Store) DeleteLogEntry(_ context.Context, entryID id.LogEntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vid, ok := s.logIndex[entryID.String()]
	if !ok {
		return prepaid.ErrLogEntryNotFound
	}
	entries := s.logs[vid]
	for i, stored := range entries {
		if stored.ID.String() == entryID.String() {
			s.logs[vid] = append(entries[:i:i], entries[i+1:]...)
			delete(s.logIndex, entryID.String())
			return nil
		}
	}
	return prepaid.ErrLogEntryNotFound
}

// Package Store implementation

func (s *Store) CreatePackage(_ context.Context, p *pack.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createPackageLocked(p)
}

func (s *Store) CreatePackages(_ context.Context, ps []*pack.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// All-or-nothing: check for collisions before inserting any.
	for _, p := range ps {
		if _, exists := s.packages[p.ID.String()]; exists {
			return prepaid.ErrAlreadyExists
		}
	}
	for _, p := range ps {
		if err := s.createPackageLocked(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createPackageLocked(p *pack.Package) error {
	if _, exists := s.packages[p.ID.String()]; exists {
		return prepaid.ErrAlreadyExists
	}
	s.packages[p.ID.String()] = clonePackage(p)
	s.packOrder = append(s.packOrder, p.ID.String())
	return nil
}

func (s *Store) GetPackage(_ context.Context, packageID id.PackageID) (*pack.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.packages[packageID.String()]; ok {
		return clonePackage(p), nil
	}
	return nil, prepaid.ErrPackageNotFound
}

func (s *Store) ListPackages(_ context.Context, memberID id.MemberID, appID string, opts pack.ListOpts) ([]*pack.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*pack.Package, 0)
	for _, key := range s.packOrder {
		p := s.packages[key]
		if p == nil || p.MemberID.String() != memberID.String() || p.AppID != appID {
			continue
		}
		if opts.Status == "" || p.Status == opts.Status {
			result = append(result, clonePackage(p))
		}
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdatePackage(_ context.Context, p *pack.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.packages[p.ID.String()]; !exists {
		return prepaid.ErrPackageNotFound
	}
	s.packages[p.ID.String()] = clonePackage(p)
	return nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closedFlag {
		return prepaid.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closedFlag = true
	return nil
}

// Helpers

func cloneVoucher(v *voucher.Voucher) *voucher.Voucher {
	cp := *v
	if v.TemplateID != nil {
		tid := *v.TemplateID
		cp.TemplateID = &tid
	}
	if v.ClosedAt != nil {
		at := *v.ClosedAt
		cp.ClosedAt = &at
	}
	if v.Metadata != nil {
		cp.Metadata = make(map[string]string, len(v.Metadata))
		for k, val := range v.Metadata {
			cp.Metadata[k] = val
		}
	}
	return &cp
}

func clonePackage(p *pack.Package) *pack.Package {
	cp := *p
	if p.Lines != nil {
		cp.Lines = make([]pack.LineItem, len(p.Lines))
		copy(cp.Lines, p.Lines)
	}
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, val := range p.Metadata {
			cp.Metadata[k] = val
		}
	}
	return &cp
}

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
