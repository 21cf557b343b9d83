package prepaid_test

import (
	"context"
	"errors"
	"testing"
	"time"

	prepaid "github.com/clubworks/prepaid"
	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/pack"
	"github.com/clubworks/prepaid/store"
	"github.com/clubworks/prepaid/store/memory"
	"github.com/clubworks/prepaid/txlog"
	"github.com/clubworks/prepaid/types"
	"github.com/clubworks/prepaid/voucher"
)

func newTestEngine(t *testing.T, opts ...prepaid.Option) (*prepaid.Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	eng := prepaid.New(st, opts...)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	return eng, st
}

func mustCreateVoucher(t *testing.T, eng *prepaid.Engine, balance, foc types.Money) *voucher.Voucher {
	t.Helper()
	v := &voucher.Voucher{
		MemberID:     id.NewMemberID(),
		Name:         "Test Voucher",
		Balance:      balance,
		FreeOfCharge: foc,
	}
	if err := eng.CreateVoucher(context.Background(), v); err != nil {
		t.Fatalf("create voucher: %v", err)
	}
	return v
}

func TestCreateVoucherWritesOpeningEntries(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	v := mustCreateVoucher(t, eng, types.MYR(22000), types.MYR(2000))

	if v.Version != 1 {
		t.Errorf("version = %d, want 1", v.Version)
	}
	if v.Status != voucher.StatusActive {
		t.Errorf("status = %q, want active", v.Status)
	}

	entries, err := eng.History(ctx, v.ID, txlog.ListOpts{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	purchase := entries[0]
	if purchase.Kind != txlog.KindPurchase {
		t.Errorf("entries[0].Kind = %q, want PURCHASE", purchase.Kind)
	}
	if !purchase.Delta.Equal(types.MYR(20000)) {
		t.Errorf("purchase delta = %s, want 200.00", purchase.Delta)
	}
	if !purchase.Balance.Equal(types.MYR(20000)) {
		t.Errorf("purchase balance = %s, want 200.00", purchase.Balance)
	}

	grant := entries[1]
	if grant.Kind != txlog.KindFocGrant {
		t.Errorf("entries[1].Kind = %q, want FOC_GRANT", grant.Kind)
	}
	if !grant.Delta.Equal(types.MYR(2000)) {
		t.Errorf("grant delta = %s, want 20.00", grant.Delta)
	}
	if !grant.Balance.Equal(types.MYR(22000)) {
		t.Errorf("grant balance = %s, want 220.00", grant.Balance)
	}
}

func TestCreateVoucherNoFocSingleEntry(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	v := mustCreateVoucher(t, eng, types.MYR(10000), types.Money{})

	entries, err := eng.History(ctx, v.ID, txlog.ListOpts{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Kind != txlog.KindPurchase {
		t.Errorf("kind = %q, want PURCHASE", entries[0].Kind)
	}
	if !entries[0].Delta.Equal(types.MYR(10000)) {
		t.Errorf("delta = %s, want 100.00", entries[0].Delta)
	}
}

func TestCreateVoucherValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	memberID := id.NewMemberID()

	tests := []struct {
		name    string
		voucher *voucher.Voucher
	}{
		{
			name:    "missing member",
			voucher: &voucher.Voucher{Balance: types.MYR(1000)},
		},
		{
			name:    "negative balance",
			voucher: &voucher.Voucher{MemberID: memberID, Balance: types.MYR(-1)},
		},
		{
			name: "foc exceeds balance",
			voucher: &voucher.Voucher{
				MemberID:     memberID,
				Balance:      types.MYR(1000),
				FreeOfCharge: types.MYR(2000),
			},
		},
		{
			name: "foc currency mismatch",
			voucher: &voucher.Voucher{
				MemberID:     memberID,
				Balance:      types.MYR(1000),
				FreeOfCharge: types.SGD(100),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.CreateVoucher(ctx, tt.voucher)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !prepaid.IsValidation(err) {
				t.Errorf("IsValidation(%v) = false, want true", err)
			}
		})
	}
}

func TestConsume(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	staff := id.NewMemberID()

	v := mustCreateVoucher(t, eng, types.MYR(22000), types.MYR(2000))

	entry, err := eng.Consume(ctx, prepaid.ConsumeRequest{
		VoucherID: v.ID,
		Amount:    types.MYR(7000),
		HandledBy: staff,
		Remark:    "haircut",
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	if entry.Kind != txlog.KindConsumption {
		t.Errorf("kind = %q, want CONSUMPTION", entry.Kind)
	}
	if !entry.Delta.Equal(types.MYR(-7000)) {
		t.Errorf("delta = %s, want -70.00", entry.Delta)
	}
	if !entry.Balance.Equal(types.MYR(15000)) {
		t.Errorf("balance snapshot = %s, want 150.00", entry.Balance)
	}

	got, err := eng.GetVoucher(ctx, v.ID)
	if err != nil {
		t.Fatalf("get voucher: %v", err)
	}
	if !got.Balance.Equal(types.MYR(15000)) {
		t.Errorf("voucher balance = %s, want 150.00", got.Balance)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
}

func TestConsumeEatsIntoFocGrant(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	// 100.00 balance of which 30.00 is FOC. Consuming 80.00 spends the
	// entire paid portion plus 10.00 of the grant.
	v := mustCreateVoucher(t, eng, types.MYR(10000), types.MYR(3000))

	if _, err := eng.Consume(ctx, prepaid.ConsumeRequest{
		VoucherID: v.ID,
		Amount:    types.MYR(8000),
	}); err != nil {
		t.Fatalf("consume: %v", err)
	}

	got, err := eng.GetVoucher(ctx, v.ID)
	if err != nil {
		t.Fatalf("get voucher: %v", err)
	}
	if !got.Balance.Equal(types.MYR(2000)) {
		t.Errorf("balance = %s, want 20.00", got.Balance)
	}
	if !got.FreeOfCharge.Equal(types.MYR(2000)) {
		t.Errorf("foc = %s, want clamped to 20.00", got.FreeOfCharge)
	}
}

func TestConsumeInsufficientBalance(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	v := mustCreateVoucher(t, eng, types.MYR(5000), types.Money{})

	_, err := eng.Consume(ctx, prepaid.ConsumeRequest{
		VoucherID: v.ID,
		Amount:    types.MYR(5001),
	})
	if !errors.Is(err, prepaid.ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}

	// The failed consume must not have touched the balance.
	got, _ := eng.GetVoucher(ctx, v.ID)
	if !got.Balance.Equal(types.MYR(5000)) {
		t.Errorf("balance = %s, want unchanged 50.00", got.Balance)
	}
}

func TestConsumeClosedVoucher(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	v := mustCreateVoucher(t, eng, types.MYR(5000), types.Money{})

	closed, err := eng.GetVoucher(ctx, v.ID)
	if err != nil {
		t.Fatalf("get voucher: %v", err)
	}
	closed.Status = voucher.StatusClosed
	if err := st.UpdateVoucher(ctx, closed, closed.Version); err != nil {
		t.Fatalf("close voucher: %v", err)
	}

	_, err = eng.Consume(ctx, prepaid.ConsumeRequest{
		VoucherID: v.ID,
		Amount:    types.MYR(100),
	})
	if !errors.Is(err, prepaid.ErrVoucherClosed) {
		t.Errorf("err = %v, want ErrVoucherClosed", err)
	}
}

func TestConsumeCurrencyMismatch(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	v := mustCreateVoucher(t, eng, types.MYR(5000), types.Money{})

	_, err := eng.Consume(ctx, prepaid.ConsumeRequest{
		VoucherID: v.ID,
		Amount:    types.SGD(100),
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !prepaid.IsValidation(err) {
		t.Errorf("IsValidation(%v) = false, want true", err)
	}
}

func TestConsumeVersionConflict(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	v := mustCreateVoucher(t, eng, types.MYR(5000), types.Money{})

	// Simulate a concurrent writer bumping the version between the
	// engine's read and its update.
	stale, err := eng.GetVoucher(ctx, v.ID)
	if err != nil {
		t.Fatalf("get voucher: %v", err)
	}
	if err := st.UpdateVoucher(ctx, stale, stale.Version-1); !errors.Is(err, prepaid.ErrConflict) {
		t.Fatalf("stale update err = %v, want ErrConflict", err)
	}
	if !prepaid.IsConflict(prepaid.ErrConflict) {
		t.Error("IsConflict(ErrConflict) = false")
	}
	if !prepaid.IsRetryable(prepaid.ErrConflict) {
		t.Error("IsRetryable(ErrConflict) = false")
	}
}

// stalledStore parks every voucher read until the caller's context expires,
// standing in for a backend that stops answering.
type stalledStore struct {
	store.Store
}

func (s *stalledStore) GetVoucher(ctx context.Context, voucherID id.VoucherID) (*voucher.Voucher, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestConsumeOperationDeadline(t *testing.T) {
	st := &stalledStore{Store: memory.New()}
	eng := prepaid.New(st, prepaid.WithOperationDeadline(10*time.Millisecond))
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start engine: %v", err)
	}

	_, err := eng.Consume(context.Background(), prepaid.ConsumeRequest{
		VoucherID: id.NewVoucherID(),
		Amount:    types.MYR(100),
	})
	if !errors.Is(err, prepaid.ErrOperationTimeout) {
		t.Fatalf("err = %v, want ErrOperationTimeout", err)
	}
	if !prepaid.IsRetryable(err) {
		t.Error("operation timeout must be retryable")
	}
}

func TestTemplates(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	tpl := &voucher.Template{
		Name:  "Gold Voucher",
		Price: types.MYR(20000),
		FOC:   types.MYR(3000),
		AppID: "app_1",
	}
	if err := eng.CreateTemplate(ctx, tpl); err != nil {
		t.Fatalf("create template: %v", err)
	}
	if tpl.ID.IsNil() {
		t.Fatal("template id not assigned")
	}

	got, err := eng.GetTemplateByName(ctx, "Gold Voucher", "app_1")
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if !got.Price.Equal(types.MYR(20000)) {
		t.Errorf("price = %s, want 200.00", got.Price)
	}

	if _, err := eng.GetTemplateByName(ctx, "missing", "app_1"); !prepaid.IsNotFound(err) {
		t.Errorf("err = %v, want a not-found error", err)
	}
}

func testPackage(memberID id.MemberID, name string) *pack.Package {
	return &pack.Package{
		MemberID: memberID,
		Name:     name,
		Lines: []pack.LineItem{
			{
				ServiceID:      id.NewServiceID(),
				UnitPrice:      types.MYR(5000),
				DiscountFactor: 0.8,
				Quantity:       10,
				Active:         true,
			},
		},
	}
}

func TestCreatePackage(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	p := testPackage(id.NewMemberID(), "10x Treatment")
	if err := eng.CreatePackage(ctx, p); err != nil {
		t.Fatalf("create package: %v", err)
	}
	if p.ID.IsNil() {
		t.Fatal("package id not assigned")
	}
	if p.Lines[0].ID.IsNil() {
		t.Error("line id not assigned")
	}
	if p.Lines[0].PackageID.String() != p.ID.String() {
		t.Error("line not linked to package")
	}
	if p.Status != pack.StatusActive {
		t.Errorf("status = %q, want active", p.Status)
	}
}

func TestCreatePackagesPreservesOrder(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	memberID := id.NewMemberID()

	ps := []*pack.Package{
		testPackage(memberID, "first"),
		testPackage(memberID, "second"),
		testPackage(memberID, "third"),
	}
	ids, err := eng.CreatePackages(ctx, ps)
	if err != nil {
		t.Fatalf("create packages: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("got %d ids, want 3", len(ids))
	}
	for i, p := range ps {
		if ids[i].String() != p.ID.String() {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], p.ID)
		}
	}
}

func TestUpdatePackageFrozenLines(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	p := testPackage(id.NewMemberID(), "frozen")
	p.Customizable = false
	if err := eng.CreatePackage(ctx, p); err != nil {
		t.Fatalf("create package: %v", err)
	}

	// Toggling Active is allowed on a frozen package.
	toggled := *p
	toggled.Lines = append([]pack.LineItem(nil), p.Lines...)
	toggled.Lines[0].Active = false
	if err := eng.UpdatePackage(ctx, &toggled); err != nil {
		t.Fatalf("active toggle rejected: %v", err)
	}

	// Changing anything else is not.
	changed := *p
	changed.Lines = append([]pack.LineItem(nil), p.Lines...)
	changed.Lines[0].Quantity = 99
	if err := eng.UpdatePackage(ctx, &changed); !errors.Is(err, prepaid.ErrPackageFrozen) {
		t.Errorf("err = %v, want ErrPackageFrozen", err)
	}
}

func TestUpdatePackageCustomizable(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	p := testPackage(id.NewMemberID(), "customizable")
	p.Customizable = true
	if err := eng.CreatePackage(ctx, p); err != nil {
		t.Fatalf("create package: %v", err)
	}

	changed := *p
	changed.Lines = append([]pack.LineItem(nil), p.Lines...)
	changed.Lines[0].Quantity = 5
	if err := eng.UpdatePackage(ctx, &changed); err != nil {
		t.Fatalf("update rejected: %v", err)
	}

	got, err := eng.GetPackage(ctx, p.ID)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if got.Lines[0].Quantity != 5 {
		t.Errorf("quantity = %d, want 5", got.Lines[0].Quantity)
	}
}
