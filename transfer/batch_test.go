package transfer

import (
	"errors"
	"strings"
	"testing"

	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/pack"
	"github.com/clubworks/prepaid/types"
)

func snapshotFor(sourceID id.VoucherID, balance types.Money) Snapshot {
	return Snapshot{sourceID.String(): balance}
}

func stagedPackage() *pack.Package {
	return &pack.Package{
		ID:   id.NewPackageID(),
		Name: "Facial 10-visit",
		Lines: []pack.LineItem{
			{ServiceID: id.NewServiceID(), UnitPrice: types.MYR(8000), DiscountFactor: 0.9, Quantity: 10},
		},
	}
}

func TestAddTransfer(t *testing.T) {
	source := id.NewVoucherID()
	snap := snapshotFor(source, types.MYR(10000))

	var b Batch
	b, err := b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.MYR(6000), snap)
	if err != nil {
		t.Fatalf("AddTransfer failed: %v", err)
	}
	if len(b.Transfers) != 1 {
		t.Fatalf("expected 1 staged transfer, got %d", len(b.Transfers))
	}
	if b.Transfers[0].ID.IsNil() {
		t.Error("staged transfer should get an id")
	}
}

func TestAddTransferReservation(t *testing.T) {
	source := id.NewVoucherID()
	snap := snapshotFor(source, types.MYR(10000))

	var b Batch
	b, err := b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.MYR(6000), snap)
	if err != nil {
		t.Fatalf("first AddTransfer failed: %v", err)
	}

	// 60.00 staged of 100.00; staging 50.00 more must be rejected with
	// remaining reservable 40.00.
	rejected, err := b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.MYR(5000), snap)
	if err == nil {
		t.Fatal("expected reservation rejection")
	}
	var re *ReservationError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReservationError, got %T", err)
	}
	if want := types.MYR(4000); !re.Remaining.Equal(want) {
		t.Errorf("remaining: got %v, want %v", re.Remaining, want)
	}
	if !strings.Contains(err.Error(), "remaining reservable: 40.00") {
		t.Errorf("message should carry the remaining amount, got %q", err.Error())
	}
	if len(rejected.Transfers) != 1 {
		t.Errorf("rejected batch must be unchanged, has %d transfers", len(rejected.Transfers))
	}
}

func TestAddTransferExactBalance(t *testing.T) {
	source := id.NewVoucherID()
	snap := snapshotFor(source, types.MYR(10000))

	var b Batch
	var err error
	for _, amount := range []types.Money{types.MYR(6000), types.MYR(4000)} {
		b, err = b.AddTransfer(source, ToVoucher(id.NewVoucherID()), amount, snap)
		if err != nil {
			t.Fatalf("staging up to exactly the balance should succeed: %v", err)
		}
	}

	// One more sen is over.
	_, err = b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.MYR(1), snap)
	var re *ReservationError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReservationError, got %v", err)
	}
	if !re.Remaining.IsZero() {
		t.Errorf("remaining should be zero, got %v", re.Remaining)
	}
}

func TestAddTransferCurrencyMismatch(t *testing.T) {
	source := id.NewVoucherID()
	snap := snapshotFor(source, types.MYR(10000))

	var b Batch
	rejected, err := b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.SGD(2500), snap)
	if err == nil {
		t.Fatal("expected rejection for amount in a different currency than the snapshot")
	}
	if !strings.Contains(err.Error(), "currency") {
		t.Errorf("message should name the currency mismatch, got %q", err.Error())
	}
	if !rejected.IsEmpty() {
		t.Error("batch must be unchanged after rejection")
	}

	// The mismatch is caught even when the source already has reservations.
	b, err = b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.MYR(4000), snap)
	if err != nil {
		t.Fatalf("AddTransfer failed: %v", err)
	}
	if _, err := b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.SGD(1000), snap); err == nil {
		t.Fatal("expected rejection for mismatched follow-up amount")
	}
}

func TestAddTransferValidation(t *testing.T) {
	source := id.NewVoucherID()
	snap := snapshotFor(source, types.MYR(10000))
	dest := ToVoucher(id.NewVoucherID())

	tests := []struct {
		name string
		fn   func(b Batch) (Batch, error)
	}{
		{"nil source", func(b Batch) (Batch, error) {
			return b.AddTransfer(id.Nil, dest, types.MYR(100), snap)
		}},
		{"empty destination", func(b Batch) (Batch, error) {
			return b.AddTransfer(source, Destination{}, types.MYR(100), snap)
		}},
		{"both destinations", func(b Batch) (Batch, error) {
			d := Destination{VoucherID: id.NewVoucherID(), TempKey: id.NewTempKey()}
			return b.AddTransfer(source, d, types.MYR(100), snap)
		}},
		{"zero amount", func(b Batch) (Batch, error) {
			return b.AddTransfer(source, dest, types.MYR(0), snap)
		}},
		{"negative amount", func(b Batch) (Batch, error) {
			return b.AddTransfer(source, dest, types.MYR(-100), snap)
		}},
		{"unknown source snapshot", func(b Batch) (Batch, error) {
			return b.AddTransfer(id.NewVoucherID(), dest, types.MYR(100), snap)
		}},
		{"unstaged temp key", func(b Batch) (Batch, error) {
			return b.AddTransfer(source, ToNew(id.NewTempKey()), types.MYR(100), snap)
		}},
		{"malformed temp key", func(b Batch) (Batch, error) {
			return b.AddTransfer(source, ToNew("not-a-key"), types.MYR(100), snap)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Batch
			next, err := tt.fn(b)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !next.IsEmpty() {
				t.Error("batch must be unchanged after rejection")
			}
		})
	}
}

func TestAddTransferToStagedCreation(t *testing.T) {
	source := id.NewVoucherID()
	snap := snapshotFor(source, types.MYR(10000))

	var b Batch
	b, key, err := b.AddCreation(stagedPackage())
	if err != nil {
		t.Fatalf("AddCreation failed: %v", err)
	}
	if !id.IsTempKey(key) {
		t.Fatalf("expected a temp key, got %q", key)
	}

	b, err = b.AddTransfer(source, ToNew(key), types.MYR(5000), snap)
	if err != nil {
		t.Fatalf("AddTransfer to staged creation failed: %v", err)
	}
	if !b.Transfers[0].Dest.IsTemp() {
		t.Error("destination should be a temp reference")
	}
}

func TestAddCreationValidation(t *testing.T) {
	var b Batch

	if _, _, err := b.AddCreation(nil); err == nil {
		t.Error("expected error for nil payload")
	}

	unnamed := stagedPackage()
	unnamed.Name = ""
	if _, _, err := b.AddCreation(unnamed); err == nil {
		t.Error("expected error for unnamed payload")
	}

	empty := stagedPackage()
	empty.Lines = nil
	if _, _, err := b.AddCreation(empty); err == nil {
		t.Error("expected error for payload without lines")
	}
}

func TestRemoveTransfer(t *testing.T) {
	source := id.NewVoucherID()
	snap := snapshotFor(source, types.MYR(10000))

	var b Batch
	b, err := b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.MYR(6000), snap)
	if err != nil {
		t.Fatalf("AddTransfer failed: %v", err)
	}
	staged := b.Transfers[0].ID

	b = b.RemoveTransfer(staged)
	if len(b.Transfers) != 0 {
		t.Fatalf("expected empty batch, got %d transfers", len(b.Transfers))
	}

	// Removal frees the reservation.
	b, err = b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.MYR(10000), snap)
	if err != nil {
		t.Fatalf("reservation should be freed after removal: %v", err)
	}

	// Unknown id is a no-op.
	b = b.RemoveTransfer(id.NewTransferID())
	if len(b.Transfers) != 1 {
		t.Error("removing an unknown id must not drop staged items")
	}
}

func TestClear(t *testing.T) {
	source := id.NewVoucherID()
	snap := snapshotFor(source, types.MYR(10000))

	var b Batch
	b, _, err := b.AddCreation(stagedPackage())
	if err != nil {
		t.Fatalf("AddCreation failed: %v", err)
	}
	b, err = b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.MYR(100), snap)
	if err != nil {
		t.Fatalf("AddTransfer failed: %v", err)
	}

	if b.Clear().IsEmpty() != true {
		t.Error("Clear should empty both lists")
	}
}

func TestBatchValueSemantics(t *testing.T) {
	source := id.NewVoucherID()
	snap := snapshotFor(source, types.MYR(10000))

	var original Batch
	next, err := original.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.MYR(100), snap)
	if err != nil {
		t.Fatalf("AddTransfer failed: %v", err)
	}
	if !original.IsEmpty() {
		t.Error("operations must not mutate the receiver")
	}
	if next.IsEmpty() {
		t.Error("returned batch should carry the staged item")
	}
}

func TestReserved(t *testing.T) {
	source := id.NewVoucherID()
	other := id.NewVoucherID()
	snap := Snapshot{
		source.String(): types.MYR(10000),
		other.String():  types.MYR(5000),
	}

	var b Batch
	var err error
	b, err = b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.MYR(3000), snap)
	if err != nil {
		t.Fatal(err)
	}
	b, err = b.AddTransfer(source, ToVoucher(id.NewVoucherID()), types.MYR(2000), snap)
	if err != nil {
		t.Fatal(err)
	}
	b, err = b.AddTransfer(other, ToVoucher(id.NewVoucherID()), types.MYR(1000), snap)
	if err != nil {
		t.Fatal(err)
	}

	if got := b.Reserved(source); !got.Equal(types.MYR(5000)) {
		t.Errorf("Reserved(source): got %v, want %v", got, types.MYR(5000))
	}
	if got := b.Reserved(other); !got.Equal(types.MYR(1000)) {
		t.Errorf("Reserved(other): got %v, want %v", got, types.MYR(1000))
	}
}
