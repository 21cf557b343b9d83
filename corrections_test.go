package prepaid_test

import (
	"context"
	"testing"

	prepaid "github.com/clubworks/prepaid"
	"github.com/clubworks/prepaid/txlog"
	"github.com/clubworks/prepaid/types"
)

func TestCorrectLogEntryCascades(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	v := mustCreateVoucher(t, eng, types.MYR(10000), types.Money{})

	entry, err := eng.Consume(ctx, prepaid.ConsumeRequest{
		VoucherID: v.ID,
		Amount:    types.MYR(3000),
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	// The operator mistyped: the consumption should have been 20.00.
	fixed := types.MYR(-2000)
	remark := "amount corrected"
	corrected, err := eng.CorrectLogEntry(ctx, entry.ID, txlog.Correction{
		Delta:  &fixed,
		Remark: &remark,
	})
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if !corrected.Delta.Equal(fixed) {
		t.Errorf("delta = %s, want -20.00", corrected.Delta)
	}
	if corrected.Remark != remark {
		t.Errorf("remark = %q, want %q", corrected.Remark, remark)
	}

	// Snapshots replay from the full delta history.
	entries, err := eng.History(ctx, v.ID, txlog.ListOpts{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if !entries[1].Balance.Equal(types.MYR(8000)) {
		t.Errorf("corrected snapshot = %s, want 80.00", entries[1].Balance)
	}

	// And the live balance follows the final snapshot.
	balance, err := eng.CurrentBalance(ctx, v.ID)
	if err != nil {
		t.Fatalf("current balance: %v", err)
	}
	if !balance.Equal(types.MYR(8000)) {
		t.Errorf("voucher balance = %s, want 80.00", balance)
	}
}

func TestCorrectLogEntryRemarkOnly(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	v := mustCreateVoucher(t, eng, types.MYR(10000), types.Money{})
	entry, err := eng.Consume(ctx, prepaid.ConsumeRequest{
		VoucherID: v.ID,
		Amount:    types.MYR(3000),
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	remark := "annotated after the fact"
	if _, err := eng.CorrectLogEntry(ctx, entry.ID, txlog.Correction{Remark: &remark}); err != nil {
		t.Fatalf("correct: %v", err)
	}

	// No delta change means no recompute; balances are untouched.
	balance, err := eng.CurrentBalance(ctx, v.ID)
	if err != nil {
		t.Fatalf("current balance: %v", err)
	}
	if !balance.Equal(types.MYR(7000)) {
		t.Errorf("balance = %s, want unchanged 70.00", balance)
	}
}

func TestCorrectLogEntryCurrencyMismatch(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	v := mustCreateVoucher(t, eng, types.MYR(10000), types.Money{})
	entry, err := eng.Consume(ctx, prepaid.ConsumeRequest{
		VoucherID: v.ID,
		Amount:    types.MYR(3000),
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	wrong := types.SGD(-1000)
	_, err = eng.CorrectLogEntry(ctx, entry.ID, txlog.Correction{Delta: &wrong})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !prepaid.IsValidation(err) {
		t.Errorf("IsValidation(%v) = false, want true", err)
	}
}

func TestDeleteLogEntryCascades(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	v := mustCreateVoucher(t, eng, types.MYR(10000), types.Money{})

	first, err := eng.Consume(ctx, prepaid.ConsumeRequest{
		VoucherID: v.ID,
		Amount:    types.MYR(3000),
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := eng.Consume(ctx, prepaid.ConsumeRequest{
		VoucherID: v.ID,
		Amount:    types.MYR(2000),
	}); err != nil {
		t.Fatalf("consume: %v", err)
	}

	// Deleting the first consumption shifts every later snapshot up.
	if err := eng.DeleteLogEntry(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entries, err := eng.History(ctx, v.ID, txlog.ListOpts{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if !entries[1].Balance.Equal(types.MYR(8000)) {
		t.Errorf("recomputed snapshot = %s, want 80.00", entries[1].Balance)
	}

	balance, err := eng.CurrentBalance(ctx, v.ID)
	if err != nil {
		t.Fatalf("current balance: %v", err)
	}
	if !balance.Equal(types.MYR(8000)) {
		t.Errorf("voucher balance = %s, want 80.00", balance)
	}
}

func TestDeleteLogEntryNotFound(t *testing.T) {
	eng, _ := newTestEngine(t)

	err := eng.DeleteLogEntry(context.Background(), prepaid.ID{})
	if !prepaid.IsNotFound(err) {
		t.Errorf("err = %v, want a not-found error", err)
	}
}
