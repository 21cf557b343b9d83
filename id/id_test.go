package id_test

import (
	"strings"
	"testing"

	"github.com/clubworks/prepaid/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"VoucherID", id.NewVoucherID, "vch_"},
		{"TemplateID", id.NewTemplateID, "vtpl_"},
		{"LogEntryID", id.NewLogEntryID, "txl_"},
		{"PackageID", id.NewPackageID, "pkg_"},
		{"LineItemID", id.NewLineItemID, "pli_"},
		{"ServiceID", id.NewServiceID, "svc_"},
		{"MemberID", id.NewMemberID, "mem_"},
		{"TransferID", id.NewTransferID, "trf_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixVoucher)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixVoucher {
		t.Errorf("expected prefix %q, got %q", id.PrefixVoucher, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"VoucherID", id.NewVoucherID, id.ParseVoucherID},
		{"TemplateID", id.NewTemplateID, id.ParseTemplateID},
		{"LogEntryID", id.NewLogEntryID, id.ParseLogEntryID},
		{"PackageID", id.NewPackageID, id.ParsePackageID},
		{"LineItemID", id.NewLineItemID, id.ParseLineItemID},
		{"ServiceID", id.NewServiceID, id.ParseServiceID},
		{"MemberID", id.NewMemberID, id.ParseMemberID},
		{"TransferID", id.NewTransferID, id.ParseTransferID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseVoucherID rejects vtpl_", id.NewTemplateID().String(), id.ParseVoucherID},
		{"ParseTemplateID rejects txl_", id.NewLogEntryID().String(), id.ParseTemplateID},
		{"ParseLogEntryID rejects pkg_", id.NewPackageID().String(), id.ParseLogEntryID},
		{"ParsePackageID rejects pli_", id.NewLineItemID().String(), id.ParsePackageID},
		{"ParseLineItemID rejects svc_", id.NewServiceID().String(), id.ParseLineItemID},
		{"ParseServiceID rejects mem_", id.NewMemberID().String(), id.ParseServiceID},
		{"ParseMemberID rejects trf_", id.NewTransferID().String(), id.ParseMemberID},
		{"ParseTransferID rejects vch_", id.NewVoucherID().String(), id.ParseTransferID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseAny(t *testing.T) {
	ids := []id.ID{
		id.NewVoucherID(),
		id.NewTemplateID(),
		id.NewLogEntryID(),
		id.NewPackageID(),
		id.NewLineItemID(),
		id.NewServiceID(),
		id.NewMemberID(),
		id.NewTransferID(),
	}

	for _, i := range ids {
		t.Run(i.String(), func(t *testing.T) {
			parsed, err := id.ParseAny(i.String())
			if err != nil {
				t.Fatalf("ParseAny(%q) failed: %v", i.String(), err)
			}
			if parsed.String() != i.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), i.String())
			}
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	i := id.NewVoucherID()
	parsed, err := id.ParseWithPrefix(i.String(), id.PrefixVoucher)
	if err != nil {
		t.Fatalf("ParseWithPrefix failed: %v", err)
	}
	if parsed.String() != i.String() {
		t.Errorf("mismatch: %q != %q", parsed.String(), i.String())
	}

	_, err = id.ParseWithPrefix(i.String(), id.PrefixTemplate)
	if err == nil {
		t.Error("expected error for wrong prefix")
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := id.Parse("")
	if err == nil {
		t.Error("expected error for empty string")
	}
}

func TestTempKeys(t *testing.T) {
	key := id.NewTempKey()
	if !strings.HasPrefix(key, "tmp_") {
		t.Errorf("expected tmp_ prefix, got %q", key)
	}
	if !id.IsTempKey(key) {
		t.Errorf("IsTempKey(%q) = false, want true", key)
	}
	if id.IsTempKey(id.NewVoucherID().String()) {
		t.Error("IsTempKey should reject a voucher ID")
	}
	if id.IsTempKey("not-an-id") {
		t.Error("IsTempKey should reject malformed input")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewVoucherID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	// Nil round-trip.
	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewVoucherID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	// Nil round-trip.
	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	var scanned2 id.ID
	if err := scanned2.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of nil")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewVoucherID()
	b := id.NewVoucherID()
	if a.String() == b.String() {
		t.Errorf("two consecutive NewVoucherID() calls returned the same ID: %q", a.String())
	}
}
