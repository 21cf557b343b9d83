package pack

import (
	"errors"
	"testing"

	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/types"
)

func TestLineTotal(t *testing.T) {
	tests := []struct {
		name     string
		price    types.Money
		factor   float64
		quantity int64
		expected types.Money
	}{
		{"Full price single", types.MYR(10000), 1.0, 1, types.MYR(10000)},
		{"Full price multiple", types.MYR(10000), 1.0, 3, types.MYR(30000)},
		{"Half off", types.MYR(10000), 0.5, 2, types.MYR(10000)},
		{"Free of charge", types.MYR(10000), 0.0, 5, types.MYR(0)},
		{"Ten percent off", types.SGD(4900), 0.9, 1, types.SGD(4410)},
		{"Zero price", types.MYR(0), 0.8, 4, types.MYR(0)},
		{"Rounds once across large quantity", types.MYR(999), 0.5, 100, types.MYR(49950)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LineTotal(tt.price, tt.factor, tt.quantity)
			if err != nil {
				t.Fatalf("LineTotal failed: %v", err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLineTotalRejections(t *testing.T) {
	tests := []struct {
		name     string
		price    types.Money
		factor   float64
		quantity int64
		field    string
	}{
		{"Negative price", types.MYR(-100), 1.0, 1, "unit_price"},
		{"Factor above one", types.MYR(100), 1.5, 1, "discount_factor"},
		{"Negative factor", types.MYR(100), -0.1, 1, "discount_factor"},
		{"Zero quantity", types.MYR(100), 1.0, 0, "quantity"},
		{"Negative quantity", types.MYR(100), 1.0, -2, "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LineTotal(tt.price, tt.factor, tt.quantity)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FieldError, got %T", err)
			}
			if fe.Field != tt.field {
				t.Errorf("field: got %q, want %q", fe.Field, tt.field)
			}
		})
	}
}

func TestLineTotalReferentialTransparency(t *testing.T) {
	for i := 0; i < 5; i++ {
		got, err := LineTotal(types.MYR(12345), 0.85, 3)
		if err != nil {
			t.Fatalf("LineTotal failed: %v", err)
		}
		// 12345 × 3 = 37035, × 0.85 = 31479.75 → 31480
		if want := types.MYR(31480); !got.Equal(want) {
			t.Fatalf("call %d: got %v, want %v", i, got, want)
		}
	}
}

func TestBundleTotal(t *testing.T) {
	lines := []LineItem{
		{ServiceID: id.NewServiceID(), UnitPrice: types.MYR(10000), DiscountFactor: 1.0, Quantity: 2},
		{ServiceID: id.NewServiceID(), UnitPrice: types.MYR(5000), DiscountFactor: 0.5, Quantity: 4},
		{ServiceID: id.NewServiceID(), UnitPrice: types.MYR(2000), DiscountFactor: 0.0, Quantity: 1},
	}

	total, err := BundleTotal(lines)
	if err != nil {
		t.Fatalf("BundleTotal failed: %v", err)
	}
	if want := types.MYR(30000); !total.Equal(want) {
		t.Errorf("got %v, want %v", total, want)
	}
}

func TestBundleTotalReorderInvariant(t *testing.T) {
	lines := []LineItem{
		{ServiceID: id.NewServiceID(), UnitPrice: types.MYR(3333), DiscountFactor: 0.7, Quantity: 3},
		{ServiceID: id.NewServiceID(), UnitPrice: types.MYR(9999), DiscountFactor: 0.33, Quantity: 1},
		{ServiceID: id.NewServiceID(), UnitPrice: types.MYR(150), DiscountFactor: 1.0, Quantity: 10},
	}

	forward, err := BundleTotal(lines)
	if err != nil {
		t.Fatalf("BundleTotal failed: %v", err)
	}

	reversed := []LineItem{lines[2], lines[0], lines[1]}
	backward, err := BundleTotal(reversed)
	if err != nil {
		t.Fatalf("BundleTotal (reordered) failed: %v", err)
	}

	if !forward.Equal(backward) {
		t.Errorf("reordering changed the total: %v != %v", forward, backward)
	}
}

func TestBundleTotalEmpty(t *testing.T) {
	_, err := BundleTotal(nil)
	if err == nil {
		t.Error("expected error for empty bundle")
	}
}

func TestBundleTotalPropagatesLineError(t *testing.T) {
	lines := []LineItem{
		{ServiceID: id.NewServiceID(), UnitPrice: types.MYR(100), DiscountFactor: 1.0, Quantity: 1},
		{ServiceID: id.NewServiceID(), UnitPrice: types.MYR(100), DiscountFactor: 2.0, Quantity: 1},
	}
	_, err := BundleTotal(lines)
	if err == nil {
		t.Fatal("expected error from invalid second line")
	}
}

func TestLineItemValidate(t *testing.T) {
	valid := LineItem{
		ServiceID:      id.NewServiceID(),
		UnitPrice:      types.MYR(100),
		DiscountFactor: 1.0,
		Quantity:       1,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid line rejected: %v", err)
	}

	missing := valid
	missing.ServiceID = id.Nil
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing service id")
	}
}

func TestLineItemDisplayTotal(t *testing.T) {
	// Display rendering treats an incomplete line as zero instead of failing.
	incomplete := LineItem{UnitPrice: types.MYR(5000), DiscountFactor: 1.0, Quantity: 0}
	if got := incomplete.Total(); !got.IsZero() {
		t.Errorf("incomplete line should display as zero, got %v", got)
	}

	complete := LineItem{UnitPrice: types.MYR(5000), DiscountFactor: 0.5, Quantity: 2}
	if got := complete.Total(); !got.Equal(types.MYR(5000)) {
		t.Errorf("got %v, want %v", got, types.MYR(5000))
	}
}

func TestSameLines(t *testing.T) {
	svc := id.NewServiceID()
	a := []LineItem{{ServiceID: svc, UnitPrice: types.MYR(100), DiscountFactor: 1.0, Quantity: 1, Active: true}}

	toggled := []LineItem{{ServiceID: svc, UnitPrice: types.MYR(100), DiscountFactor: 1.0, Quantity: 1, Active: false}}
	if !SameLines(a, toggled) {
		t.Error("Active toggle should not count as a line change")
	}

	repriced := []LineItem{{ServiceID: svc, UnitPrice: types.MYR(200), DiscountFactor: 1.0, Quantity: 1, Active: true}}
	if SameLines(a, repriced) {
		t.Error("price change should count as a line change")
	}

	if SameLines(a, nil) {
		t.Error("length mismatch should count as a line change")
	}
}
