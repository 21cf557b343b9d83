package pack

import (
	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/types"
)

// Status is the lifecycle state of a package.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Package is a bundle of priced, discounted, quantified service line items
// sold as one unit. When Customizable is false the line items are frozen
// after creation; only Active toggles are allowed.
type Package struct {
	types.Entity
	ID           id.PackageID      `json:"id"`
	MemberID     id.MemberID       `json:"member_id"`
	Name         string            `json:"name"`
	Lines        []LineItem        `json:"lines"`
	Customizable bool              `json:"customizable"`
	Status       Status            `json:"status"`
	Remarks      string            `json:"remarks,omitempty"`
	CreatedBy    id.MemberID       `json:"created_by"`
	AppID        string            `json:"app_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// EntityID returns the package's identifier as a string.
func (p *Package) EntityID() string { return p.ID.String() }

// LineItem is a single priced service within a package. DiscountFactor is a
// multiplier in [0,1]: 1.0 is full price, 0.0 is 100% off.
type LineItem struct {
	ID             id.LineItemID `json:"id"`
	PackageID      id.PackageID  `json:"package_id"`
	ServiceID      id.ServiceID  `json:"service_id"`
	UnitPrice      types.Money   `json:"unit_price"`
	DiscountFactor float64       `json:"discount_factor"`
	Quantity       int64         `json:"quantity"`
	Active         bool          `json:"active"`
}

// SameLines reports whether two line slices are identical apart from the
// Active flag. Used to enforce the non-customizable freeze.
func SameLines(a, b []LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		x.Active, y.Active = false, false
		if x != y {
			return false
		}
	}
	return true
}
