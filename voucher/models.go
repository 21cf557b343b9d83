package voucher

import (
	"time"

	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/types"
)

// Status is the lifecycle state of a voucher.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Voucher is a prepaid monetary balance owned by a member, optionally
// instantiated from a template. The free-of-charge sub-balance tracks the
// portion of the balance that was granted without payment and must never
// be carried across a transfer.
//
// Invariant: 0 <= FreeOfCharge <= Balance. A closed voucher's balance is
// frozen at zero.
type Voucher struct {
	types.Entity
	ID           id.VoucherID      `json:"id"`
	MemberID     id.MemberID       `json:"member_id"`
	TemplateID   *id.TemplateID    `json:"template_id,omitempty"`
	Name         string            `json:"name"`
	Balance      types.Money       `json:"balance"`
	FreeOfCharge types.Money       `json:"free_of_charge"`
	Status       Status            `json:"status"`
	Version      int64             `json:"version"`
	Remarks      string            `json:"remarks,omitempty"`
	CreatedBy    id.MemberID       `json:"created_by"`
	HandledBy    id.MemberID       `json:"handled_by"`
	ClosedAt     *time.Time        `json:"closed_at,omitempty"`
	AppID        string            `json:"app_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// EntityID returns the voucher's identifier as a string.
func (v *Voucher) EntityID() string { return v.ID.String() }

// IsActive reports whether the voucher can still be consumed or transferred.
func (v *Voucher) IsActive() bool { return v.Status == StatusActive }

// FocUsed reports whether part of the current balance is attributable to
// the free-of-charge grant. A transfer must strip this portion first.
func (v *Voucher) FocUsed() bool {
	return v.FreeOfCharge.IsPositive() && v.Balance.IsPositive()
}

// TransferableBalance is the portion of the balance eligible to move to a
// destination voucher: the full balance minus the outstanding FOC grant.
func (v *Voucher) TransferableBalance() types.Money {
	if !v.FocUsed() {
		return v.Balance
	}
	eligible := v.Balance.Subtract(v.FreeOfCharge)
	if eligible.IsNegative() {
		return types.Zero(v.Balance.Currency)
	}
	return eligible
}

// Template is immutable reference data for issuing vouchers: a named
// price/FOC pair looked up by name unless bypass mode is set.
type Template struct {
	types.Entity
	ID    id.TemplateID `json:"id"`
	Name  string        `json:"name"`
	Price types.Money   `json:"price"`
	FOC   types.Money   `json:"foc"`
	AppID string        `json:"app_id"`
}
