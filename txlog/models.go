package txlog

import (
	"time"

	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/types"
)

// Kind is the business reason for a ledger mutation.
type Kind string

const (
	KindPurchase    Kind = "PURCHASE"
	KindFocGrant    Kind = "FOC_GRANT"
	KindFocRemoval  Kind = "FOC_REMOVAL"
	KindConsumption Kind = "CONSUMPTION"
	KindTransferOut Kind = "TRANSFER_OUT"
	KindTransferIn  Kind = "TRANSFER_IN"
	KindPayment     Kind = "PAYMENT"
	// KindReversal is a compensating entry appended when a multi-source
	// transfer fails mid-batch and an already-closed source is reopened.
	KindReversal Kind = "REVERSAL"
)

// Entry is one row in a voucher's append-only transaction log. Delta is the
// signed monetary change; Balance is the voucher balance after the delta was
// applied. Entries are never mutated in place except through the explicit
// correction operations, which rewrite the entry and cascade-recompute the
// snapshots of every later entry on the same voucher.
type Entry struct {
	types.Entity
	ID        id.LogEntryID `json:"id"`
	VoucherID id.VoucherID  `json:"voucher_id"`
	Kind      Kind          `json:"kind"`
	Delta     types.Money   `json:"delta"`
	Balance   types.Money   `json:"balance"`

	// Composite payment fields, set only on the destination's PAYMENT entry
	// after a transfer: the FOC granted on issue, the top-up the member paid,
	// and the total transferred in from the closed sources.
	FocAmount        types.Money `json:"foc_amount,omitempty"`
	TopUpAmount      types.Money `json:"top_up_amount,omitempty"`
	TransferredTotal types.Money `json:"transferred_total,omitempty"`

	// CounterpartyRef names the other side of a transfer: the destination
	// voucher on a TRANSFER_OUT entry, the sources on a PAYMENT entry.
	CounterpartyRef string `json:"counterparty_ref,omitempty"`

	CreatedBy id.MemberID `json:"created_by"`
	HandledBy id.MemberID `json:"handled_by"`
	Remark    string      `json:"remark,omitempty"`
	At        time.Time   `json:"at"`
}

// EntityID returns the entry's identifier as a string.
func (e *Entry) EntityID() string { return e.ID.String() }

// Correction carries the rewritable fields of an entry for the
// update-log-and-recompute operation. Nil fields are left unchanged.
type Correction struct {
	Delta     *types.Money
	Remark    *string
	HandledBy *id.MemberID
}
