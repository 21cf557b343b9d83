// Package transfer holds the client-side staging model for balance
// transfers: a pending batch of transfer intents and to-be-created
// destination packages, validated against an advisory balance snapshot
// before being committed to the engine.
package transfer

import (
	"fmt"

	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/pack"
	"github.com/clubworks/prepaid/types"
)

// Destination names where a transfer's value should land: an existing
// voucher, or a package staged in the same batch identified by its
// correlation key.
type Destination struct {
	VoucherID id.VoucherID `json:"voucher_id,omitempty"`
	TempKey   string       `json:"temp_key,omitempty"`
}

// ToVoucher targets an existing voucher.
func ToVoucher(voucherID id.VoucherID) Destination {
	return Destination{VoucherID: voucherID}
}

// ToNew targets a package staged under the given correlation key.
func ToNew(tempKey string) Destination {
	return Destination{TempKey: tempKey}
}

// IsTemp reports whether the destination references a staged creation
// rather than an existing voucher.
func (d Destination) IsTemp() bool { return d.TempKey != "" }

// Validate rejects destinations that name both targets or neither.
func (d Destination) Validate() error {
	switch {
	case d.VoucherID.IsNil() && d.TempKey == "":
		return fmt.Errorf("transfer: destination names neither a voucher nor a temp key")
	case !d.VoucherID.IsNil() && d.TempKey != "":
		return fmt.Errorf("transfer: destination names both a voucher and a temp key")
	case d.TempKey != "" && !id.IsTempKey(d.TempKey):
		return fmt.Errorf("transfer: %q is not a valid temp key", d.TempKey)
	}
	return nil
}

// Item is one staged transfer intent.
type Item struct {
	ID       id.TransferID `json:"id"`
	SourceID id.VoucherID  `json:"source_id"`
	Dest     Destination   `json:"dest"`
	Amount   types.Money   `json:"amount"`
}

// Creation is a package payload staged for bulk creation, keyed by the
// correlation key that transfers in the same batch may reference.
type Creation struct {
	TempKey string        `json:"temp_key"`
	Package *pack.Package `json:"package"`
}

// Snapshot is the client's latest known balance per source voucher, keyed by
// voucher ID string. It is advisory: the engine re-reads authoritative
// balances immediately before mutating, so a stale snapshot can only cause
// early rejection or late failure, never a negative balance.
type Snapshot map[string]types.Money

// ReservationError reports that staging a transfer would over-reserve its
// source given what the batch already holds against it.
type ReservationError struct {
	SourceID  id.VoucherID
	Requested types.Money
	Remaining types.Money
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("transfer: source %s over-reserved: requested %s, remaining reservable: %s",
		e.SourceID, e.Requested.FormatMajor(), e.Remaining.FormatMajor())
}

// Batch is the pending, not-yet-committed set of operations. It is a value:
// every operation returns a new Batch and leaves the receiver untouched, so
// callers can keep the previous state when an operation is rejected.
type Batch struct {
	Transfers []Item
	Creations []Creation
}

// Reserved sums the amounts already staged against the given source.
func (b Batch) Reserved(sourceID id.VoucherID) types.Money {
	total := types.Money{}
	for _, item := range b.Transfers {
		if item.SourceID.String() == sourceID.String() {
			if total.Currency == "" {
				total = item.Amount
				continue
			}
			total = total.Add(item.Amount)
		}
	}
	return total
}

// AddTransfer stages a transfer after an advisory reservation check against
// the snapshot. The returned error is a *ReservationError when the staged
// total would exceed the source's known balance; the batch is returned
// unchanged in every error case.
func (b Batch) AddTransfer(sourceID id.VoucherID, dest Destination, amount types.Money, snap Snapshot) (Batch, error) {
	if sourceID.IsNil() {
		return b, fmt.Errorf("transfer: source voucher id is required")
	}
	if err := dest.Validate(); err != nil {
		return b, err
	}
	if !amount.IsPositive() {
		return b, fmt.Errorf("transfer: amount must be positive, got %s", amount)
	}
	if dest.IsTemp() && !b.hasCreation(dest.TempKey) {
		return b, fmt.Errorf("transfer: destination temp key %q is not staged in this batch", dest.TempKey)
	}

	balance, ok := snap[sourceID.String()]
	if !ok {
		return b, fmt.Errorf("transfer: no balance snapshot for source %s", sourceID)
	}
	if amount.Currency != balance.Currency {
		return b, fmt.Errorf("transfer: amount currency %q differs from source %s balance currency %q",
			amount.Currency, sourceID, balance.Currency)
	}

	reserved := b.Reserved(sourceID)
	if reserved.Currency == "" {
		reserved = types.Zero(balance.Currency)
	}
	if reserved.Add(amount).GreaterThan(balance) {
		return b, &ReservationError{
			SourceID:  sourceID,
			Requested: amount,
			Remaining: balance.Subtract(reserved),
		}
	}

	next := b.clone()
	next.Transfers = append(next.Transfers, Item{
		ID:       id.NewTransferID(),
		SourceID: sourceID,
		Dest:     dest,
		Amount:   amount,
	})
	return next, nil
}

// RemoveTransfer drops the staged item with the given id. Removing an
// unknown id is a no-op.
func (b Batch) RemoveTransfer(itemID id.TransferID) Batch {
	next := Batch{Creations: b.Creations}
	for _, item := range b.Transfers {
		if item.ID.String() != itemID.String() {
			next.Transfers = append(next.Transfers, item)
		}
	}
	return next
}

// AddCreation stages a package for bulk creation and returns the correlation
// key transfers may use to reference it. Only structural completeness is
// checked here; pricing validation happens when the batch is committed.
func (b Batch) AddCreation(p *pack.Package) (Batch, string, error) {
	if p == nil {
		return b, "", fmt.Errorf("transfer: creation payload is required")
	}
	if p.Name == "" {
		return b, "", fmt.Errorf("transfer: creation payload has no name")
	}
	if len(p.Lines) == 0 {
		return b, "", fmt.Errorf("transfer: creation payload has no line items")
	}

	key := id.NewTempKey()
	next := b.clone()
	next.Creations = append(next.Creations, Creation{TempKey: key, Package: p})
	return next, key, nil
}

// Clear discards the whole pending batch. Called after a successful commit
// or an explicit cancel.
func (b Batch) Clear() Batch { return Batch{} }

// IsEmpty reports whether the batch has nothing staged.
func (b Batch) IsEmpty() bool {
	return len(b.Transfers) == 0 && len(b.Creations) == 0
}

func (b Batch) hasCreation(tempKey string) bool {
	for _, c := range b.Creations {
		if c.TempKey == tempKey {
			return true
		}
	}
	return false
}

func (b Batch) clone() Batch {
	next := Batch{
		Transfers: make([]Item, len(b.Transfers)),
		Creations: make([]Creation, len(b.Creations)),
	}
	copy(next.Transfers, b.Transfers)
	copy(next.Creations, b.Creations)
	return next
}
