package prepaid

import (
	"context"
	"fmt"
	"time"

	"github.com/clubworks/prepaid/id"
	"github.com/clubworks/prepaid/pack"
	"github.com/clubworks/prepaid/transfer"
	"github.com/clubworks/prepaid/txlog"
	"github.com/clubworks/prepaid/types"
	"github.com/clubworks/prepaid/voucher"
)

// BatchResult reports what a committed batch produced: the correlation-key
// to server-id map from the creation phase and the per-item outcomes.
type BatchResult struct {
	Created map[string]id.PackageID
	Items   []ItemResult
}

// ItemResult is the outcome of one executed transfer item.
type ItemResult struct {
	ItemID      id.TransferID
	SourceID    id.VoucherID
	Destination id.ID
	Amount      types.Money
}

// ExecuteBatch commits a staged batch in two phases. Phase 1 bulk-creates
// the staged packages and maps each correlation key to its server-assigned
// id. Phase 2 resolves every transfer destination; an unresolved key fails
// the whole batch before any balance mutation runs. Resolved transfers then
// execute sequentially in submitted order.
//
// A transfer into a package funds its purchase: the source is debited with a
// TRANSFER_OUT entry naming the package; packages carry no ledger of their
// own. A transfer into a voucher debits the source and credits the
// destination with a TRANSFER_IN entry.
func (e *Engine) ExecuteBatch(ctx context.Context, b transfer.Batch, handledBy id.MemberID) (*BatchResult, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if b.IsEmpty() {
		return nil, ErrEmptyBatch
	}

	// Phase 1: bulk creation, order-preserving.
	created := make(map[string]id.PackageID, len(b.Creations))
	if len(b.Creations) > 0 {
		payloads := make([]*pack.Package, len(b.Creations))
		for i, c := range b.Creations {
			payloads[i] = c.Package
		}
		ids, err := e.CreatePackages(ctx, payloads)
		if err != nil {
			return nil, wrapTimeout(err)
		}
		if len(ids) != len(b.Creations) {
			return nil, ErrCreationMismatch
		}
		for i, c := range b.Creations {
			created[c.TempKey] = ids[i]
		}
	}

	// Phase 2: resolve every destination before touching a balance.
	resolved := make([]id.ID, len(b.Transfers))
	for i, item := range b.Transfers {
		if !item.Dest.IsTemp() {
			resolved[i] = item.Dest.VoucherID
			continue
		}
		real, ok := created[item.Dest.TempKey]
		if !ok {
			return nil, &UnresolvedKeyError{Key: item.Dest.TempKey}
		}
		resolved[i] = real
	}

	result := &BatchResult{Created: created}
	for i, item := range b.Transfers {
		if err := e.executeItem(ctx, item, resolved[i], handledBy); err != nil {
			e.plugins.EmitBatchFailed(ctx, err, false)
			return result, wrapTimeout(fmt.Errorf("transfer item %d: %w", i, err))
		}
		result.Items = append(result.Items, ItemResult{
			ItemID:      item.ID,
			SourceID:    item.SourceID,
			Destination: resolved[i],
			Amount:      item.Amount,
		})
	}

	e.plugins.EmitTransferExecuted(ctx, result)
	return result, nil
}

// executeItem debits one source for one resolved destination. The balance
// check here is authoritative; the client's reservation check was advisory.
func (e *Engine) executeItem(ctx context.Context, item transfer.Item, dest id.ID, handledBy id.MemberID) error {
	src, err := e.store.GetVoucher(ctx, item.SourceID)
	if err != nil {
		return err
	}
	if !src.IsActive() {
		return ErrVoucherClosed
	}
	if item.Amount.Currency != src.Balance.Currency {
		return &ValidationError{Field: "amount", Message: "currency differs from source balance"}
	}
	if item.Amount.GreaterThan(src.Balance) {
		return fmt.Errorf("%w: source %s has %s, need %s",
			ErrInsufficientBalance, src.ID, src.Balance.FormatMajor(), item.Amount.FormatMajor())
	}

	expected := src.Version
	src.Balance = src.Balance.Subtract(item.Amount)
	if src.FreeOfCharge.IsPositive() && src.FreeOfCharge.GreaterThan(src.Balance) {
		src.FreeOfCharge = src.Balance
	}
	if err := e.store.UpdateVoucher(ctx, src, expected); err != nil {
		return err
	}

	now := time.Now()
	out := &txlog.Entry{
		Entity:          types.NewEntity(),
		ID:              id.NewLogEntryID(),
		VoucherID:       src.ID,
		Kind:            txlog.KindTransferOut,
		Delta:           item.Amount.Negate(),
		Balance:         src.Balance,
		CounterpartyRef: dest.String(),
		CreatedBy:       handledBy,
		HandledBy:       handledBy,
		At:              now,
	}
	if err := e.store.AppendLogEntry(ctx, out); err != nil {
		return err
	}
	e.plugins.EmitLogAppended(ctx, out)

	// Voucher destinations get the matching credit; package destinations
	// only record the funding debit on the source side.
	if dest.Prefix() != id.PrefixVoucher {
		return nil
	}

	dst, err := e.store.GetVoucher(ctx, dest)
	if err != nil {
		return err
	}
	if !dst.IsActive() {
		return ErrVoucherClosed
	}
	if dst.Balance.Currency != item.Amount.Currency {
		return &ValidationError{Field: "destination", Message: "currency differs from transfer amount"}
	}

	dstExpected := dst.Version
	dst.Balance = dst.Balance.Add(item.Amount)
	if err := e.store.UpdateVoucher(ctx, dst, dstExpected); err != nil {
		return err
	}

	in := &txlog.Entry{
		Entity:          types.NewEntity(),
		ID:              id.NewLogEntryID(),
		VoucherID:       dst.ID,
		Kind:            txlog.KindTransferIn,
		Delta:           item.Amount,
		Balance:         dst.Balance,
		CounterpartyRef: src.ID.String(),
		CreatedBy:       handledBy,
		HandledBy:       handledBy,
		At:              now,
	}
	if err := e.store.AppendLogEntry(ctx, in); err != nil {
		return err
	}
	e.plugins.EmitLogAppended(ctx, in)

	return nil
}

// ──────────────────────────────────────────────────
// Voucher transfer (close-and-reissue)
// ──────────────────────────────────────────────────

// TransferRequest describes a close-and-reissue voucher transfer: one or
// more source vouchers are emptied and closed, their non-FOC value moves
// into one freshly issued destination voucher, and any shortfall against the
// requested price is recorded as a top-up payment.
type TransferRequest struct {
	// Member resolution: an explicit id wins; otherwise Member is resolved
	// through the configured directory by name or phone.
	MemberID id.MemberID
	Member   string

	// Template resolution: looked up by name unless Bypass is set, in which
	// case Price and FOC are taken from the request and the destination has
	// no template linkage.
	TemplateName string
	Bypass       bool
	Price        types.Money
	FOC          types.Money

	VoucherName string
	SourceIDs   []id.VoucherID
	Remarks     string
	CreatedBy   id.MemberID
	HandledBy   id.MemberID
	AppID       string
}

// TransferResult summarizes a completed voucher transfer.
type TransferResult struct {
	DestinationID    id.VoucherID
	Sources          []SourceResult
	TransferredTotal types.Money
	TopUp            types.Money
	FOC              types.Money
}

// TransferVouchers executes the full voucher-transfer flow, strictly
// ordered: resolve the member, resolve the template (or take bypass
// pricing), issue the destination voucher exactly once, then drain each
// source in submitted order. A source with a used FOC grant has that portion
// removed first so only paid value transfers. After all sources are closed,
// topUp = max(0, price - transferred total) and a single composite PAYMENT
// entry is written on the destination.
//
// There is no cross-store transaction spanning the per-source loop. On a
// mid-loop failure the engine compensates: every mutated source is reopened
// with its balance restored and a REVERSAL entry logged, and the unfunded
// destination voucher is voided. The returned PartialBatchError lists what
// completed, what was reverted, whether the destination was voided, and via
// Unreconciled anything an operator still has to fix by hand.
func (e *Engine) TransferVouchers(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if len(req.SourceIDs) == 0 {
		return nil, ErrEmptyBatch
	}

	memberID, err := e.resolveMember(ctx, req)
	if err != nil {
		return nil, wrapTimeout(err)
	}

	price, foc, templateID, err := e.resolvePricing(ctx, req)
	if err != nil {
		return nil, wrapTimeout(err)
	}

	if err := e.plugins.ValidateTransfer(ctx, &req); err != nil {
		return nil, err
	}

	// Issue the destination once per batch, not once per source.
	dest := &voucher.Voucher{
		ID:           id.NewVoucherID(),
		MemberID:     memberID,
		TemplateID:   templateID,
		Name:         firstNonEmpty(req.VoucherName, req.TemplateName),
		Balance:      price.Add(foc),
		FreeOfCharge: foc,
		Status:       voucher.StatusActive,
		Version:      1,
		Remarks:      req.Remarks,
		CreatedBy:    req.CreatedBy,
		HandledBy:    req.HandledBy,
		AppID:        req.AppID,
	}
	dest.Entity = types.NewEntity()
	if err := e.store.CreateVoucher(ctx, dest); err != nil {
		return nil, wrapTimeout(err)
	}
	e.plugins.EmitVoucherCreated(ctx, dest)

	result := &TransferResult{
		DestinationID:    dest.ID,
		TransferredTotal: types.Zero(price.Currency),
		FOC:              foc,
	}

	// Sequential per-source loop keeps the log ordering deterministic.
	var prior []sourceState
	for _, srcID := range req.SourceIDs {
		state, srcResult, mutated, err := e.drainSource(ctx, srcID, dest, price.Currency, req)
		if err != nil {
			if mutated {
				prior = append(prior, state)
			}
			batchErr := e.compensate(ctx, srcID, err, prior, dest, req)
			e.plugins.EmitBatchFailed(ctx, batchErr, len(batchErr.Unreconciled()) == 0)
			return nil, wrapTimeout(batchErr)
		}
		prior = append(prior, state)
		result.Sources = append(result.Sources, srcResult)
		result.TransferredTotal = result.TransferredTotal.Add(srcResult.Transferred)
	}

	// Top-up covers the gap between what the sources held and what the new
	// voucher costs. Never negative: excess value stays with the member.
	result.TopUp = types.Zero(price.Currency)
	if price.GreaterThan(result.TransferredTotal) {
		result.TopUp = price.Subtract(result.TransferredTotal)
	}

	payment := &txlog.Entry{
		Entity:           types.NewEntity(),
		ID:               id.NewLogEntryID(),
		VoucherID:        dest.ID,
		Kind:             txlog.KindPayment,
		Delta:            dest.Balance,
		Balance:          dest.Balance,
		FocAmount:        foc,
		TopUpAmount:      result.TopUp,
		TransferredTotal: result.TransferredTotal,
		CounterpartyRef:  joinIDs(req.SourceIDs),
		CreatedBy:        req.CreatedBy,
		HandledBy:        req.HandledBy,
		Remark:           req.Remarks,
		At:               time.Now(),
	}
	if err := e.store.AppendLogEntry(ctx, payment); err != nil {
		return nil, wrapTimeout(err)
	}
	e.plugins.EmitLogAppended(ctx, payment)
	e.plugins.EmitTransferExecuted(ctx, result)

	e.logger.Info("voucher transfer executed",
		"destination", dest.ID,
		"sources", len(req.SourceIDs),
		"transferred", result.TransferredTotal,
		"top_up", result.TopUp,
	)

	return result, nil
}

// sourceState captures a source voucher before mutation so a mid-loop
// failure can restore it.
type sourceState struct {
	ID           id.VoucherID
	Balance      types.Money
	FreeOfCharge types.Money
}

// resolveMember turns the request's member reference into an id.
func (e *Engine) resolveMember(ctx context.Context, req TransferRequest) (id.MemberID, error) {
	if !req.MemberID.IsNil() {
		return req.MemberID, nil
	}
	if req.Member == "" {
		return id.ID{}, &ValidationError{Field: "member", Message: "is required"}
	}
	if e.directory == nil {
		return id.ID{}, ErrNoDirectory
	}
	matches, err := e.directory.Search(ctx, req.Member)
	if err != nil {
		return id.ID{}, fmt.Errorf("member lookup: %w", err)
	}
	if len(matches) == 0 {
		return id.ID{}, fmt.Errorf("%w: %q", ErrMemberNotFound, req.Member)
	}
	return matches[0].ID, nil
}

// resolvePricing returns the destination's price, FOC, and template linkage.
func (e *Engine) resolvePricing(ctx context.Context, req TransferRequest) (types.Money, types.Money, *id.TemplateID, error) {
	if req.Bypass {
		if req.Price.IsNegative() || req.Price.Currency == "" {
			return types.Money{}, types.Money{}, nil, &ValidationError{Field: "price", Message: "bypass mode requires a non-negative priced amount"}
		}
		foc := req.FOC
		if foc.Currency == "" {
			foc = types.Zero(req.Price.Currency)
		}
		if foc.Currency != req.Price.Currency {
			return types.Money{}, types.Money{}, nil, &ValidationError{Field: "foc", Message: "currency differs from price"}
		}
		return req.Price, foc, nil, nil
	}

	if req.TemplateName == "" {
		return types.Money{}, types.Money{}, nil, &ValidationError{Field: "template_name", Message: "is required unless bypass is set"}
	}
	tpl, err := e.store.GetTemplateByName(ctx, req.TemplateName, req.AppID)
	if err != nil {
		return types.Money{}, types.Money{}, nil, err
	}
	foc := tpl.FOC
	if foc.Currency == "" {
		foc = types.Zero(tpl.Price.Currency)
	}
	return tpl.Price, foc, &tpl.ID, nil
}

// drainSource empties and closes one source voucher. The version-guarded
// close runs before any log append: a close that loses its version check
// leaves the source byte-for-byte untouched, and a failed append after the
// close leaves a closed voucher whose missing deltas the compensation can
// derive by replaying its log. The returned bool reports whether the source
// was mutated at all. The balance used is the authoritative re-read, never
// the client's snapshot.
func (e *Engine) drainSource(ctx context.Context, srcID id.VoucherID, dest *voucher.Voucher, currency string, req TransferRequest) (sourceState, SourceResult, bool, error) {
	src, err := e.store.GetVoucher(ctx, srcID)
	if err != nil {
		return sourceState{}, SourceResult{}, false, err
	}
	if !src.IsActive() {
		return sourceState{}, SourceResult{}, false, fmt.Errorf("source %s: %w", srcID, ErrVoucherClosed)
	}
	if src.Balance.Currency != currency {
		return sourceState{}, SourceResult{}, false, &ValidationError{Field: "source", Message: "currency differs from destination price"}
	}

	state := sourceState{ID: src.ID, Balance: src.Balance, FreeOfCharge: src.FreeOfCharge}
	now := time.Now()

	focRemoved := types.Zero(currency)
	balanceAfterFoc := src.Balance
	removeFoc := src.FocUsed()
	if removeFoc {
		focRemoved = src.FreeOfCharge.Min(src.Balance)
		balanceAfterFoc = src.Balance.Subtract(focRemoved)
	}
	transferred := balanceAfterFoc

	expected := src.Version
	closedAt := now
	src.Balance = types.Zero(currency)
	src.FreeOfCharge = types.Zero(currency)
	src.Status = voucher.StatusClosed
	src.ClosedAt = &closedAt
	src.HandledBy = req.HandledBy
	if err := e.store.UpdateVoucher(ctx, src, expected); err != nil {
		return state, SourceResult{}, false, err
	}

	if removeFoc {
		removal := &txlog.Entry{
			Entity:    types.NewEntity(),
			ID:        id.NewLogEntryID(),
			VoucherID: src.ID,
			Kind:      txlog.KindFocRemoval,
			Delta:     focRemoved.Negate(),
			Balance:   balanceAfterFoc,
			CreatedBy: req.CreatedBy,
			HandledBy: req.HandledBy,
			At:        now,
		}
		if err := e.store.AppendLogEntry(ctx, removal); err != nil {
			return state, SourceResult{}, true, err
		}
		e.plugins.EmitLogAppended(ctx, removal)
		e.plugins.EmitFocRemoved(ctx, src.ID.String(), focRemoved)
	}

	out := &txlog.Entry{
		Entity:          types.NewEntity(),
		ID:              id.NewLogEntryID(),
		VoucherID:       src.ID,
		Kind:            txlog.KindTransferOut,
		Delta:           transferred.Negate(),
		Balance:         types.Zero(currency),
		CounterpartyRef: firstNonEmpty(dest.Name, dest.ID.String()),
		CreatedBy:       req.CreatedBy,
		HandledBy:       req.HandledBy,
		Remark:          req.Remarks,
		At:              now,
	}
	if err := e.store.AppendLogEntry(ctx, out); err != nil {
		return state, SourceResult{}, true, err
	}
	e.plugins.EmitLogAppended(ctx, out)
	e.plugins.EmitVoucherClosed(ctx, src)

	return state, SourceResult{
		VoucherID:   src.ID,
		Transferred: transferred,
		FocRemoved:  focRemoved,
	}, true, nil
}

// compensate undoes the batch's mutations after a mid-loop failure: every
// mutated source — the failing one included — is reopened with its captured
// balance, any log shortfall is closed with a REVERSAL entry, and the
// destination voucher is voided. Vouchers it cannot restore surface through
// Unreconciled.
func (e *Engine) compensate(ctx context.Context, failed id.VoucherID, cause error, mutated []sourceState, dest *voucher.Voucher, req TransferRequest) *PartialBatchError {
	batchErr := &PartialBatchError{Failed: failed, Cause: cause, Destination: dest.ID}

	for _, state := range mutated {
		batchErr.Completed = append(batchErr.Completed, state.ID)
		if e.restoreSource(ctx, state, cause, req) {
			batchErr.Reverted = append(batchErr.Reverted, state.ID)
		}
	}

	batchErr.DestinationVoided = e.voidDestination(ctx, dest.ID, req)
	return batchErr
}

// restoreSource reopens one mutated source with its captured balance. The
// shortfall between that balance and the sum of the source's logged deltas
// is whatever debit entries the drain managed to write, so the REVERSAL
// delta is derived by replay; a source that was closed before any entry
// landed needs no entry at all.
func (e *Engine) restoreSource(ctx context.Context, state sourceState, cause error, req TransferRequest) bool {
	src, err := e.store.GetVoucher(ctx, state.ID)
	if err != nil {
		e.logger.Error("compensation read failed", "voucher", state.ID, "error", err)
		return false
	}

	entries, err := e.store.ListLogEntries(ctx, state.ID, txlog.ListOpts{})
	if err != nil {
		e.logger.Error("compensation replay failed", "voucher", state.ID, "error", err)
		return false
	}
	logged := types.Zero(state.Balance.Currency)
	for _, entry := range entries {
		logged = logged.Add(entry.Delta)
	}

	expected := src.Version
	src.Balance = state.Balance
	src.FreeOfCharge = state.FreeOfCharge
	src.Status = voucher.StatusActive
	src.ClosedAt = nil
	if err := e.store.UpdateVoucher(ctx, src, expected); err != nil {
		e.logger.Error("compensation write failed", "voucher", state.ID, "error", err)
		return false
	}

	delta := state.Balance.Subtract(logged)
	if !delta.IsZero() {
		reversal := &txlog.Entry{
			Entity:    types.NewEntity(),
			ID:        id.NewLogEntryID(),
			VoucherID: src.ID,
			Kind:      txlog.KindReversal,
			Delta:     delta,
			Balance:   state.Balance,
			Remark:    fmt.Sprintf("transfer reverted: %v", cause),
			CreatedBy: req.CreatedBy,
			HandledBy: req.HandledBy,
			At:        time.Now(),
		}
		if err := e.store.AppendLogEntry(ctx, reversal); err != nil {
			e.logger.Error("compensation log failed", "voucher", state.ID, "error", err)
			return false
		}
		e.plugins.EmitLogAppended(ctx, reversal)
	}

	return true
}

// voidDestination closes the batch's freshly issued destination with a zero
// balance. The destination carries no log entries until the composite
// PAYMENT lands after the loop, so voiding it never strands a delta.
func (e *Engine) voidDestination(ctx context.Context, destID id.VoucherID, req TransferRequest) bool {
	dst, err := e.store.GetVoucher(ctx, destID)
	if err != nil {
		e.logger.Error("destination void read failed", "voucher", destID, "error", err)
		return false
	}

	expected := dst.Version
	now := time.Now()
	dst.Balance = types.Zero(dst.Balance.Currency)
	dst.FreeOfCharge = types.Zero(dst.Balance.Currency)
	dst.Status = voucher.StatusClosed
	dst.ClosedAt = &now
	dst.HandledBy = req.HandledBy
	if err := e.store.UpdateVoucher(ctx, dst, expected); err != nil {
		e.logger.Error("destination void write failed", "voucher", destID, "error", err)
		return false
	}
	e.plugins.EmitVoucherClosed(ctx, dst)

	return true
}

// joinIDs renders source ids for a composite entry's counterparty field.
func joinIDs(ids []id.VoucherID) string {
	s := ""
	for i, v := range ids {
		if i > 0 {
			s += ","
		}
		s += v.String()
	}
	return s
}
