// Package prepaid provides a prepaid-balance and consumption-ledger engine
// for member service businesses.
//
// Prepaid is designed as a library, not a service. Import it directly into
// your Go application and keep the balance logic in-process. It provides:
//
//   - Voucher issuance from templates, with free-of-charge (FOC) grants
//     tracked as a sub-balance that never survives a transfer
//   - An append-only per-voucher transaction log with balance snapshots,
//     plus operator corrections that cascade-recompute later snapshots
//   - Package composition with discounted, quantified service line items
//     and a pure pricing aggregator
//   - A client-side staging batch with advisory reservation checks, and a
//     server-side executor whose authoritative balance re-read is the sole
//     source of truth
//   - Close-and-reissue voucher transfers with FOC stripping, top-up
//     computation, and compensating reversal entries on mid-batch failure
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/clubworks/prepaid"
//	    "github.com/clubworks/prepaid/store/postgres"
//	)
//
//	// db is your application's configured *grove.DB handle
//	store := postgres.New(db)
//
//	// Create engine
//	eng := prepaid.New(store)
//
//	// Start the engine (runs migrations, initializes plugins)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// Vouchers hold a member's prepaid balance:
//
//	v := &voucher.Voucher{
//	    MemberID:     memberID,
//	    Name:         "Gold Voucher",
//	    Balance:      prepaid.MYR(22000),
//	    FreeOfCharge: prepaid.MYR(2000),
//	}
//	err := eng.CreateVoucher(ctx, v)
//
// Consumption draws the balance down and logs each debit:
//
//	entry, err := eng.Consume(ctx, prepaid.ConsumeRequest{
//	    VoucherID: v.ID,
//	    Amount:    prepaid.MYR(7000),
//	    HandledBy: staffID,
//	})
//
// Transfers close out sources and reissue their non-FOC value:
//
//	result, err := eng.TransferVouchers(ctx, prepaid.TransferRequest{
//	    Member:       "Aisyah",
//	    TemplateName: "Gold Voucher",
//	    SourceIDs:    []prepaid.ID{old.ID},
//	    HandledBy:    staffID,
//	})
//	// result.TransferredTotal, result.TopUp, result.DestinationID
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (sen for MYR, cents for SGD, etc).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	vch_01h2xcejqtf2nbrexx3vqjhp41  // Voucher ID
//	pkg_01h2xcejqtf2nbrexx3vqjhp41  // Package ID
//	txl_01h455vb4pex5vsknk084sn02q  // Transaction log entry ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package prepaid
