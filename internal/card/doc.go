// Package card provides the Card Ledger for punchcore.
//
// The Card Ledger holds the prepaid cards of an installation and runs
// the check-in/check-out state machine. Each card carries a balance and
// a single boolean punch state; a punch toggles that state, deducting
// the configured fee on check-in and charging nothing on check-out.
//
// # Punch Semantics
//
//   - Check-out is always permitted, even at zero balance, so a card
//     holder can always leave.
//   - Check-in requires a positive balance. The fee is deducted in
//     full, which may take a small balance below zero; the next
//     check-in is then refused.
//   - Results carry a low-balance advisory when the remaining balance
//     is at or below the configured threshold.
//
// # Usage
//
//	repo := card.NewSQLiteRepository(db)
//	ledger := card.NewLedger(repo, card.LedgerConfig{Fee: 10, LowBalanceThreshold: 50})
//	ledger.SetLogger(log)
//
//	if err := ledger.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	result, err := ledger.ApplyPunch(ctx, "card-123")
//	if errors.Is(err, card.ErrInsufficientBalance) {
//	    // refuse entry
//	}
//
// # Thread Safety
//
// The cache is protected by a read-write mutex. ApplyPunch itself is a
// read-modify-write; callers must serialise punches for the same card
// (the punch processor holds a per-card lock across ApplyPunch and the
// event log append).
package card
