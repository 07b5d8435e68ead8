// Package engine implements the fluxora stream lifecycle engine.
//
// The engine owns every state transition (create, pause, resume, cancel,
// withdraw) and the accrual formula. It holds no state of its own: streams,
// the id counter and the configuration live behind the Registry, value moves
// through ValueTransfer, and callers are proven by an Authorizer.
//
// EXECUTION MODEL:
//
// Each mutating operation is a single load → validate → transfer → save
// sequence run inside Registry.Atomic, then a notification. Nothing inside
// the unit is visible unless all of it commits, and concurrent invocations
// on one store serialize on its transaction. Ordering is fixed:
//
//  1. Authenticate the caller.
//  2. Load the stream and check the transition is legal.
//  3. Compute accrual at the clock's current time.
//  4. Move value.
//  5. Save the mutated record. Any failure up to here rolls back 4.
//  6. Publish a notification. Publish failures are logged, never returned.
//
// TRANSITIONS:
//
// Transition is the complete status table as a pure function, so it can be
// tested exhaustively without storage or authorization. ResolveAuthorizer is
// the sender-or-admin branch, likewise pure.
//
// REPLAY:
//
// Replay folds a notification log back into stream records using the same
// Transition table and accrual math; VerifyReplay diffs that fold against the
// registry.
package engine
