// Package harness runs scripted scenarios against the stream engine.
//
// A scenario drives a real Engine over an in-memory SQLite registry and
// ledger and an in-memory event log, with a manual clock and sequential
// event ids, so every run of the same file produces the same bytes.
//
// # Scenario Format
//
//	name: cancel_then_withdraw
//	description: "Recipient claims the vested part after a cancel"
//	setup:
//	  token: USDC
//	  admin: admin
//	  mint: { alice: "10000" }
//	steps:
//	  - at: 0
//	    as: alice
//	    op: create
//	    args: { recipient: bob, deposit: "1000", rate: "1", start: 0, end: 1000 }
//	    expect: { result: "0" }
//	  - at: 300
//	    as: alice
//	    op: cancel
//	    args: { stream: 0 }
//	    expect: { result: "700" }
//	  - at: 900
//	    as: mallory
//	    op: withdraw
//	    args: { stream: 0 }
//	    expect: { error: UNAUTHORIZED }
//	assertions:
//	  - type: stream
//	    stream: 0
//	    expect: { status: Cancelled, cancelled_at: "300" }
//	  - type: balance
//	    holder: alice
//	    equals: "9700"
//	  - type: event_order
//	    topics: [created, cancelled]
//
// A step without an expect clause must succeed. "as" attaches an
// authenticated principal; add "unauthenticated: true" to attach a bare
// claim instead.
//
// # Assertion Types
//
//   - stream: compares record fields (JSON names, text values)
//   - balance: compares a holder's token balance
//   - event_count: counts notifications, optionally by topic and stream
//   - event_order: compares the exact topic sequence
//
// Every run also replays the notification log and fails if the replayed
// streams differ from the registry.
//
// # Golden Files
//
// RunWithGolden compares the step trace, notification log and final
// registry, serialized as canonical JSON, against testdata/golden.
package harness
