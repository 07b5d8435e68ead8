// Package domain holds the types shared by every fluxora package: streams,
// their status, the write-once configuration, party identities, lifecycle
// events and the error taxonomy.
//
// domain imports nothing internal except amount, so it stays the
// foundational layer with no circular dependencies.
//
// Key constraints:
//   - Monetary fields are amount.Amount (signed 128-bit), never int64.
//   - Timestamps are uint64 seconds supplied by the host clock.
//   - JSON tags use snake_case; amounts encode as decimal strings.
package domain
