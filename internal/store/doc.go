// Package store provides SQLite-backed durable storage for fluxora.
//
// A Store plays two collaborator roles for the engine:
//   - Registry: the write-once config, the stream id counter and one record
//     per stream.
//   - Ledger: per-token balances with atomic transfers (the value-transfer
//     collaborator for a self-hosted deployment).
//
// # Retention
//
// Every SaveStream extends the record's retention window: when fewer than
// Retention.Threshold seconds remain, live_until is pushed to now +
// Retention.ExtendTo. The store only records the window; purging expired
// records is external housekeeping (see ExpiredStreams).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: Transactions take the write lock up front
//
// All multi-row writes (id allocation, transfers, config) run in a single
// transaction. Atomic widens that to a caller-defined unit: store methods
// called with the context it hands out join its transaction.
package store
