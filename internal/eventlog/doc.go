// Package eventlog is the durable notification sink for stream lifecycle
// events, stored in Pebble.
//
// Every event the engine publishes is appended with a dense sequence number
// (starting at 1) and a time-sortable id. The log is the input to replay
// verification: folding it from the start reproduces every stream record.
//
// Keyspace (byte-wise, lexicographically sortable):
//
//	m/last          last assigned sequence, 8 bytes big-endian
//	e/{seq_be8}     JSON-encoded domain.Event
package eventlog
