// Package wral implements a durable, append-only, monotonically numbered
// write-ahead log used as the durability substrate for higher-level data
// structures (indexes, state machines, consensus logs).
//
// Writers submit opaque payloads with AddEntry; the log assigns each one a
// strictly increasing sequence number, persists it per the configured
// durability policy, and makes it visible to readers in order. Iter and
// Range produce lazy, in-order snapshots over the rotated journal files
// plus the live tail, safe to use concurrently with ongoing writes.
//
// # Core Interface
//
//	type Wal[S any] struct { ... }
//
//	w, err := wral.Open[MyState](dir, wral.Config{Name: "events"}, machine)
//	seqno, err := w.AddEntry(payload)
//	it := w.Iter()
//	for it.Next() {
//	    entry := it.Entry()
//	}
//
// # File Format
//
// Each journal file is HEADER || RECORD* || TRAILER?. Records are framed
// as [length:u32][crc32:u32][seqno:u64][payload_len:u32][payload], all
// little-endian. The trailer is written only when a file is sealed at
// rotation or close; the live file is open-ended until then. See codec.go
// for the exact byte layout and directory.go for the file naming scheme.
//
// # Durability and Batching
//
// Concurrent callers to AddEntry are serialized through a short
// reservation phase (sequence number assignment, state reduction,
// in-memory encoding) followed by a group-commit phase: one thread per
// batch performs the write(2)/fsync(2) pair and wakes every follower that
// rode along in the same batch. See writer.go for the leader/follower
// protocol.
//
// # Recovery
//
// Opening a directory validates every rotated (sealed) file and treats
// corruption there as fatal; the live file is scanned forward and any
// trailing, unparseable bytes are truncated as a torn write from a prior
// crash. See recovery.go.
package wral
