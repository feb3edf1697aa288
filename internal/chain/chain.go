// Package chain implements the tamper-evident, append-only event ledger.
//
// Every entry records the keyed digest of its predecessor (PrevHash) and of
// its own canonical encoding (RecordHash). Editing, deleting, inserting or
// reordering a stored row is detected by AuditChain.
//
// Two Store implementations are provided:
//   - MemoryStore: in-process, for testing and development.
//   - PostgresStore: durable, for production use.
//
// All writes go through a Ledger, which holds a Serializer for the whole
// read-last → encode → digest → write sequence so the chain cannot fork.
package chain
