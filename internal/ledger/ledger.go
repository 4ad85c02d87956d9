// Package ledger implements the append-only, hash-chained log of sales,
// audits and anchor receipts.
//
// Every entry records the SHA-256 of its payload and of its predecessor, the
// first entry chaining from GenesisHash, so rewriting history is detectable
// via Verify. Append is the only mutator. An anchor reference obtained after a
// sale or audit was appended is stored as its own anchor entry and projected
// onto its subject when read.
//
// Three implementations of the Store interface are provided:
//   - MemoryStore: in-process, for tests and development.
//   - LevelDBStore: embedded key-value persistence for a single till.
//   - PostgresStore: durable, for a shared back office database.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when an entry, transaction or audit does not exist.
	ErrNotFound = errors.New("ledger: not found")

	// ErrDuplicate is returned when appending a transaction or audit whose id
	// is already in the ledger.
	ErrDuplicate = errors.New("ledger: duplicate subject")

	// ErrInvalidEntry is returned for entries that cannot be appended as given.
	ErrInvalidEntry = errors.New("ledger: invalid entry")

	// ErrTampered is returned by Verify when the hash chain is inconsistent.
	ErrTampered = errors.New("ledger: chain integrity violated")
)

// Store is the append-only ledger. Reads reflect every prior Append.
type Store interface {
	// Append seals e into the chain and persists it. The returned entry
	// carries the assigned index, timestamps and hashes.
	Append(ctx context.Context, e *Entry) (*Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Len returns the number of entries.
	Len(ctx context.Context) (int, error)

	// Head returns the hash of the most recent entry, or GenesisHash.
	Head(ctx context.Context) (string, error)

	// Verify walks the chain and returns an error wrapping ErrTampered at
	// the first inconsistency.
	Verify(ctx context.Context) error

	// ListTransactions returns all transactions in append order.
	ListTransactions(ctx context.Context) ([]*Transaction, error)

	// ListAuditRecords returns all audit records in append order.
	ListAuditRecords(ctx context.Context) ([]*AuditRecord, error)

	// FindTransaction returns the transaction with the given sale id.
	FindTransaction(ctx context.Context, id string) (*Transaction, error)

	// FindAudit returns the audit record with the given id.
	FindAudit(ctx context.Context, id string) (*AuditRecord, error)
}
