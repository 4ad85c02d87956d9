package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmerrifield20/SecurePOS/internal/sale"
)

// GenesisHash is the PrevHash of the first entry in every ledger.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Kind discriminates ledger entries.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindAudit       Kind = "audit"
	KindAnchor      Kind = "anchor"
)

// Entry is a single sealed record in the ledger.
type Entry struct {
	Index      int             `json:"index"`
	Kind       Kind            `json:"kind"`
	Subject    string          `json:"subject"` // "transaction/<id>" or "audit/<id>"
	AppendedAt time.Time       `json:"appended_at"`
	Payload    json.RawMessage `json:"payload"`
	DataHash   string          `json:"data_hash"` // SHA-256 of Payload
	PrevHash   string          `json:"prev_hash"`
	Hash       string          `json:"hash"`
}

// Transaction is a sale as stored in the ledger.
type Transaction struct {
	Record      sale.Record `json:"record"`
	Fingerprint string      `json:"fingerprint"`
	Supersedes  string      `json:"supersedes,omitempty"`

	// Anchor is filled in on read from the latest anchor entry, if any.
	Anchor *Anchor `json:"anchor,omitempty"`
}

// AuditRecord commits to the first Count transactions of the ledger.
type AuditRecord struct {
	ID         string    `json:"id"`
	Root       string    `json:"root"`
	Count      int       `json:"count"`
	TotalCents int64     `json:"total_cents"`
	Timestamp  time.Time `json:"timestamp"`

	// Anchor is filled in on read from the latest anchor entry, if any.
	Anchor *Anchor `json:"anchor,omitempty"`
}

// Anchor records that Digest was accepted by the external anchor under Ref.
type Anchor struct {
	Subject    string    `json:"subject"`
	Digest     string    `json:"digest"`
	Ref        string    `json:"ref"`
	AnchoredAt time.Time `json:"anchored_at"`
}

// TransactionSubject returns the subject key for a sale id.
func TransactionSubject(id string) string { return string(KindTransaction) + "/" + id }

// AuditSubject returns the subject key for an audit id.
func AuditSubject(id string) string { return string(KindAudit) + "/" + id }

// NewTransactionEntry prepares tx for Append.
func NewTransactionEntry(tx Transaction) (*Entry, error) {
	if tx.Record.ID == "" {
		return nil, fmt.Errorf("%w: transaction has no id", ErrInvalidEntry)
	}
	if tx.Fingerprint == "" {
		return nil, fmt.Errorf("%w: transaction %s has no fingerprint", ErrInvalidEntry, tx.Record.ID)
	}
	tx.Anchor = nil
	return newEntry(KindTransaction, TransactionSubject(tx.Record.ID), tx)
}

// NewAuditEntry prepares a for Append.
func NewAuditEntry(a AuditRecord) (*Entry, error) {
	if a.ID == "" {
		return nil, fmt.Errorf("%w: audit has no id", ErrInvalidEntry)
	}
	if a.Root == "" || a.Count <= 0 {
		return nil, fmt.Errorf("%w: audit %s covers no transactions", ErrInvalidEntry, a.ID)
	}
	a.Anchor = nil
	return newEntry(KindAudit, AuditSubject(a.ID), a)
}

// NewAnchorEntry prepares an anchor receipt for Append. The subject must
// already be in the ledger when the entry is appended.
func NewAnchorEntry(a Anchor) (*Entry, error) {
	if !strings.HasPrefix(a.Subject, string(KindTransaction)+"/") && !strings.HasPrefix(a.Subject, string(KindAudit)+"/") {
		return nil, fmt.Errorf("%w: anchor subject %q", ErrInvalidEntry, a.Subject)
	}
	if a.Ref == "" || a.Digest == "" {
		return nil, fmt.Errorf("%w: anchor for %s has no reference", ErrInvalidEntry, a.Subject)
	}
	return newEntry(KindAnchor, a.Subject, a)
}

func newEntry(kind Kind, subject string, payload any) (*Entry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &Entry{Kind: kind, Subject: subject, Payload: data}, nil
}

// seal returns a copy of e positioned at index and chained to prevHash.
// AppendedAt is truncated to microseconds so it survives a round trip
// through PostgreSQL timestamptz unchanged.
func seal(e *Entry, index int, prevHash string, now time.Time) *Entry {
	sealed := *e
	sealed.Payload = append(json.RawMessage(nil), e.Payload...)
	sealed.Index = index
	sealed.AppendedAt = now.UTC().Truncate(time.Microsecond)
	sealed.DataHash = sha256Sum(sealed.Payload)
	sealed.PrevHash = prevHash
	sealed.Hash = hashEntry(&sealed)
	return &sealed
}

func (e *Entry) clone() *Entry {
	cp := *e
	cp.Payload = append(json.RawMessage(nil), e.Payload...)
	return &cp
}

// hashEntry computes a deterministic SHA-256 hash over an entry's header.
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s",
		e.Index, e.Kind, e.Subject,
		e.AppendedAt.UTC().Format(time.RFC3339Nano),
		e.DataHash, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// sha256Sum returns the hex-encoded SHA-256 digest of data.
func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// chainChecker validates entries fed to it in index order.
type chainChecker struct {
	next     int
	prevHash string
}

func newChainChecker() *chainChecker {
	return &chainChecker{prevHash: GenesisHash}
}

func (c *chainChecker) check(e *Entry) error {
	if e.Index != c.next {
		return fmt.Errorf("%w: expected entry %d, found %d", ErrTampered, c.next, e.Index)
	}
	if e.PrevHash != c.prevHash {
		return fmt.Errorf("%w: hash chain broken at index %d", ErrTampered, e.Index)
	}
	if sha256Sum(e.Payload) != e.DataHash {
		return fmt.Errorf("%w: entry %d payload does not match its data hash", ErrTampered, e.Index)
	}
	if hashEntry(e) != e.Hash {
		return fmt.Errorf("%w: entry %d has invalid hash", ErrTampered, e.Index)
	}
	c.next++
	c.prevHash = e.Hash
	return nil
}

// checkAppend enforces subject rules: a transaction or audit id appears once,
// and an anchor must name a subject that is already in the ledger.
func checkAppend(e *Entry, exists bool) error {
	if e == nil || len(e.Payload) == 0 || e.Subject == "" {
		return fmt.Errorf("%w: empty entry", ErrInvalidEntry)
	}
	switch e.Kind {
	case KindTransaction, KindAudit:
		if exists {
			return fmt.Errorf("%s: %w", e.Subject, ErrDuplicate)
		}
	case KindAnchor:
		if !exists {
			return fmt.Errorf("anchor subject %s: %w", e.Subject, ErrNotFound)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	return nil
}
