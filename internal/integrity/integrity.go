// Package integrity recomputes fingerprints and Merkle roots and compares
// them with recorded values. A mismatch is a result, not an error.
package integrity

import (
	"time"

	"github.com/jmerrifield20/SecurePOS/internal/ledger"
	"github.com/jmerrifield20/SecurePOS/internal/merkle"
	"github.com/jmerrifield20/SecurePOS/internal/sale"
)

// VerifyRecord reports whether r still hashes to stored. A record that can
// no longer be fingerprinted at all does not match.
func VerifyRecord(r sale.Record, stored string) bool {
	fp, err := sale.Fingerprint(r)
	if err != nil {
		return false
	}
	return fp == stored
}

// VerifyProof reports whether proof links leaf to root.
func VerifyProof(leaf string, proof *merkle.Proof, root string) bool {
	if proof == nil {
		return false
	}
	return merkle.Verify(leaf, proof.Siblings, root)
}

// Leaves returns the stored fingerprints of txs in order.
func Leaves(txs []*ledger.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Fingerprint
	}
	return out
}

// Report is the audit report artifact.
type Report struct {
	TotalSales     int       `json:"totalSales"`
	TotalAmount    int64     `json:"totalAmountCents"`
	MerkleRoot     string    `json:"merkleRoot"`
	AuditTimestamp int64     `json:"auditTimestamp"` // Unix milliseconds
	SalesVerified  int       `json:"salesVerified"`
	Mismatched     []string  `json:"mismatched,omitempty"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// BuildReport projects a snapshot of transactions into a Report. The root
// covers the stored fingerprints, so it matches what an audit over the same
// snapshot would record.
func BuildReport(txs []*ledger.Transaction, now time.Time) Report {
	rep := Report{
		TotalSales:     len(txs),
		MerkleRoot:     merkle.Build(Leaves(txs)).Root,
		AuditTimestamp: now.UnixMilli(),
		GeneratedAt:    now.UTC(),
	}
	for _, tx := range txs {
		rep.TotalAmount += tx.Record.AmountCents
		if VerifyRecord(tx.Record, tx.Fingerprint) {
			rep.SalesVerified++
		} else {
			rep.Mismatched = append(rep.Mismatched, tx.Record.ID)
		}
	}
	return rep
}
