package integrity_test

import (
	"testing"
	"time"

	"github.com/jmerrifield20/SecurePOS/internal/integrity"
	"github.com/jmerrifield20/SecurePOS/internal/ledger"
	"github.com/jmerrifield20/SecurePOS/internal/merkle"
	"github.com/jmerrifield20/SecurePOS/internal/sale"
)

func record(id string, cents int64) sale.Record {
	return sale.Record{
		ID:            id,
		Timestamp:     1700000000000,
		AmountCents:   cents,
		Items:         []sale.LineItem{{ID: "1", Name: "Coffee", PriceCents: cents, Quantity: 1}},
		PaymentMethod: "cash",
		OperatorID:    "op-1",
	}
}

func TestVerifyRecord_roundTrip(t *testing.T) {
	r := record("s1", 350)
	if !integrity.VerifyRecord(r, sale.MustFingerprint(r)) {
		t.Error("record must verify against its own fingerprint")
	}

	other := record("s1", 351)
	if integrity.VerifyRecord(r, sale.MustFingerprint(other)) {
		t.Error("record must not verify against a different record's fingerprint")
	}
}

func TestVerifyRecord_invalidRecordNeverMatches(t *testing.T) {
	r := record("s1", 350)
	fp := sale.MustFingerprint(r)
	r.OperatorID = ""
	if integrity.VerifyRecord(r, fp) {
		t.Error("invalid record must not match")
	}
	if integrity.VerifyRecord(r, "") {
		t.Error("invalid record must not match an empty fingerprint")
	}
}

func TestVerifyProof(t *testing.T) {
	var leaves []string
	for i := int64(1); i <= 7; i++ {
		leaves = append(leaves, sale.MustFingerprint(record("s", i*100)))
	}
	tree := merkle.Build(leaves)
	for i := range leaves {
		p, err := merkle.Prove(tree, i)
		if err != nil {
			t.Fatal(err)
		}
		if !integrity.VerifyProof(leaves[i], p, tree.Root) {
			t.Errorf("leaf %d did not verify", i)
		}
	}
	p, _ := merkle.Prove(tree, 0)
	if integrity.VerifyProof(leaves[1], p, tree.Root) {
		t.Error("proof for leaf 0 must not verify leaf 1")
	}
	if integrity.VerifyProof(leaves[0], nil, tree.Root) {
		t.Error("nil proof must not verify")
	}
}

func TestBuildReport(t *testing.T) {
	var txs []*ledger.Transaction
	for i, cents := range []int64{350, 225, 1000} {
		r := record(string(rune('a'+i)), cents)
		txs = append(txs, &ledger.Transaction{Record: r, Fingerprint: sale.MustFingerprint(r)})
	}
	// Tamper with the second sale after it was fingerprinted.
	txs[1].Record.AmountCents = 1

	now := time.UnixMilli(1700000001234)
	rep := integrity.BuildReport(txs, now)

	if rep.TotalSales != 3 {
		t.Errorf("TotalSales: got %d", rep.TotalSales)
	}
	if rep.TotalAmount != 350+1+1000 {
		t.Errorf("TotalAmount: got %d", rep.TotalAmount)
	}
	if rep.SalesVerified != 2 {
		t.Errorf("SalesVerified: got %d, want 2", rep.SalesVerified)
	}
	if len(rep.Mismatched) != 1 || rep.Mismatched[0] != "b" {
		t.Errorf("Mismatched: got %v", rep.Mismatched)
	}
	if want := merkle.Build(integrity.Leaves(txs)).Root; rep.MerkleRoot != want {
		t.Errorf("MerkleRoot: got %s, want %s", rep.MerkleRoot, want)
	}
	if rep.AuditTimestamp != 1700000001234 {
		t.Errorf("AuditTimestamp: got %d", rep.AuditTimestamp)
	}
}

func TestBuildReport_empty(t *testing.T) {
	rep := integrity.BuildReport(nil, time.Now())
	if rep.TotalSales != 0 || rep.MerkleRoot != merkle.EmptyRoot {
		t.Errorf("unexpected empty report %+v", rep)
	}
}
