package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmerrifield20/SecurePOS/internal/anchor"
	"github.com/jmerrifield20/SecurePOS/internal/integrity"
	"github.com/jmerrifield20/SecurePOS/internal/ledger"
	"github.com/jmerrifield20/SecurePOS/internal/merkle"
	"go.uber.org/zap"
)

// AuditResult is returned by RunAudit.
type AuditResult struct {
	Audit       *ledger.AuditRecord `json:"audit"`
	LedgerIndex int                 `json:"ledger_index"`
	AnchorError string              `json:"anchor_error,omitempty"`
}

// RunAudit commits to every sale recorded so far. The transaction list is
// read once, so sales appended while the audit runs are left for the next
// one. An empty ledger is refused with ErrEmptyBatch.
func (s *SaleService) RunAudit(ctx context.Context) (*AuditResult, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, ErrEmptyBatch
	}

	tree := merkle.Build(integrity.Leaves(txs))
	rec := ledger.AuditRecord{
		ID:        newID(),
		Root:      tree.Root,
		Count:     len(txs),
		Timestamp: s.now().UTC(),
	}
	for _, tx := range txs {
		rec.TotalCents += tx.Record.AmountCents
	}

	entry, err := ledger.NewAuditEntry(rec)
	if err != nil {
		return nil, err
	}
	sealed, err := s.store.Append(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("append audit %s: %w", rec.ID, err)
	}
	if s.metrics != nil {
		s.metrics.AuditCompleted(rec.Count)
	}
	s.logger.Info("audit recorded",
		zap.String("audit_id", rec.ID),
		zap.String("root", rec.Root),
		zap.Int("count", rec.Count),
	)

	res := &AuditResult{Audit: &rec, LedgerIndex: sealed.Index}
	if s.anchor != nil {
		receipt, err := s.submit(ctx, anchor.KindRoot, ledger.AuditSubject(rec.ID), rec.Root)
		if err != nil {
			res.AnchorError = err.Error()
		} else {
			res.Audit.Anchor = receipt
		}
	}
	return res, nil
}

// AnchorAudit submits the root of an unanchored audit.
func (s *SaleService) AnchorAudit(ctx context.Context, id string) (*ledger.AuditRecord, error) {
	a, err := s.store.FindAudit(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Anchor != nil {
		return a, nil
	}
	receipt, err := s.submit(ctx, anchor.KindRoot, ledger.AuditSubject(id), a.Root)
	if err != nil {
		return nil, err
	}
	a.Anchor = receipt
	return a, nil
}

// GetAudit returns a recorded audit.
func (s *SaleService) GetAudit(ctx context.Context, id string) (*ledger.AuditRecord, error) {
	return s.store.FindAudit(ctx, id)
}

// ListAudits returns all audits in append order.
func (s *SaleService) ListAudits(ctx context.Context) ([]*ledger.AuditRecord, error) {
	return s.store.ListAuditRecords(ctx)
}

// ProofResult is an inclusion proof for one sale in one audit.
type ProofResult struct {
	AuditID   string   `json:"audit_id"`
	SaleID    string   `json:"sale_id"`
	LeafIndex int      `json:"leaf_index"`
	Leaf      string   `json:"leaf"`
	Siblings  []string `json:"siblings"`
	Root      string   `json:"root"`

	// RebuiltRoot is the root of the audit's tree recomputed from the
	// ledger. RootMatches is false if covered transactions were altered.
	RebuiltRoot string `json:"rebuilt_root"`
	RootMatches bool   `json:"root_matches"`

	// Valid reports whether the proof links Leaf to the recorded Root.
	Valid bool `json:"valid"`

	// RecordMatches reports whether the sale still hashes to Leaf.
	RecordMatches bool `json:"record_matches"`
}

// ProveSale returns the inclusion proof of a sale in an audit. The audit's
// tree is rebuilt from the first Count transactions, which is the snapshot
// the audit committed to.
func (s *SaleService) ProveSale(ctx context.Context, saleID, auditID string) (*ProofResult, error) {
	a, err := s.store.FindAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	if a.Count > len(txs) {
		return nil, fmt.Errorf("%w: audit %s covers %d transactions, ledger holds %d",
			ledger.ErrTampered, auditID, a.Count, len(txs))
	}

	covered := txs[:a.Count]
	idx := -1
	for i, tx := range covered {
		if tx.Record.ID == saleID {
			idx = i
			break
		}
	}
	if idx < 0 {
		for _, tx := range txs[a.Count:] {
			if tx.Record.ID == saleID {
				return nil, fmt.Errorf("%w: sale %s, audit %s", ErrNotCovered, saleID, auditID)
			}
		}
		return nil, fmt.Errorf("sale %s: %w", saleID, ledger.ErrNotFound)
	}

	tree := merkle.Build(integrity.Leaves(covered))
	proof, err := merkle.Prove(tree, idx)
	if err != nil {
		return nil, err
	}

	res := &ProofResult{
		AuditID:       auditID,
		SaleID:        saleID,
		LeafIndex:     idx,
		Leaf:          proof.Leaf,
		Siblings:      proof.Siblings,
		Root:          a.Root,
		RebuiltRoot:   tree.Root,
		RootMatches:   tree.Root == a.Root,
		Valid:         integrity.VerifyProof(proof.Leaf, proof, a.Root),
		RecordMatches: integrity.VerifyRecord(covered[idx].Record, proof.Leaf),
	}
	if !res.Valid || !res.RecordMatches {
		s.logger.Warn("inclusion proof failed",
			zap.String("sale_id", saleID),
			zap.String("audit_id", auditID),
			zap.Bool("root_matches", res.RootMatches),
			zap.Bool("record_matches", res.RecordMatches),
		)
	}
	return res, nil
}

// Report builds the audit report over the current ledger.
func (s *SaleService) Report(ctx context.Context) (*integrity.Report, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	rep := integrity.BuildReport(txs, s.now())
	return &rep, nil
}

// LedgerStatus is the outcome of VerifyLedger.
type LedgerStatus struct {
	Valid   bool   `json:"valid"`
	Entries int    `json:"entries"`
	Head    string `json:"head"`
	Error   string `json:"error,omitempty"`
}

// VerifyLedger walks the hash chain. A broken chain is reported in the
// status; only store failures are returned as errors.
func (s *SaleService) VerifyLedger(ctx context.Context) (*LedgerStatus, error) {
	n, err := s.store.Len(ctx)
	if err != nil {
		return nil, err
	}
	head, err := s.store.Head(ctx)
	if err != nil {
		return nil, err
	}
	st := &LedgerStatus{Valid: true, Entries: n, Head: head}
	if err := s.store.Verify(ctx); err != nil {
		if !errors.Is(err, ledger.ErrTampered) {
			return nil, err
		}
		st.Valid = false
		st.Error = err.Error()
		s.logger.Error("ledger chain verification failed", zap.Error(err))
	}
	return st, nil
}
