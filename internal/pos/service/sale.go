package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmerrifield20/SecurePOS/internal/anchor"
	"github.com/jmerrifield20/SecurePOS/internal/integrity"
	"github.com/jmerrifield20/SecurePOS/internal/ledger"
	"github.com/jmerrifield20/SecurePOS/internal/sale"
	"go.uber.org/zap"
)

// RecordSaleRequest is the payload for RecordSale.
type RecordSaleRequest struct {
	ID            string          `json:"id,omitempty"`
	Timestamp     int64           `json:"timestamp,omitempty"` // Unix ms; defaults to now
	AmountCents   *int64          `json:"amount_cents,omitempty"`
	Items         []sale.LineItem `json:"items"`
	PaymentMethod string          `json:"payment_method"`
	OperatorID    string          `json:"operator_id"`
	Supersedes    string          `json:"supersedes,omitempty"`
}

// RecordSaleResult is returned by RecordSale.
type RecordSaleResult struct {
	Transaction *ledger.Transaction `json:"transaction"`
	LedgerIndex int                 `json:"ledger_index"`

	// AnchorError is set when the sale was recorded locally but the anchor
	// did not accept its fingerprint. The sale remains valid.
	AnchorError string `json:"anchor_error,omitempty"`
}

// RecordSale fingerprints the sale and appends it to the ledger, then
// submits the fingerprint to the anchor. The append always happens first, so
// an anchor failure never loses the locally verifiable record.
func (s *SaleService) RecordSale(ctx context.Context, req RecordSaleRequest) (*RecordSaleResult, error) {
	rec := sale.Record{
		ID:            req.ID,
		Timestamp:     req.Timestamp,
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		OperatorID:    req.OperatorID,
	}
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = s.now().UnixMilli()
	}
	if req.AmountCents != nil {
		rec.AmountCents = *req.AmountCents
	} else {
		rec.AmountCents = rec.ItemsTotal()
	}

	fp, err := sale.Fingerprint(rec)
	if err != nil {
		return nil, err
	}

	if req.Supersedes != "" {
		if _, err := s.store.FindTransaction(ctx, req.Supersedes); err != nil {
			return nil, fmt.Errorf("superseded sale: %w", err)
		}
	}

	tx := ledger.Transaction{Record: rec, Fingerprint: fp, Supersedes: req.Supersedes}
	entry, err := ledger.NewTransactionEntry(tx)
	if err != nil {
		return nil, err
	}
	sealed, err := s.store.Append(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("append sale %s: %w", rec.ID, err)
	}
	if s.metrics != nil {
		s.metrics.SaleRecorded()
	}
	s.logger.Info("sale recorded",
		zap.String("sale_id", rec.ID),
		zap.String("fingerprint", fp),
		zap.Int("ledger_index", sealed.Index),
	)

	res := &RecordSaleResult{Transaction: &tx, LedgerIndex: sealed.Index}
	if s.anchor != nil {
		receipt, err := s.submit(ctx, anchor.KindFingerprint, ledger.TransactionSubject(rec.ID), fp)
		if err != nil {
			res.AnchorError = err.Error()
		} else {
			res.Transaction.Anchor = receipt
		}
	}
	return res, nil
}

// AnchorSale submits the stored fingerprint of an unanchored sale. A sale
// that already carries an anchor reference is returned unchanged.
func (s *SaleService) AnchorSale(ctx context.Context, id string) (*ledger.Transaction, error) {
	tx, err := s.store.FindTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Anchor != nil {
		return tx, nil
	}
	receipt, err := s.submit(ctx, anchor.KindFingerprint, ledger.TransactionSubject(id), tx.Fingerprint)
	if err != nil {
		return nil, err
	}
	tx.Anchor = receipt
	return tx, nil
}

// GetSale returns a recorded sale.
func (s *SaleService) GetSale(ctx context.Context, id string) (*ledger.Transaction, error) {
	return s.store.FindTransaction(ctx, id)
}

// ListSales returns all recorded sales in append order.
func (s *SaleService) ListSales(ctx context.Context) ([]*ledger.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

// AnchorStatus describes how the anchor corroborated a stored digest.
type AnchorStatus string

const (
	AnchorNotAnchored AnchorStatus = "not_anchored"
	AnchorMatch       AnchorStatus = "match"
	AnchorMismatch    AnchorStatus = "mismatch"
	AnchorUnavailable AnchorStatus = "unavailable"
)

// SaleVerification is the outcome of VerifySale.
type SaleVerification struct {
	SaleID              string `json:"sale_id"`
	StoredFingerprint   string `json:"stored_fingerprint"`
	ComputedFingerprint string `json:"computed_fingerprint"`

	// Match is the local result: the stored record still hashes to the
	// stored fingerprint.
	Match bool `json:"match"`

	AnchorRef    string       `json:"anchor_ref,omitempty"`
	AnchorStatus AnchorStatus `json:"anchor_status"`
	AnchorError  string       `json:"anchor_error,omitempty"`

	// Verified is Match with no contradicting anchor value.
	Verified bool `json:"verified"`
}

// VerifySale recomputes the sale's fingerprint and compares it with the
// stored one, then corroborates against the anchor when a reference exists.
// The local result never depends on the anchor being reachable.
func (s *SaleService) VerifySale(ctx context.Context, id string) (*SaleVerification, error) {
	tx, err := s.store.FindTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	v := &SaleVerification{
		SaleID:            id,
		StoredFingerprint: tx.Fingerprint,
		Match:             integrity.VerifyRecord(tx.Record, tx.Fingerprint),
		AnchorStatus:      AnchorNotAnchored,
	}
	if fp, err := sale.Fingerprint(tx.Record); err == nil {
		v.ComputedFingerprint = fp
	}
	if s.metrics != nil {
		s.metrics.IntegrityCheck(v.Match)
	}

	if tx.Anchor != nil {
		v.AnchorRef = tx.Anchor.Ref
		v.AnchorStatus, v.AnchorError = s.corroborate(ctx, tx.Anchor, tx.Fingerprint)
	}
	v.Verified = v.Match && v.AnchorStatus != AnchorMismatch

	if !v.Verified {
		s.logger.Warn("sale failed integrity check",
			zap.String("sale_id", id),
			zap.Bool("match", v.Match),
			zap.String("anchor_status", string(v.AnchorStatus)),
		)
	}
	return v, nil
}

// corroborate reads the anchored value back and compares it with stored.
func (s *SaleService) corroborate(ctx context.Context, receipt *ledger.Anchor, stored string) (AnchorStatus, string) {
	if s.anchor == nil {
		return AnchorUnavailable, ErrAnchorDisabled.Error()
	}
	actx, cancel := context.WithTimeout(ctx, s.anchorTimeout)
	defer cancel()

	got, err := s.anchor.ReadBack(actx, receipt.Ref)
	if errors.Is(err, anchor.ErrUnknownRef) {
		return AnchorMismatch, err.Error()
	}
	if err != nil {
		s.logger.Warn("anchor read-back failed (non-fatal)",
			zap.String("ref", receipt.Ref),
			zap.Error(err),
		)
		return AnchorUnavailable, err.Error()
	}
	if got != stored || receipt.Digest != stored {
		return AnchorMismatch, ""
	}
	return AnchorMatch, ""
}
