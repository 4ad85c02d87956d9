package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmerrifield20/SecurePOS/internal/sale"
)

// projection folds entries into the read model: transactions and audits in
// append order, each carrying its most recent anchor receipt.
type projection struct {
	txs       []*Transaction
	txByID    map[string]*Transaction
	audits    []*AuditRecord
	auditByID map[string]*AuditRecord
}

func newProjection() *projection {
	return &projection{
		txByID:    make(map[string]*Transaction),
		auditByID: make(map[string]*AuditRecord),
	}
}

func (p *projection) apply(e *Entry) error {
	switch e.Kind {
	case KindTransaction:
		tx := &Transaction{}
		if err := json.Unmarshal(e.Payload, tx); err != nil {
			return fmt.Errorf("decode transaction entry %d: %w", e.Index, err)
		}
		p.txs = append(p.txs, tx)
		p.txByID[tx.Record.ID] = tx

	case KindAudit:
		a := &AuditRecord{}
		if err := json.Unmarshal(e.Payload, a); err != nil {
			return fmt.Errorf("decode audit entry %d: %w", e.Index, err)
		}
		p.audits = append(p.audits, a)
		p.auditByID[a.ID] = a

	case KindAnchor:
		a := &Anchor{}
		if err := json.Unmarshal(e.Payload, a); err != nil {
			return fmt.Errorf("decode anchor entry %d: %w", e.Index, err)
		}
		p.attach(a)

	default:
		return fmt.Errorf("entry %d has unknown kind %q", e.Index, e.Kind)
	}
	return nil
}

func (p *projection) attach(a *Anchor) {
	if id, ok := strings.CutPrefix(a.Subject, string(KindTransaction)+"/"); ok {
		if tx, found := p.txByID[id]; found {
			tx.Anchor = a
		}
		return
	}
	if id, ok := strings.CutPrefix(a.Subject, string(KindAudit)+"/"); ok {
		if au, found := p.auditByID[id]; found {
			au.Anchor = a
		}
	}
}

func (p *projection) hasSubject(subject string) bool {
	if id, ok := strings.CutPrefix(subject, string(KindTransaction)+"/"); ok {
		_, found := p.txByID[id]
		return found
	}
	if id, ok := strings.CutPrefix(subject, string(KindAudit)+"/"); ok {
		_, found := p.auditByID[id]
		return found
	}
	return false
}

func (p *projection) transactions() []*Transaction {
	out := make([]*Transaction, len(p.txs))
	for i, tx := range p.txs {
		out[i] = tx.clone()
	}
	return out
}

func (p *projection) auditRecords() []*AuditRecord {
	out := make([]*AuditRecord, len(p.audits))
	for i, a := range p.audits {
		out[i] = a.clone()
	}
	return out
}

func (p *projection) transaction(id string) (*Transaction, error) {
	tx, ok := p.txByID[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return tx.clone(), nil
}

func (p *projection) audit(id string) (*AuditRecord, error) {
	a, ok := p.auditByID[id]
	if !ok {
		return nil, fmt.Errorf("audit %s: %w", id, ErrNotFound)
	}
	return a.clone(), nil
}

// clone returns a copy that shares no memory with the read model.
func (tx *Transaction) clone() *Transaction {
	cp := *tx
	cp.Record.Items = append([]sale.LineItem(nil), tx.Record.Items...)
	cp.Anchor = tx.Anchor.clone()
	return &cp
}

func (a *AuditRecord) clone() *AuditRecord {
	cp := *a
	cp.Anchor = a.Anchor.clone()
	return &cp
}

func (a *Anchor) clone() *Anchor {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
