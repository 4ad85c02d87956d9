package client

import "time"

// LineItem is one product line of a sale. Prices are in cents.
type LineItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int64  `json:"quantity"`
	Category   string `json:"category,omitempty"`
}

// SaleRequest is the payload for RecordSale. ID and Timestamp are assigned
// by the server when empty; AmountCents defaults to the items total.
type SaleRequest struct {
	ID            string     `json:"id,omitempty"`
	Timestamp     int64      `json:"timestamp,omitempty"`
	AmountCents   *int64     `json:"amount_cents,omitempty"`
	Items         []LineItem `json:"items"`
	PaymentMethod string     `json:"payment_method"`
	OperatorID    string     `json:"operator_id"`
	Supersedes    string     `json:"supersedes,omitempty"`
}

// Record is a sale as stored by the server.
type Record struct {
	ID            string     `json:"id"`
	Timestamp     int64      `json:"timestamp"`
	AmountCents   int64      `json:"amount_cents"`
	Items         []LineItem `json:"items"`
	PaymentMethod string     `json:"payment_method"`
	OperatorID    string     `json:"operator_id"`
}

// Anchor is an external anchoring receipt.
type Anchor struct {
	Subject    string    `json:"subject"`
	Digest     string    `json:"digest"`
	Ref        string    `json:"ref"`
	AnchoredAt time.Time `json:"anchored_at"`
}

// Sale is a recorded sale with its fingerprint.
type Sale struct {
	Record      Record  `json:"record"`
	Fingerprint string  `json:"fingerprint"`
	Supersedes  string  `json:"supersedes,omitempty"`
	Anchor      *Anchor `json:"anchor,omitempty"`
}

// SaleResult is returned by RecordSale.
type SaleResult struct {
	Sale        Sale   `json:"transaction"`
	LedgerIndex int    `json:"ledger_index"`
	AnchorError string `json:"anchor_error,omitempty"`
}

// Verification is returned by VerifySale.
type Verification struct {
	SaleID              string `json:"sale_id"`
	StoredFingerprint   string `json:"stored_fingerprint"`
	ComputedFingerprint string `json:"computed_fingerprint"`
	Match               bool   `json:"match"`
	AnchorRef           string `json:"anchor_ref,omitempty"`
	AnchorStatus        string `json:"anchor_status"`
	AnchorError         string `json:"anchor_error,omitempty"`
	Verified            bool   `json:"verified"`
}

// Audit is a batch audit record.
type Audit struct {
	ID         string    `json:"id"`
	Root       string    `json:"root"`
	Count      int       `json:"count"`
	TotalCents int64     `json:"total_cents"`
	Timestamp  time.Time `json:"timestamp"`
	Anchor     *Anchor   `json:"anchor,omitempty"`
}

// AuditResult is returned by RunAudit.
type AuditResult struct {
	Audit       Audit  `json:"audit"`
	LedgerIndex int    `json:"ledger_index"`
	AnchorError string `json:"anchor_error,omitempty"`
}

// Proof is an inclusion proof of a sale in an audit.
type Proof struct {
	AuditID       string   `json:"audit_id"`
	SaleID        string   `json:"sale_id"`
	LeafIndex     int      `json:"leaf_index"`
	Leaf          string   `json:"leaf"`
	Siblings      []string `json:"siblings"`
	Root          string   `json:"root"`
	RebuiltRoot   string   `json:"rebuilt_root"`
	RootMatches   bool     `json:"root_matches"`
	Valid         bool     `json:"valid"`
	RecordMatches bool     `json:"record_matches"`
}

// Report is the audit report artifact.
type Report struct {
	TotalSales     int       `json:"totalSales"`
	TotalAmount    int64     `json:"totalAmountCents"`
	MerkleRoot     string    `json:"merkleRoot"`
	AuditTimestamp int64     `json:"auditTimestamp"`
	SalesVerified  int       `json:"salesVerified"`
	Mismatched     []string  `json:"mismatched,omitempty"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// LedgerStatus is returned by VerifyLedger.
type LedgerStatus struct {
	Valid   bool   `json:"valid"`
	Entries int    `json:"entries"`
	Head    string `json:"head"`
	Error   string `json:"error,omitempty"`
}
