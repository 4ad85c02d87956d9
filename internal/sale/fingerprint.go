package sale

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalItem and canonicalRecord fix the preimage layout. Field order is
// the lexicographic key order; encoding/json emits struct fields in
// declaration order, which makes the output key-sorted.
type canonicalItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

type canonicalRecord struct {
	Amount        int64           `json:"amount"`
	Items         []canonicalItem `json:"items"`
	OperatorID    string          `json:"operatorId"`
	PaymentMethod string          `json:"paymentMethod"`
	Timestamp     int64           `json:"timestamp"`
}

// Canonical returns the canonical byte encoding of r.
func Canonical(r Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	c := canonicalRecord{
		Amount:        r.AmountCents,
		Items:         make([]canonicalItem, len(r.Items)),
		OperatorID:    r.OperatorID,
		PaymentMethod: r.PaymentMethod,
		Timestamp:     r.Timestamp,
	}
	for i, li := range r.Items {
		c.Items[i] = canonicalItem{ID: li.ID, Name: li.Name, Price: li.PriceCents, Quantity: li.Quantity}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode canonical record: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Fingerprint returns the lowercase hex SHA-256 of the canonical encoding of r.
func Fingerprint(r Record) (string, error) {
	data, err := Canonical(r)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// MustFingerprint is like Fingerprint but panics on error. Useful in tests.
func MustFingerprint(r Record) string {
	fp, err := Fingerprint(r)
	if err != nil {
		panic(err)
	}
	return fp
}
