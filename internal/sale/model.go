package sale

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is returned when a record is missing a field required by
// the canonical encoding.
var ErrInvalidRecord = errors.New("invalid record")

// LineItem is a single line on a receipt.
type LineItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int64  `json:"quantity"`
	Category   string `json:"category,omitempty"`
}

// Subtotal returns price × quantity in cents.
func (li LineItem) Subtotal() int64 {
	return li.PriceCents * li.Quantity
}

// Record is a completed sale. Once fingerprinted it must not be modified.
type Record struct {
	ID            string     `json:"id"`
	Timestamp     int64      `json:"timestamp"` // Unix milliseconds
	AmountCents   int64      `json:"amount_cents"`
	Items         []LineItem `json:"items"`
	PaymentMethod string     `json:"payment_method"`
	OperatorID    string     `json:"operator_id"`
}

// ItemsTotal sums the line item subtotals. Callers may use it to fill
// AmountCents; the fingerprint hashes whatever AmountCents holds.
func (r Record) ItemsTotal() int64 {
	var total int64
	for _, li := range r.Items {
		total += li.Subtotal()
	}
	return total
}

// Validate checks the fields the fingerprint depends on.
func (r Record) Validate() error {
	if r.Timestamp == 0 {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidRecord)
	}
	if r.PaymentMethod == "" {
		return fmt.Errorf("%w: payment method is required", ErrInvalidRecord)
	}
	if r.OperatorID == "" {
		return fmt.Errorf("%w: operator id is required", ErrInvalidRecord)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrInvalidRecord)
	}
	for i, li := range r.Items {
		if li.ID == "" {
			return fmt.Errorf("%w: item %d has no id", ErrInvalidRecord, i)
		}
		if li.Name == "" {
			return fmt.Errorf("%w: item %d (%s) has no name", ErrInvalidRecord, i, li.ID)
		}
	}
	return nil
}
