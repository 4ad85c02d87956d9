// Package client is the Go SDK for the SecurePOS server (posd).
//
// It records sales, runs batch audits and fetches the evidence needed to
// check them independently: fingerprints, anchor references and Merkle
// inclusion proofs.
//
//	c, err := client.New("http://localhost:8080", client.WithOperator("op-1"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := c.RecordSale(ctx, client.SaleRequest{
//	    PaymentMethod: "cash",
//	    OperatorID:    "op-1",
//	    Items: []client.LineItem{
//	        {ID: "1", Name: "Coffee", PriceCents: 350, Quantity: 2},
//	    },
//	})
//
// # Errors
//
// Non-2xx responses are returned as *APIError, which unwraps to one of the
// package sentinels (ErrInvalid, ErrNotFound, ErrConflict, ErrNothingToAudit,
// ErrUnavailable) so callers can use errors.Is.
//
// A sale whose anchor submission failed is still recorded; the failure is
// reported in SaleResult.AnchorError and can be retried with AnchorSale.
package client
