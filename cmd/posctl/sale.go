package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jmerrifield20/SecurePOS/pkg/client"
	"github.com/spf13/cobra"
)

var saleCmd = &cobra.Command{
	Use:   "sale",
	Short: "Record, inspect and verify sales",
}

func init() {
	saleCmd.AddCommand(saleRecordCmd)
	saleCmd.AddCommand(saleGetCmd)
	saleCmd.AddCommand(saleListCmd)
	saleCmd.AddCommand(saleVerifyCmd)
	saleCmd.AddCommand(saleAnchorCmd)
}

// ── sale record ──────────────────────────────────────────────────────────────

var saleRecordCmd = &cobra.Command{
	Use:   "record <sale.json | ->",
	Short: "Record a sale",
	Long: `record submits a sale to the server. The input is a JSON object with
items, payment_method and operator_id; id and timestamp are optional.

  echo '{"payment_method":"cash","operator_id":"op-1",
         "items":[{"id":"1","name":"Coffee","price_cents":350,"quantity":2}]}' |
    posctl sale record -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, closeFn, err := openInput(args[0])
		if err != nil {
			return err
		}
		defer closeFn()

		var req client.SaleRequest
		if err := json.NewDecoder(r).Decode(&req); err != nil {
			return fmt.Errorf("decode sale: %w", err)
		}
		if req.OperatorID == "" {
			req.OperatorID = operatorID
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.RecordSale(context.Background(), req)
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(res)
		}
		fmt.Printf("Sale:        %s\n", res.Sale.Record.ID)
		fmt.Printf("Amount:      %s\n", formatCents(res.Sale.Record.AmountCents))
		fmt.Printf("Fingerprint: %s\n", res.Sale.Fingerprint)
		if res.Sale.Anchor != nil {
			fmt.Printf("Anchor Ref:  %s\n", res.Sale.Anchor.Ref)
		}
		if res.AnchorError != "" {
			fmt.Fprintf(os.Stderr, "warning: sale recorded but not anchored: %s\n", res.AnchorError)
			fmt.Fprintf(os.Stderr, "retry with: posctl sale anchor %s\n", res.Sale.Record.ID)
		}
		return nil
	},
}

// ── sale get / list ──────────────────────────────────────────────────────────

var saleGetCmd = &cobra.Command{
	Use:   "get <sale-id>",
	Short: "Show a recorded sale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		s, err := c.GetSale(context.Background(), args[0])
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(s)
		}
		printSale(s)
		return nil
	},
}

var saleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sales",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		sales, err := c.ListSales(context.Background())
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(sales)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tAMOUNT\tPAYMENT\tOPERATOR\tANCHORED")
		for _, s := range sales {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
				s.Record.ID,
				time.UnixMilli(s.Record.Timestamp).UTC().Format(time.RFC3339),
				formatCents(s.Record.AmountCents),
				s.Record.PaymentMethod,
				s.Record.OperatorID,
				s.Anchor != nil,
			)
		}
		return w.Flush()
	},
}

// ── sale verify ──────────────────────────────────────────────────────────────

type verifyRow struct {
	id     string
	result *client.Verification
	err    error
}

var saleVerifyCmd = &cobra.Command{
	Use:   "verify <sale-id> [sale-id] ...",
	Short: "Verify one or more sales against their fingerprints and anchors",
	Long: `verify asks the server to recompute each sale's fingerprint and compare it
with the stored one and, where the sale was anchored, with the anchored value.
Multiple sales are verified concurrently. The exit status is non-zero if any
sale fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		resultsCh := make(chan verifyRow, len(args))
		for _, id := range args {
			go func() {
				v, err := c.VerifySale(ctx, id)
				resultsCh <- verifyRow{id: id, result: v, err: err}
			}()
		}

		byID := make(map[string]verifyRow, len(args))
		for range args {
			r := <-resultsCh
			byID[r.id] = r
		}

		failed := 0
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		if outputFormat != "json" {
			fmt.Fprintln(w, "SALE\tLOCAL\tANCHOR\tVERIFIED\tERROR")
		}
		var rows []any
		for _, id := range args {
			r := byID[id]
			switch {
			case r.err != nil:
				failed++
				rows = append(rows, map[string]string{"sale_id": id, "error": r.err.Error()})
				fmt.Fprintf(w, "%s\t\t\t\t%s\n", id, r.err.Error())
			default:
				if !r.result.Verified {
					failed++
				}
				rows = append(rows, r.result)
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
					id, matchWord(r.result.Match), r.result.AnchorStatus, r.result.Verified, r.result.AnchorError)
			}
		}

		if outputFormat == "json" {
			if err := printJSON(rows); err != nil {
				return err
			}
		} else if err := w.Flush(); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d sale(s) failed verification", failed, len(args))
		}
		return nil
	},
}

// ── sale anchor ──────────────────────────────────────────────────────────────

var saleAnchorCmd = &cobra.Command{
	Use:   "anchor <sale-id>",
	Short: "Resubmit an unanchored sale's fingerprint to the anchor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		s, err := c.AnchorSale(context.Background(), args[0])
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(s)
		}
		fmt.Printf("Sale %s anchored: %s\n", s.Record.ID, s.Anchor.Ref)
		return nil
	},
}

func printSale(s *client.Sale) {
	fmt.Printf("Sale:        %s\n", s.Record.ID)
	fmt.Printf("Time:        %s\n", time.UnixMilli(s.Record.Timestamp).UTC().Format(time.RFC3339))
	fmt.Printf("Amount:      %s\n", formatCents(s.Record.AmountCents))
	fmt.Printf("Payment:     %s\n", s.Record.PaymentMethod)
	fmt.Printf("Operator:    %s\n", s.Record.OperatorID)
	fmt.Printf("Fingerprint: %s\n", s.Fingerprint)
	if s.Supersedes != "" {
		fmt.Printf("Supersedes:  %s\n", s.Supersedes)
	}
	if s.Anchor != nil {
		fmt.Printf("Anchor Ref:  %s\n", s.Anchor.Ref)
	}
	for _, it := range s.Record.Items {
		fmt.Printf("  %-20s %3d x %s\n", it.Name, it.Quantity, formatCents(it.PriceCents))
	}
}

func matchWord(ok bool) string {
	if ok {
		return "match"
	}
	return "MISMATCH"
}

// formatCents renders minor units as a decimal amount, e.g. 925 → "9.25".
func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
