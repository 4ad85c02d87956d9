package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jmerrifield20/SecurePOS/internal/merkle"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run batch audits and fetch inclusion proofs",
}

func init() {
	auditCmd.AddCommand(auditRunCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditProveCmd)
	auditCmd.AddCommand(auditAnchorCmd)
}

var auditRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Commit to every sale recorded so far",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.RunAudit(context.Background())
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(res)
		}
		fmt.Printf("Audit:  %s\n", res.Audit.ID)
		fmt.Printf("Sales:  %d\n", res.Audit.Count)
		fmt.Printf("Total:  %s\n", formatCents(res.Audit.TotalCents))
		fmt.Printf("Root:   %s\n", res.Audit.Root)
		if res.Audit.Anchor != nil {
			fmt.Printf("Anchor: %s\n", res.Audit.Anchor.Ref)
		}
		if res.AnchorError != "" {
			fmt.Fprintf(os.Stderr, "warning: audit recorded but root not anchored: %s\n", res.AnchorError)
		}
		return nil
	},
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audits",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		audits, err := c.ListAudits(context.Background())
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(audits)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tSALES\tTOTAL\tROOT\tANCHORED")
		for _, a := range audits {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%t\n",
				a.ID, a.Timestamp.Format(time.RFC3339), a.Count, formatCents(a.TotalCents), a.Root, a.Anchor != nil)
		}
		return w.Flush()
	},
}

var auditProveCmd = &cobra.Command{
	Use:   "prove <audit-id> <sale-id>",
	Short: "Fetch and check the inclusion proof of a sale in an audit",
	Long: `prove fetches the Merkle inclusion proof from the server and checks it
locally against the audit root before printing it. Save the JSON output to
re-check later with 'posctl verify-proof'.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := c.Prove(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		local := merkle.Verify(p.Leaf, p.Siblings, p.Root)

		if outputFormat == "json" {
			if err := printJSON(p); err != nil {
				return err
			}
		} else {
			fmt.Printf("Sale:         %s (leaf %d)\n", p.SaleID, p.LeafIndex)
			fmt.Printf("Leaf:         %s\n", p.Leaf)
			fmt.Printf("Root:         %s\n", p.Root)
			fmt.Printf("Siblings:     %d\n", len(p.Siblings))
			fmt.Printf("Proof:        %s\n", validWord(local))
			fmt.Printf("Record:       %s\n", matchWord(p.RecordMatches))
			fmt.Printf("Rebuilt Root: %s\n", matchWord(p.RootMatches))
		}
		if !local || !p.RecordMatches || !p.RootMatches {
			return errors.New("inclusion check failed")
		}
		return nil
	},
}

var auditAnchorCmd = &cobra.Command{
	Use:   "anchor <audit-id>",
	Short: "Resubmit an unanchored audit root to the anchor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		a, err := c.AnchorAudit(context.Background(), args[0])
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(a)
		}
		fmt.Printf("Audit %s anchored: %s\n", a.ID, a.Anchor.Ref)
		return nil
	},
}

// ── report / ledger ──────────────────────────────────────────────────────────

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the audit report over the current ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		rep, err := c.Report(context.Background())
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return printJSON(rep)
		}
		fmt.Printf("Sales:       %d\n", rep.TotalSales)
		fmt.Printf("Total:       %s\n", formatCents(rep.TotalAmount))
		fmt.Printf("Verified:    %d/%d\n", rep.SalesVerified, rep.TotalSales)
		fmt.Printf("Merkle Root: %s\n", rep.MerkleRoot)
		fmt.Printf("Generated:   %s\n", rep.GeneratedAt.Format(time.RFC3339))
		for _, id := range rep.Mismatched {
			fmt.Printf("  MISMATCH %s\n", id)
		}
		return nil
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger-verify",
	Short: "Walk the server's hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		st, err := c.VerifyLedger(context.Background())
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			if err := printJSON(st); err != nil {
				return err
			}
		} else {
			fmt.Printf("Entries: %d\n", st.Entries)
			fmt.Printf("Head:    %s\n", st.Head)
			fmt.Printf("Chain:   %s\n", validWord(st.Valid))
		}
		if !st.Valid {
			return fmt.Errorf("ledger chain broken: %s", st.Error)
		}
		return nil
	},
}

func validWord(ok bool) string {
	if ok {
		return "valid"
	}
	return "INVALID"
}
