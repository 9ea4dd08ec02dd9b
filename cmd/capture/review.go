package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dvloznov/finance-capture/internal/capture"
	"github.com/dvloznov/finance-capture/internal/domain"
	"github.com/spf13/cobra"
)

// fieldFlags are the manual field overrides shared by add, say and scan.
type fieldFlags struct {
	amount       string
	description  string
	category     string
	date         string
	txType       string
	currency     string
	exchangeRate string
}

func (f *fieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount, e.g. 12.50")
	cmd.Flags().StringVar(&f.description, "description", "", "what the money was spent on or received for")
	cmd.Flags().StringVar(&f.category, "category", "", "category, e.g. Food or Transport")
	cmd.Flags().StringVar(&f.date, "date", "", "date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&f.txType, "type", "", "expense or income")
	cmd.Flags().StringVar(&f.currency, "currency", "", "currency the amount was paid in (default: home currency)")
	cmd.Flags().StringVar(&f.exchangeRate, "rate", "", "home currency units per one unit of --currency")
}

// patch returns the overrides the user actually passed.
func (f *fieldFlags) patch(cmd *cobra.Command) capture.Patch {
	var p capture.Patch
	set := func(name string, v string, dst **string) {
		if cmd.Flags().Changed(name) {
			*dst = &v
		}
	}
	set("amount", f.amount, &p.Amount)
	set("description", f.description, &p.Description)
	set("category", f.category, &p.Category)
	set("date", f.date, &p.Date)
	set("type", f.txType, &p.Type)
	set("currency", f.currency, &p.Currency)
	set("rate", f.exchangeRate, &p.ExchangeRate)
	return p
}

// review prints the prefilled fields and commits them only when confirmed.
func review(ctx context.Context, w io.Writer, s *capture.Session, confirmed bool) error {
	printFields(w, s.Snapshot())
	if !confirmed {
		fmt.Fprintln(w, "\nNot saved. Re-run with --yes (and any field overrides) to commit.")
		return nil
	}
	return commit(ctx, w, s)
}

func commit(ctx context.Context, w io.Writer, s *capture.Session) error {
	out, err := s.Submit(ctx)
	if err != nil {
		return fmt.Errorf("transaction not saved: %w", err)
	}

	fmt.Fprintf(w, "\nSaved %s\n", out.Transaction.ID)
	printTransactions(w, []domain.Transaction{out.Transaction})
	if out.ConversionSkipped {
		fmt.Fprintln(w, "Exchange rate was not a positive number; the original amount and currency were kept.")
	}
	return nil
}

func printFields(w io.Writer, snap capture.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	f := snap.Fields
	fmt.Fprintf(tw, "Amount:\t%s\n", f.Amount)
	fmt.Fprintf(tw, "Description:\t%s\n", f.Description)
	fmt.Fprintf(tw, "Category:\t%s\n", f.Category)
	fmt.Fprintf(tw, "Type:\t%s\n", f.Type)
	fmt.Fprintf(tw, "Date:\t%s\n", f.Date)
	fmt.Fprintf(tw, "Currency:\t%s\n", f.Currency)
	if f.ExchangeRate != "" {
		fmt.Fprintf(tw, "Exchange rate:\t%s\n", f.ExchangeRate)
	}
	if snap.ConvertedAmount != "" {
		fmt.Fprintf(tw, "In home currency:\t%s\n", snap.ConvertedAmount)
	}
	if snap.ReceiptURI != "" {
		fmt.Fprintf(tw, "Receipt:\t%s\n", snap.ReceiptURI)
	}
	_ = tw.Flush()
}

func printTransactions(w io.Writer, txs []domain.Transaction) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tCATEGORY\tAMOUNT\tDESCRIPTION")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n",
			tx.Date, tx.Type, tx.Category, tx.Amount.StringFixed(2), tx.Currency, tx.Description)
	}
	_ = tw.Flush()
}
