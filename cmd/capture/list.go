package main

import (
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded transactions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			txs, err := a.store.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(txs) > limit {
				txs = txs[:limit]
			}
			printTransactions(cmd.OutOrStdout(), txs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n transactions")
	return cmd
}
