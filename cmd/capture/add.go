package main

import (
	"github.com/dvloznov/finance-capture/internal/capture"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func addCmd() *cobra.Command {
	var fields fieldFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction typed in by hand",
		Example: `  capture add --amount 12.50 --description Lunch --category Food
  capture add --amount 10 --description Taxi --category Transport --currency USD --rate 10.9`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			s := capture.NewSession(uuid.NewString(), a.deps)
			if err := s.Update(fields.patch(cmd)); err != nil {
				return err
			}
			return commit(cmd.Context(), cmd.OutOrStdout(), s)
		},
	}

	fields.register(cmd)
	return cmd
}
