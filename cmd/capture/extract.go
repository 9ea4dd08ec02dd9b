package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/finance-capture/internal/capture"
	"github.com/dvloznov/finance-capture/internal/receipts"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func sayCmd() *cobra.Command {
	var (
		fields fieldFlags
		yes    bool
	)

	cmd := &cobra.Command{
		Use:     "say <transcript>",
		Short:   "Extract a transaction from a spoken sentence",
		Example: `  capture say "spent forty five somoni on groceries" --yes`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			// The transcript comes from the command line, so listening
			// does not depend on a microphone.
			deps := a.deps
			deps.Speech = func() bool { return true }
			s := capture.NewSession(uuid.NewString(), deps)

			if err := s.SelectMode(capture.ModeVoice); err != nil {
				return err
			}
			if err := s.StartListening(); err != nil {
				return err
			}
			p, err := s.SubmitTranscript(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return finishExtraction(cmd, s, p, fields, yes)
		},
	}

	fields.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "commit the reviewed fields")
	return cmd
}

func scanCmd() *cobra.Command {
	var (
		fields fieldFlags
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Extract a transaction from a receipt photo",
		Long: `scan reads a receipt photo from a local file, or from a gs:// URI of a
receipt archived earlier, and extracts the transaction fields from it.`,
		Example: `  capture scan receipt.jpg --rate 10.9 --yes
  capture scan gs://my-receipts/receipts/2024/03/01/abc-def.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			image, err := loadImage(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}

			s := capture.NewSession(uuid.NewString(), a.deps)
			if err := s.SelectMode(capture.ModeScan); err != nil {
				return err
			}
			p, err := s.SubmitImage(cmd.Context(), image)
			if err != nil {
				return err
			}
			return finishExtraction(cmd, s, p, fields, yes)
		},
	}

	fields.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "commit the reviewed fields")
	return cmd
}

func loadImage(ctx context.Context, a *app, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "gs://") {
		image, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		return image, nil
	}

	f, ok := a.archive.(receipts.Fetcher)
	if !ok {
		return nil, fmt.Errorf("reading %s requires receipts.bucket to be configured", src)
	}
	image, err := f.Fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archived image: %w", err)
	}
	return image, nil
}

// finishExtraction waits for the extraction, applies the flag overrides and
// hands the fields to review.
func finishExtraction(cmd *cobra.Command, s *capture.Session, p *capture.Pending, fields fieldFlags, yes bool) error {
	ctx := cmd.Context()
	if err := p.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			s.Cancel()
			return ctx.Err()
		}
		// The fields stay as they were; the user can still fill them in.
		fmt.Fprintf(cmd.ErrOrStderr(), "Extraction failed: %v\n", err)
	}

	if s.Snapshot().State != capture.StateManual {
		if err := s.SelectMode(capture.ModeManual); err != nil {
			return err
		}
	}
	if err := s.Update(fields.patch(cmd)); err != nil {
		return err
	}
	return review(ctx, cmd.OutOrStdout(), s, yes)
}
