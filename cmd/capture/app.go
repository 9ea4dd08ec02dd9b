package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-capture/internal/capture"
	"github.com/dvloznov/finance-capture/internal/extraction"
	"github.com/dvloznov/finance-capture/internal/ledger"
	"github.com/dvloznov/finance-capture/internal/receipts"
)

// app holds the collaborators shared by the subcommands.
type app struct {
	store   ledger.Store
	archive receipts.Archive
	deps    capture.Deps
	closers []func() error
}

// newApp opens the ledger and, when withExtractor is set, the
// extraction provider and the receipt archive.
func newApp(ctx context.Context, withExtractor bool) (*app, error) {
	store, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	a := &app{
		store:   store,
		archive: receipts.NopArchive{},
		closers: []func() error{store.Close},
	}
	a.deps = capture.Deps{
		Ledger:   store,
		Settings: prefs,
		Speech:   func() bool { return cfg.Speech.Enabled },
		Logger:   log,
	}

	if !withExtractor {
		return a, nil
	}

	gen, err := extraction.NewGenerator(ctx, cfg.Extraction.ProviderConfig())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create extraction client: %w", err)
	}
	a.deps.Extractor = extraction.NewAdapter(gen, cfg.Extraction.Timeout, log)

	if cfg.Receipts.Bucket != "" {
		archive, err := receipts.NewGCSArchive(ctx, cfg.Receipts.Bucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create receipt archive: %w", err)
		}
		a.archive = archive
		a.closers = append(a.closers, archive.Close)
	}
	a.deps.Archive = a.archive

	return a, nil
}

// Close releases everything newApp opened.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
