package backend

import (
	"context"
	"fmt"
	"log/slog"

	"ledgerbook/internal/config"
	"ledgerbook/internal/sheets"
	gsheet "ledgerbook/internal/sheets/google"
	"ledgerbook/internal/sheets/memory"
)

// NewExporter returns the Google Sheets exporter when a spreadsheet is
// configured and an in-memory one otherwise.
func NewExporter(ctx context.Context, cfg *config.Config) (sheets.SnapshotExporter, error) {
	if !cfg.SheetsEnabled() {
		slog.WarnContext(ctx, "No spreadsheet configured, ledger snapshots stay in memory")
		return memory.New(), nil
	}
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	slog.InfoContext(ctx, "Initialized Google Sheets exporter", "sheet", cfg.GoogleSheetName)
	return cli, nil
}
