package sink

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/akramov/fleetpoll/config"
)

// FromConfig builds the response sink: Sheets with a local fallback when
// Sheets is configured, the local sink alone otherwise. A Sheets
// initialization failure degrades to the local sink instead of refusing to
// start, so the conversation keeps working without the spreadsheet.
func FromConfig(ctx context.Context, cfg config.Config, header []string, log *zap.Logger) (Sink, error) {
	local, err := localFromConfig(cfg, header)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Sheets.SpreadsheetID) == "" || strings.TrimSpace(cfg.Sheets.CredentialsJSON) == "" {
		log.Warn("google sheets is not fully configured; responses will only be saved locally",
			zap.String("sink", local.Name()))
		return local, nil
	}

	primary, err := NewSheets(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.CredentialsJSON, cfg.Sheets.SheetName, header)
	if err != nil {
		log.Error("google sheets init failed; responses will only be saved locally", zap.Error(err))
		return local, nil
	}
	log.Info("google sheets connected",
		zap.String("spreadsheet_id", cfg.Sheets.SpreadsheetID),
		zap.String("sheet", cfg.Sheets.SheetName))

	return NewFallback(primary, local, log), nil
}

func localFromConfig(cfg config.Config, header []string) (Sink, error) {
	switch cfg.Sink.Fallback {
	case "sqlite":
		return NewSQLite(cfg.Sink.SQLitePath, header)
	case "", "csv":
		return NewCSV(cfg.Sink.CSVPath, header), nil
	default:
		return nil, fmt.Errorf("unknown sink.fallback %q", cfg.Sink.Fallback)
	}
}
