package sink

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheets appends rows to a Google Sheets spreadsheet using a service
// account. The header row is ensured once at construction: inserted when
// the sheet is empty, overwritten when it differs.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewSheets(ctx context.Context, spreadsheetID, credentials, sheetName string, header []string) (*Sheets, error) {
	creds, err := decodeCredentials(credentials)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Sheet1"
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets sink: create service: %w", err)
	}

	s := &Sheets{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}
	if err := s.ensureHeader(ctx, header); err != nil {
		return nil, err
	}
	return s, nil
}

// decodeCredentials accepts the service-account key either as raw JSON or
// base64-encoded JSON.
func decodeCredentials(credentials string) ([]byte, error) {
	trimmed := strings.TrimSpace(credentials)
	if trimmed == "" {
		return nil, fmt.Errorf("sheets sink: credentials are empty")
	}
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("sheets sink: credentials are neither JSON nor base64: %w", err)
	}
	return decoded, nil
}

func (s *Sheets) Name() string { return "sheets" }

func (s *Sheets) ensureHeader(ctx context.Context, header []string) error {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, s.sheetName+"!1:1").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets sink: read header: %w", err)
	}

	if len(resp.Values) > 0 && headerMatches(resp.Values[0], header) {
		return nil
	}

	vr := &sheets.ValueRange{Values: [][]any{toAnyRow(header)}}
	_, err = s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, s.sheetName+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets sink: write header: %w", err)
	}
	return nil
}

func headerMatches(got []any, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i, cell := range got {
		text, ok := cell.(string)
		if !ok || text != want[i] {
			return false
		}
	}
	return true
}

func (s *Sheets) Append(ctx context.Context, row []string) error {
	vr := &sheets.ValueRange{Values: [][]any{toAnyRow(row)}}
	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetName, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets sink: append: %w", err)
	}
	return nil
}

func (s *Sheets) Close() error { return nil }

func toAnyRow(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
