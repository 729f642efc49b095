package sink

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/mfukuda/dealsheet/models"
)

// valuesAPI is the slice of the Sheets values API the sink needs. The real
// service implements it; tests substitute a fake.
type valuesAPI interface {
	Clear(ctx context.Context, spreadsheetID, valueRange string) error
	Update(ctx context.Context, spreadsheetID, valueRange string, values [][]interface{}) error
}

type googleValues struct {
	svc *sheets.Service
}

func (g googleValues) Clear(ctx context.Context, spreadsheetID, valueRange string) error {
	_, err := g.svc.Spreadsheets.Values.
		Clear(spreadsheetID, valueRange, &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	return err
}

func (g googleValues) Update(ctx context.Context, spreadsheetID, valueRange string, values [][]interface{}) error {
	vr := &sheets.ValueRange{Values: values}
	_, err := g.svc.Spreadsheets.Values.
		Update(spreadsheetID, valueRange, vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	return err
}

// SheetsSink replaces the contents of one worksheet with the collected
// records: clear, then a single bulk update of header plus rows. There is no
// partial-write guarantee; a failed update can leave the sheet cleared, and
// that state is surfaced to the caller rather than silently repaired.
type SheetsSink struct {
	values        valuesAPI
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger
}

// NewSheetsSink authenticates with a service-account credentials file and
// targets the named worksheet of the given spreadsheet.
func NewSheetsSink(ctx context.Context, spreadsheetID, sheetName, credentialsFile string, logger *slog.Logger) (*SheetsSink, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, ErrAuth{Err: fmt.Errorf("create sheets service: %w", err)}
	}
	return newSheetsSink(googleValues{svc: svc}, spreadsheetID, sheetName, logger), nil
}

func newSheetsSink(values valuesAPI, spreadsheetID, sheetName string, logger *slog.Logger) *SheetsSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetsSink{
		values:        values,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}
}

// Write clears the worksheet and uploads header plus all records as one
// values update, preserving collection order.
func (s *SheetsSink) Write(ctx context.Context, records []models.ProductRecord) error {
	if err := s.values.Clear(ctx, s.spreadsheetID, s.sheetName); err != nil {
		return ErrWrite{Err: fmt.Errorf("clear %s: %w", s.sheetName, err)}
	}

	values := make([][]interface{}, 0, len(records)+1)
	values = append(values, toCells(Header))
	for _, rec := range records {
		values = append(values, toCells(Row(rec)))
	}

	target := fmt.Sprintf("%s!A1", s.sheetName)
	if err := s.values.Update(ctx, s.spreadsheetID, target, values); err != nil {
		// The sheet is now cleared but unwritten; the caller still holds
		// the records and can retry.
		return ErrWrite{Err: fmt.Errorf("update %s: %w", target, err)}
	}

	s.logger.Info("sheet replaced",
		slog.String("spreadsheet_id", s.spreadsheetID),
		slog.String("sheet", s.sheetName),
		slog.Int("rows", len(records)),
	)
	return nil
}

// Close is a no-op; the Sheets client holds no long-lived resources here.
func (s *SheetsSink) Close() error {
	return nil
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
