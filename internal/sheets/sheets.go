package sheets

import (
	"context"
	"fmt"
	"os"

	"kassabot/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Service appends export rows to the destination spreadsheet. Each record
// category has its own sheet (section) inside one document.
type Service struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewService builds a Sheets client from a service-account credentials file.
func NewService(ctx context.Context, credentialsFile, spreadsheetID string) (*Service, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client := config.Client(ctx)

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return &Service{service: srv, spreadsheetID: spreadsheetID}, nil
}

// TestConnection проверяет доступность таблицы
func (s *Service) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// AppendRows appends a row batch after the existing content of a section,
// preserving input order. Empty batches are a no-op.
func (s *Service) AppendRows(ctx context.Context, section models.Section, rows []models.Row) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, row)
	}

	rangeData := string(section) + "!A:A"
	valueRange := &sheets.ValueRange{Values: values}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, rangeData, valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", section, err)
	}
	return nil
}

// SpreadsheetURL returns the document link shown to operators.
func (s *Service) SpreadsheetURL() string {
	return "https://docs.google.com/spreadsheets/d/" + s.spreadsheetID
}
