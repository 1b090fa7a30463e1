// Package google mirrors ledger reservations into a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"barberbook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const lastColumn = "K"

var headers = []interface{}{
	"ID", "Barber ID", "Service", "Start", "End", "Customer", "Phone", "Status", "Notes", "Created At", "Updated At",
}

// ErrRowNotFound is returned when a reservation has no row in the sheet yet.
var ErrRowNotFound = errors.New("reservation row not found")

// SheetsService keeps one row per reservation, keyed by the ID in column A.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string

	cacheMu  sync.RWMutex
	rowCache map[int64]int
}

// NewSheetsService authenticates with a service account credentials file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newSheetsService(srv, spreadsheetID, sheetName), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID, sheetName string) *SheetsService {
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[int64]int),
	}
}

func (s *SheetsService) rangeOf(ref string) string {
	return s.sheetName + "!" + ref
}

// TestConnection reads the header row.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the column titles into row 1.
func (s *SheetsService) EnsureHeader(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeOf("A1:"+lastColumn+"1"), &sheets.ValueRange{
		Values: [][]interface{}{headers},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache rebuilds the row index from the ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	rows, err := s.readIDColumn(ctx)
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = rows
	return nil
}

// AppendReservation adds a row at the end of the sheet.
func (s *SheetsService) AppendReservation(ctx context.Context, r *models.Reservation) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.rangeOf("A:A"), &sheets.ValueRange{
		Values: [][]interface{}{reservationRow(r)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}
	if resp.Updates != nil {
		if row, ok := firstRow(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(r.ID, row)
		}
	}
	return nil
}

// UpsertReservation rewrites the reservation's row, appending when it has none.
func (s *SheetsService) UpsertReservation(ctx context.Context, r *models.Reservation) error {
	if r == nil {
		return errors.New("reservation is nil")
	}

	row, err := s.FindReservationRow(ctx, r.ID)
	if errors.Is(err, ErrRowNotFound) {
		return s.AppendReservation(ctx, r)
	}
	if err != nil {
		return err
	}

	ref := fmt.Sprintf("A%d:%s%d", row, lastColumn, row)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeOf(ref), &sheets.ValueRange{
		Values: [][]interface{}{reservationRow(r)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpdateReservationStatus rewrites the status and updated-at cells of a row.
func (s *SheetsService) UpdateReservationStatus(ctx context.Context, reservationID int64, status string) error {
	row, err := s.FindReservationRow(ctx, reservationID)
	if err != nil {
		return err
	}

	ref := fmt.Sprintf("H%d:H%d", row, row)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeOf(ref), &sheets.ValueRange{
		Values: [][]interface{}{{status}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}

	ref = fmt.Sprintf("K%d:K%d", row, row)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeOf(ref), &sheets.ValueRange{
		Values: [][]interface{}{{time.Now().UTC().Format(time.RFC3339)}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// FindReservationRow returns the 1-based row holding reservationID.
func (s *SheetsService) FindReservationRow(ctx context.Context, reservationID int64) (int, error) {
	if reservationID == 0 {
		return 0, errors.New("reservation id is required")
	}
	if row, ok := s.getCachedRow(reservationID); ok {
		return row, nil
	}

	rows, err := s.readIDColumn(ctx)
	if err != nil {
		return 0, err
	}
	row, ok := rows[reservationID]
	if !ok {
		return 0, ErrRowNotFound
	}
	s.setCachedRow(reservationID, row)
	return row, nil
}

func (s *SheetsService) readIDColumn(ctx context.Context) (map[int64]int, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A:A")).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	rows := make(map[int64]int, len(resp.Values))
	for i, cells := range resp.Values {
		if len(cells) == 0 {
			continue
		}
		var id int64
		switch v := cells[0].(type) {
		case float64:
			id = int64(v)
		case string:
			id, _ = strconv.ParseInt(v, 10, 64)
		}
		if id > 0 {
			rows[id] = i + 1
		}
	}
	return rows, nil
}

var rowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// firstRow extracts the first row number from a range such as "Reservations!A10:K10".
func firstRow(updatedRange string) (int, bool) {
	m := rowPattern.FindStringSubmatch(updatedRange)
	if m == nil {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	return row, err == nil
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func reservationRow(r *models.Reservation) []interface{} {
	return []interface{}{
		r.ID,
		r.BarberID,
		r.ServiceName,
		r.StartTime.UTC().Format(time.RFC3339),
		r.EndTime.UTC().Format(time.RFC3339),
		r.CustomerName,
		r.CustomerPhone,
		r.Status,
		r.Notes,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
