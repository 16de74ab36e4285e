package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

var storeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "casenotes_sheets_requests_total",
	Help: "Google Sheets API calls by operation and outcome.",
}, []string{"op", "outcome"})

// SheetClient talks to one spreadsheet through the Sheets v4 values API.
type SheetClient struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewSheetClient builds a client from a service account key file. When
// spreadsheetID is empty the spreadsheet is located by name through Drive.
func NewSheetClient(ctx context.Context, jsonPath, spreadsheetID, spreadsheetName string) (*SheetClient, error) {
	opts := []option.ClientOption{
		option.WithCredentialsFile(jsonPath),
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveReadonlyScope),
	}
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets client: %w", err)
	}
	if spreadsheetID == "" {
		driveSrv, err := drive.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("unable to create Drive client: %w", err)
		}
		spreadsheetID, err = FindSpreadsheetID(ctx, driveSrv, spreadsheetName)
		if err != nil {
			return nil, err
		}
	}
	return &SheetClient{
		service:       srv,
		spreadsheetID: spreadsheetID,
	}, nil
}

// FindSpreadsheetID returns the ID of the first spreadsheet named name.
func FindSpreadsheetID(ctx context.Context, srv *drive.Service, name string) (string, error) {
	if name == "" {
		return "", errors.New("spreadsheet name or ID is required")
	}
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`), spreadsheetMimeType)
	list, err := srv.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("looking up spreadsheet %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("spreadsheet %q not found", name)
	}
	log.Debugf("Resolved spreadsheet %q to %s", name, list.Files[0].Id)
	return list.Files[0].Id, nil
}

func (s *SheetClient) ReadAll(ctx context.Context, sheet string) ([][]string, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheet).Context(ctx).Do()
	observe("read_all", err)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}
	return toStrings(resp.Values), nil
}

func (s *SheetClient) ReadHeader(ctx context.Context, sheet string) ([]string, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheet+"!1:1").Context(ctx).Do()
	observe("read_header", err)
	if err != nil {
		return nil, fmt.Errorf("reading header of sheet %s: %w", sheet, err)
	}
	rows := toStrings(resp.Values)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *SheetClient) AppendRow(ctx context.Context, sheet string, row []string) error {
	_, err := s.service.Spreadsheets.Values.Append(
		s.spreadsheetID,
		sheet+"!A:Z",
		&sheets.ValueRange{Values: [][]interface{}{toInterfaces(row)}},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	observe("append", err)
	if err != nil {
		return fmt.Errorf("appending to sheet %s: %w", sheet, err)
	}
	return nil
}

// UpdateRange writes row verbatim (RAW) so note text is never evaluated as a
// formula.
func (s *SheetClient) UpdateRange(ctx context.Context, sheet, a1Range string, row []string) error {
	_, err := s.service.Spreadsheets.Values.Update(
		s.spreadsheetID,
		sheet+"!"+a1Range,
		&sheets.ValueRange{Values: [][]interface{}{toInterfaces(row)}},
	).ValueInputOption("RAW").Context(ctx).Do()
	observe("update", err)
	if err != nil {
		return fmt.Errorf("updating %s!%s: %w", sheet, a1Range, err)
	}
	return nil
}

func (s *SheetClient) ClearRange(ctx context.Context, sheet, a1Range string) error {
	_, err := s.service.Spreadsheets.Values.BatchClear(
		s.spreadsheetID,
		&sheets.BatchClearValuesRequest{Ranges: []string{sheet + "!" + a1Range}},
	).Context(ctx).Do()
	observe("clear", err)
	if err != nil {
		return fmt.Errorf("clearing %s!%s: %w", sheet, a1Range, err)
	}
	return nil
}

// IsQuotaExceeded reports whether err is the store's rate-limit signal.
func IsQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if gErr.Code == http.StatusTooManyRequests {
			return true
		}
		if gErr.Code == http.StatusForbidden {
			for _, item := range gErr.Errors {
				if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
					return true
				}
			}
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "Quota exceeded")
}

func observe(op string, err error) {
	outcome := "ok"
	switch {
	case IsQuotaExceeded(err):
		outcome = "quota_exceeded"
		log.Warnf("Rate limited by Google Sheets API during %s", op)
	case err != nil:
		outcome = "error"
	}
	storeRequests.WithLabelValues(op, outcome).Inc()
}

func toStrings(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				cells[j] = fmt.Sprint(cell)
			}
		}
		rows[i] = cells
	}
	return rows
}

func toInterfaces(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, cell := range row {
		cells[i] = cell
	}
	return cells
}
