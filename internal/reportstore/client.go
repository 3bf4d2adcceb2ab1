// Package reportstore publishes the derived tables to the team spreadsheet
// and reads the officer tabs from it.
package reportstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"pebble/internal/config"
	"pebble/internal/constants"
	"pebble/internal/timeutil"
)

var (
	// ErrNotDerived is returned when a write targets a tab the engine does
	// not own.
	ErrNotDerived    = errors.New("tab is not a derived tab")
	ErrNoSpreadsheet = errors.New("no spreadsheet configured")
)

// Client reads any tab but only writes tabs registered as derived.
type Client struct {
	svc           *sheets.Service
	spreadsheetID string
	loc           *time.Location
	now           func() time.Time

	maxTries       uint
	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu      sync.RWMutex
	derived map[string]bool

	logger zerolog.Logger
}

func NewClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, ErrNoSpreadsheet
	}
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return newClient(svc, cfg.SpreadsheetID, cfg.Location(), logger), nil
}

func newClient(svc *sheets.Service, spreadsheetID string, loc *time.Location, logger zerolog.Logger) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		loc:           loc,
		now:           time.Now,
		derived:       make(map[string]bool),
		logger:        logger.With().Str("component", "sheets").Logger(),

		maxTries:       constants.SheetsMaxRetries,
		initialBackoff: time.Second,
		maxBackoff:     10 * time.Second,
	}
}

func (c *Client) register(tab string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.derived[tab] = true
}

func (c *Client) isDerived(tab string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.derived[tab]
}

func a1(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}

func gridRange(tab string) string {
	return a1(tab, fmt.Sprintf("A%d:%s", constants.SheetHeaderRow, constants.SheetLastColumn))
}

// ReadGrid returns the tab from the header row down, as strings. firstRow
// is the sheet row number of the header.
func (c *Client) ReadGrid(ctx context.Context, tab string) ([][]string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.SheetsTimeout)
	defer cancel()

	resp, err := retry(ctx, c, "read "+tab, func() (*sheets.ValueRange, error) {
		return c.svc.Spreadsheets.Values.Get(c.spreadsheetID, gridRange(tab)).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, 0, err
	}

	grid := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cellString(v)
		}
		grid = append(grid, cells)
	}
	return grid, constants.SheetHeaderRow, nil
}

// writeTab replaces the tab from the header row down with rows, blanking
// any rows the previous contents used beyond the new length, and stamps the
// last processed cell. Everything goes out in one batch update.
func (c *Client) writeTab(ctx context.Context, tab string, rows [][]string, previousRows int) error {
	if !c.isDerived(tab) {
		return fmt.Errorf("write %q: %w", tab, ErrNotDerived)
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	values := make([][]interface{}, 0, max(len(rows), previousRows))
	for _, r := range rows {
		values = append(values, padRow(r, width))
	}
	for len(values) < previousRows {
		values = append(values, padRow(nil, width))
	}

	stamp := timeutil.FormatLocal(c.now().UnixMilli(), c.loc)
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*sheets.ValueRange{
			{Range: a1(tab, fmt.Sprintf("A%d", constants.SheetHeaderRow)), MajorDimension: "ROWS", Values: values},
			{Range: a1(tab, constants.SheetLastProcessedCell), MajorDimension: "ROWS", Values: [][]interface{}{{stamp}}},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, constants.SheetsTimeout)
	defer cancel()
	_, err := retry(ctx, c, "write "+tab, func() (*sheets.BatchUpdateValuesResponse, error) {
		return c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	})
	if err != nil {
		return err
	}

	c.logger.Debug().
		Str("tab", tab).
		Int("rows", len(rows)).
		Int("blanked", len(values)-len(rows)).
		Msg("tab rewritten")
	return nil
}

// padRow widens r to width with empty strings so stale cells are cleared.
func padRow(r []string, width int) []interface{} {
	out := make([]interface{}, width)
	for i := range out {
		if i < len(r) {
			out[i] = r[i]
		} else {
			out[i] = ""
		}
	}
	return out
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func retry[T any](ctx context.Context, c *Client, op string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxInterval = c.maxBackoff

	out, err := backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn().Err(err).Str("op", op).Dur("retry_in", next).Msg("sheets request failed, retrying")
		}),
	)
	if err != nil {
		return out, fmt.Errorf("sheets %s: %w", op, err)
	}
	return out, nil
}
