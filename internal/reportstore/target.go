package reportstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"pebble/internal/reconcile"
)

// Codec maps a derived row onto a spreadsheet row. Scope reads the scope of
// a row from its raw cells, so rows that fail to decode can still be placed.
type Codec[R reconcile.Row] struct {
	Header []string
	Scope  func(cells []string) string
	Encode func(R) []string
	Decode func(cells []string) (R, error)
}

// SheetTarget publishes one derived table to its tab. The tab holds every
// scope, so applying a scope rewrites the whole tab with that scope's rows
// replaced. Rows of other scopes that fail to decode are written back as
// they were.
type SheetTarget[R reconcile.Row] struct {
	client *Client
	tab    string
	table  reconcile.Table[R]
	codec  Codec[R]
	logger zerolog.Logger

	mu   sync.Mutex
	snap *tabSnapshot[R]
}

// tabSnapshot is the decoded content of a tab. used is the number of grid
// rows the tab occupies, header included.
type tabSnapshot[R reconcile.Row] struct {
	rows       []R
	unreadable [][]string
	used       int
}

func NewSheetTarget[R reconcile.Row](client *Client, tab string, table reconcile.Table[R], codec Codec[R], logger zerolog.Logger) *SheetTarget[R] {
	client.register(tab)
	return &SheetTarget[R]{
		client: client,
		tab:    tab,
		table:  table,
		codec:  codec,
		logger: logger.With().Str("tab", tab).Logger(),
	}
}

func (t *SheetTarget[R]) Name() string { return "sheets" }

// Begin reads the tab once. Until End, reads are served from that snapshot
// and every Apply updates it with what was written.
func (t *SheetTarget[R]) Begin(ctx context.Context) error {
	snap, err := t.fetch(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.snap = snap
	t.mu.Unlock()
	return nil
}

func (t *SheetTarget[R]) End() {
	t.mu.Lock()
	t.snap = nil
	t.mu.Unlock()
}

// Normalize passes r through its cell form, so fresh rows compare equal to
// what a Load returns.
func (t *SheetTarget[R]) Normalize(r R) R {
	out, err := t.codec.Decode(t.codec.Encode(r))
	if err != nil {
		return r
	}
	return out
}

func (t *SheetTarget[R]) Load(ctx context.Context, scope string) ([]R, error) {
	snap, err := t.read(ctx)
	if err != nil {
		return nil, err
	}
	var out []R
	for _, r := range snap.rows {
		if r.ScopeKey() == scope {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *SheetTarget[R]) Scopes(ctx context.Context) ([]string, error) {
	snap, err := t.read(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range snap.rows {
		if s := r.ScopeKey(); !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *SheetTarget[R]) Apply(ctx context.Context, plan reconcile.Plan[R]) error {
	current, err := t.read(ctx)
	if err != nil {
		return err
	}

	rows := make([]R, 0, len(current.rows)+len(plan.Ordered))
	for _, r := range current.rows {
		if r.ScopeKey() != plan.Scope {
			rows = append(rows, r)
		}
	}
	rows = append(rows, plan.Ordered...)
	sort.SliceStable(rows, func(i, j int) bool {
		if t.table.Less(rows[i], rows[j]) {
			return true
		}
		if t.table.Less(rows[j], rows[i]) {
			return false
		}
		return rows[i].NaturalKey() < rows[j].NaturalKey()
	})

	var kept [][]string
	replaced := 0
	for _, cells := range current.unreadable {
		if t.codec.Scope(cells) == plan.Scope {
			replaced++
			continue
		}
		kept = append(kept, cells)
	}
	if replaced > 0 {
		t.logger.Warn().
			Str("scope", plan.Scope).
			Int("rows", replaced).
			Msg("replacing unreadable rows of reconciled scope")
	}

	grid := make([][]string, 0, len(rows)+len(kept)+1)
	grid = append(grid, t.codec.Header)
	for _, r := range rows {
		grid = append(grid, t.codec.Encode(r))
	}
	grid = append(grid, kept...)

	if err := t.client.writeTab(ctx, t.tab, grid, current.used); err != nil {
		// the tab may be half written; read it again next time
		t.mu.Lock()
		t.snap = nil
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	if t.snap != nil {
		t.snap = &tabSnapshot[R]{rows: rows, unreadable: kept, used: len(grid)}
	}
	t.mu.Unlock()
	return nil
}

func (t *SheetTarget[R]) read(ctx context.Context) (*tabSnapshot[R], error) {
	t.mu.Lock()
	snap := t.snap
	t.mu.Unlock()
	if snap != nil {
		return snap, nil
	}
	return t.fetch(ctx)
}

// fetch decodes every data row of the tab. Rows that fail to decode are kept
// as raw cells.
func (t *SheetTarget[R]) fetch(ctx context.Context) (*tabSnapshot[R], error) {
	grid, first, err := t.client.ReadGrid(ctx, t.tab)
	if err != nil {
		return nil, err
	}
	snap := &tabSnapshot[R]{used: len(grid)}
	if len(grid) == 0 {
		return snap, nil
	}
	for i, cells := range grid[1:] {
		if blank(cells) {
			continue
		}
		r, err := t.codec.Decode(cells)
		if err != nil {
			t.logger.Warn().Err(err).Int("row", first+1+i).Msg("unreadable row")
			snap.unreadable = append(snap.unreadable, cells)
			continue
		}
		snap.rows = append(snap.rows, r)
	}
	return snap, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

func errColumn(col string, err error) error {
	return fmt.Errorf("column %s: %w", col, err)
}
