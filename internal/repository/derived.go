package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"pebble/internal/constants"
	"pebble/internal/domain"
	"pebble/internal/reconcile"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// codec maps a derived row onto its table. columns excludes the bookkeeping
// columns natural_key, scope and sort_index.
type codec[R reconcile.Row] struct {
	table   string
	columns []string
	values  func(R) []interface{}
	scan    func(scanner) (R, error)
}

// DerivedStore is the sqlite side of a published table. It implements
// reconcile.Target and reconcile.ScopeLister.
type DerivedStore[R reconcile.Row] struct {
	db     *sql.DB
	codec  codec[R]
	logger zerolog.Logger
}

func newDerivedStore[R reconcile.Row](sqlDB *sql.DB, c codec[R], logger zerolog.Logger) *DerivedStore[R] {
	return &DerivedStore[R]{
		db:     sqlDB,
		codec:  c,
		logger: logger.With().Str("table", c.table).Logger(),
	}
}

func (s *DerivedStore[R]) Name() string { return "sqlite" }

func (s *DerivedStore[R]) Table() string { return s.codec.table }

func (s *DerivedStore[R]) Load(ctx context.Context, scope string) ([]R, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE scope = ? ORDER BY sort_index, natural_key`,
		strings.Join(s.codec.columns, ", "), s.codec.table)
	return s.query(ctx, query, scope)
}

// All returns every row, scopes in key order and rows in canonical order.
func (s *DerivedStore[R]) All(ctx context.Context) ([]R, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY scope, sort_index, natural_key`,
		strings.Join(s.codec.columns, ", "), s.codec.table)
	return s.query(ctx, query)
}

func (s *DerivedStore[R]) query(ctx context.Context, query string, args ...interface{}) ([]R, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.codec.table, err)
	}
	defer rows.Close()

	var out []R
	for rows.Next() {
		row, err := s.codec.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", s.codec.table, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *DerivedStore[R]) Scopes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT DISTINCT scope FROM %s ORDER BY scope`, s.codec.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list scopes of %s: %w", s.codec.table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		out = append(out, scope)
	}
	return out, rows.Err()
}

// Apply writes the upserts, the set-difference deletes and the sort index of
// one scope in a single transaction.
func (s *DerivedStore[R]) Apply(ctx context.Context, plan reconcile.Plan[R]) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	index := make(map[string]int, len(plan.Ordered))
	for i, row := range plan.Ordered {
		index[row.NaturalKey()] = i
	}

	// one multi-row statement per batch
	for i := 0; i < len(plan.Upserts); i += constants.DBBatchSize {
		batch := plan.Upserts[i:min(i+constants.DBBatchSize, len(plan.Upserts))]
		args := make([]interface{}, 0, len(batch)*(len(s.codec.columns)+3))
		for _, row := range batch {
			args = append(args, row.NaturalKey(), plan.Scope, index[row.NaturalKey()])
			args = append(args, s.codec.values(row)...)
		}
		if _, err := tx.ExecContext(ctx, s.upsertQuery(len(batch)), args...); err != nil {
			return fmt.Errorf("failed to upsert %d %s rows: %w", len(batch), s.codec.table, err)
		}
	}

	del := fmt.Sprintf(`DELETE FROM %s WHERE natural_key = ? AND scope = ?`, s.codec.table)
	for _, key := range plan.Deletes {
		if _, err := tx.ExecContext(ctx, del, key, plan.Scope); err != nil {
			return fmt.Errorf("failed to delete %s %s: %w", s.codec.table, key, err)
		}
	}

	reindex := fmt.Sprintf(`UPDATE %s SET sort_index = ? WHERE natural_key = ? AND sort_index != ?`, s.codec.table)
	for i, row := range plan.Ordered {
		if _, err := tx.ExecContext(ctx, reindex, i, row.NaturalKey(), i); err != nil {
			return fmt.Errorf("failed to reindex %s: %w", s.codec.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().
		Str("scope", plan.Scope).
		Int("upserted", len(plan.Upserts)).
		Int("deleted", len(plan.Deletes)).
		Msg("scope applied")
	return nil
}

// upsertQuery inserts n rows in one statement, replacing rows whose natural
// key already exists.
func (s *DerivedStore[R]) upsertQuery(n int) string {
	cols := append([]string{"natural_key", "scope", "sort_index"}, s.codec.columns...)
	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		updates = append(updates, c+" = excluded."+c)
	}
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s ON CONFLICT(natural_key) DO UPDATE SET %s`,
		s.codec.table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat(group+", ", n), ", "),
		strings.Join(updates, ", "))
}

func NewNightQAStore(sqlDB *sql.DB, logger zerolog.Logger) *DerivedStore[domain.NightQA] {
	return newDerivedStore(sqlDB, codec[domain.NightQA]{
		table: "night_qa",
		columns: []string{
			"night_id", "reports", "mains_seen", "night_start_ms", "night_end_ms", "top_tier_fights",
			"envelope_start_ms", "envelope_end_ms", "has_break", "break_start_ms", "break_end_ms",
			"break_minutes", "override_used", "pre_minutes", "post_minutes", "envelope_minutes",
			"largest_gap_minutes", "candidates", "needs_review", "warnings",
		},
		values: func(q domain.NightQA) []interface{} {
			return []interface{}{
				q.NightID, q.Reports, q.MainsSeen, q.NightStartMS, q.NightEndMS, q.TopTierFights,
				q.EnvelopeStartMS, q.EnvelopeEndMS, q.HasBreak, q.BreakStartMS, q.BreakEndMS,
				q.BreakMinutes, q.OverrideUsed, q.PreMinutes, q.PostMinutes, q.EnvelopeMinutes,
				q.LargestGapMinutes, q.Candidates, q.NeedsReview, q.Warnings,
			}
		},
		scan: func(sc scanner) (domain.NightQA, error) {
			var q domain.NightQA
			err := sc.Scan(
				&q.NightID, &q.Reports, &q.MainsSeen, &q.NightStartMS, &q.NightEndMS, &q.TopTierFights,
				&q.EnvelopeStartMS, &q.EnvelopeEndMS, &q.HasBreak, &q.BreakStartMS, &q.BreakEndMS,
				&q.BreakMinutes, &q.OverrideUsed, &q.PreMinutes, &q.PostMinutes, &q.EnvelopeMinutes,
				&q.LargestGapMinutes, &q.Candidates, &q.NeedsReview, &q.Warnings,
			)
			return q, err
		},
	}, logger)
}

func NewBenchNightStore(sqlDB *sql.DB, logger zerolog.Logger) *DerivedStore[domain.BenchNightTotal] {
	return newDerivedStore(sqlDB, codec[domain.BenchNightTotal]{
		table: "bench_night_totals",
		columns: []string{
			"night_id", "main", "played_pre", "played_post", "played_total",
			"bench_pre", "bench_post", "bench_total", "avail_pre", "avail_post", "status_source",
		},
		values: func(b domain.BenchNightTotal) []interface{} {
			return []interface{}{
				b.NightID, b.Main, b.PlayedPre, b.PlayedPost, b.PlayedTotal,
				b.BenchPre, b.BenchPost, b.BenchTotal, b.AvailPre, b.AvailPost, string(b.StatusSource),
			}
		},
		scan: func(sc scanner) (domain.BenchNightTotal, error) {
			var b domain.BenchNightTotal
			var source string
			err := sc.Scan(
				&b.NightID, &b.Main, &b.PlayedPre, &b.PlayedPost, &b.PlayedTotal,
				&b.BenchPre, &b.BenchPost, &b.BenchTotal, &b.AvailPre, &b.AvailPost, &source,
			)
			b.StatusSource = domain.StatusSource(source)
			return b, err
		},
	}, logger)
}

func NewBenchWeekStore(sqlDB *sql.DB, logger zerolog.Logger) *DerivedStore[domain.BenchWeekTotal] {
	return newDerivedStore(sqlDB, codec[domain.BenchWeekTotal]{
		table: "bench_week_totals",
		columns: []string{
			"week_id", "main", "played_week", "bench_week", "bench_pre", "bench_post", "nights_played", "rank",
		},
		values: func(w domain.BenchWeekTotal) []interface{} {
			return []interface{}{w.WeekID, w.Main, w.PlayedWeek, w.BenchWeek, w.BenchPre, w.BenchPost, w.NightsPlayed, w.Rank}
		},
		scan: func(sc scanner) (domain.BenchWeekTotal, error) {
			var w domain.BenchWeekTotal
			err := sc.Scan(&w.WeekID, &w.Main, &w.PlayedWeek, &w.BenchWeek, &w.BenchPre, &w.BenchPost, &w.NightsPlayed, &w.Rank)
			return w, err
		},
	}, logger)
}

func NewRankingStore(sqlDB *sql.DB, logger zerolog.Logger) *DerivedStore[domain.BenchRanking] {
	return newDerivedStore(sqlDB, codec[domain.BenchRanking]{
		table:   "bench_rankings",
		columns: []string{"rank", "main", "bench_minutes", "played_minutes", "weeks"},
		values: func(r domain.BenchRanking) []interface{} {
			return []interface{}{r.Rank, r.Main, r.BenchMinutes, r.PlayedMinutes, r.Weeks}
		},
		scan: func(sc scanner) (domain.BenchRanking, error) {
			var r domain.BenchRanking
			err := sc.Scan(&r.Rank, &r.Main, &r.BenchMinutes, &r.PlayedMinutes, &r.Weeks)
			return r, err
		},
	}, logger)
}
