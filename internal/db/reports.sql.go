package db

import (
	"context"
	"database/sql"
	"time"
)

const upsertReport = `
INSERT INTO reports (code, title, owner, night_id, start_ms, end_ms, notes, break_override_start_ms, break_override_end_ms, fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(code) DO UPDATE SET
    title = excluded.title,
    owner = excluded.owner,
    night_id = excluded.night_id,
    start_ms = excluded.start_ms,
    end_ms = excluded.end_ms,
    notes = excluded.notes,
    break_override_start_ms = excluded.break_override_start_ms,
    break_override_end_ms = excluded.break_override_end_ms,
    fetched_at = excluded.fetched_at
`

type UpsertReportParams struct {
	Code                 string
	Title                string
	Owner                string
	NightID              string
	StartMs              int64
	EndMs                int64
	Notes                string
	BreakOverrideStartMs sql.NullInt64
	BreakOverrideEndMs   sql.NullInt64
	FetchedAt            time.Time
}

func (q *Queries) UpsertReport(ctx context.Context, arg UpsertReportParams) error {
	_, err := q.db.ExecContext(ctx, upsertReport,
		arg.Code,
		arg.Title,
		arg.Owner,
		arg.NightID,
		arg.StartMs,
		arg.EndMs,
		arg.Notes,
		arg.BreakOverrideStartMs,
		arg.BreakOverrideEndMs,
		arg.FetchedAt,
	)
	return err
}

const reportColumns = `code, title, owner, night_id, start_ms, end_ms, notes, break_override_start_ms, break_override_end_ms, fetched_at`

func scanReport(row interface{ Scan(...interface{}) error }) (Report, error) {
	var i Report
	err := row.Scan(
		&i.Code,
		&i.Title,
		&i.Owner,
		&i.NightID,
		&i.StartMs,
		&i.EndMs,
		&i.Notes,
		&i.BreakOverrideStartMs,
		&i.BreakOverrideEndMs,
		&i.FetchedAt,
	)
	return i, err
}

const getReport = `SELECT ` + reportColumns + ` FROM reports WHERE code = ?`

func (q *Queries) GetReport(ctx context.Context, code string) (Report, error) {
	return scanReport(q.db.QueryRowContext(ctx, getReport, code))
}

const listReports = `SELECT ` + reportColumns + ` FROM reports ORDER BY start_ms, code`

func (q *Queries) ListReports(ctx context.Context) ([]Report, error) {
	return q.queryReports(ctx, listReports)
}

const listReportsByNight = `SELECT ` + reportColumns + ` FROM reports WHERE night_id = ? ORDER BY start_ms, code`

func (q *Queries) ListReportsByNight(ctx context.Context, nightID string) ([]Report, error) {
	return q.queryReports(ctx, listReportsByNight, nightID)
}

func (q *Queries) queryReports(ctx context.Context, query string, args ...interface{}) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Report
	for rows.Next() {
		i, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listNights = `SELECT DISTINCT night_id FROM reports ORDER BY night_id`

func (q *Queries) ListNights(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listNights)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var nightID string
		if err := rows.Scan(&nightID); err != nil {
			return nil, err
		}
		items = append(items, nightID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateReportOverride = `
UPDATE reports SET break_override_start_ms = ?, break_override_end_ms = ? WHERE code = ?
`

type UpdateReportOverrideParams struct {
	BreakOverrideStartMs sql.NullInt64
	BreakOverrideEndMs   sql.NullInt64
	Code                 string
}

func (q *Queries) UpdateReportOverride(ctx context.Context, arg UpdateReportOverrideParams) error {
	_, err := q.db.ExecContext(ctx, updateReportOverride, arg.BreakOverrideStartMs, arg.BreakOverrideEndMs, arg.Code)
	return err
}
