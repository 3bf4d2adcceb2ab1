package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pebble/internal/db"
	"pebble/internal/domain"
)

var ErrReportNotFound = errors.New("report not found")

type ReportRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewReportRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *ReportRepository {
	return &ReportRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *ReportRepository) Get(ctx context.Context, code string) (*domain.Report, error) {
	row, err := r.queries.GetReport(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	report := toDomainReport(row)
	return &report, nil
}

func (r *ReportRepository) List(ctx context.Context) ([]domain.Report, error) {
	rows, err := r.queries.ListReports(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainReport(row))
	}
	return out, nil
}

func (r *ReportRepository) ForNight(ctx context.Context, nightID string) ([]domain.Report, error) {
	rows, err := r.queries.ListReportsByNight(ctx, nightID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainReport(row))
	}
	return out, nil
}

func (r *ReportRepository) Nights(ctx context.Context) ([]string, error) {
	return r.queries.ListNights(ctx)
}

// Fights returns every stored fight of the night with its roster.
func (r *ReportRepository) Fights(ctx context.Context, nightID string) ([]domain.Fight, error) {
	rows, err := r.queries.ListFightsByNight(ctx, nightID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fights: %w", err)
	}
	participants, err := r.queries.ListParticipantsByNight(ctx, nightID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	rosters := make(map[string][]string)
	for _, p := range participants {
		key := fightKey(p.ReportCode, p.FightID)
		rosters[key] = append(rosters[key], p.Name)
	}

	out := make([]domain.Fight, 0, len(rows))
	for _, f := range rows {
		out = append(out, domain.Fight{
			ReportID:    f.ReportCode,
			FightID:     int(f.FightID),
			EncounterID: int(f.EncounterID),
			Difficulty:  domain.Difficulty(f.Difficulty),
			Name:        f.Name,
			Kill:        f.Kill,
			StartMS:     f.StartMs,
			EndMS:       f.EndMs,
			Roster:      rosters[fightKey(f.ReportCode, f.FightID)],
		})
	}
	return out, nil
}

// UpsertBundle replaces a report and all of its fights in one transaction.
func (r *ReportRepository) UpsertBundle(ctx context.Context, report domain.Report, fights []domain.Fight) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	err = qtx.UpsertReport(ctx, db.UpsertReportParams{
		Code:                 report.Code,
		Title:                report.Title,
		Owner:                report.Owner,
		NightID:              report.NightID,
		StartMs:              report.StartMS,
		EndMs:                report.EndMS,
		Notes:                report.Notes,
		BreakOverrideStartMs: nullInt64(report.BreakOverrideStartMS),
		BreakOverrideEndMs:   nullInt64(report.BreakOverrideEndMS),
		FetchedAt:            time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert report %s: %w", report.Code, err)
	}

	if err := qtx.DeleteFightsByReport(ctx, report.Code); err != nil {
		return fmt.Errorf("failed to clear fights of %s: %w", report.Code, err)
	}

	for _, f := range fights {
		err := qtx.InsertFight(ctx, db.InsertFightParams{
			ReportCode:  report.Code,
			FightID:     int64(f.FightID),
			EncounterID: int64(f.EncounterID),
			Difficulty:  int64(f.Difficulty),
			Name:        f.Name,
			Kill:        f.Kill,
			StartMs:     f.StartMS,
			EndMs:       f.EndMS,
		})
		if err != nil {
			return fmt.Errorf("failed to insert fight %s#%d: %w", report.Code, f.FightID, err)
		}
		for _, name := range f.Roster {
			err := qtx.InsertFightParticipant(ctx, db.InsertFightParticipantParams{
				ReportCode: report.Code,
				FightID:    int64(f.FightID),
				Name:       name,
			})
			if err != nil {
				return fmt.Errorf("failed to insert participant %s on %s#%d: %w", name, report.Code, f.FightID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug().
		Str("report", report.Code).
		Str("night_id", report.NightID).
		Int("fights", len(fights)).
		Msg("report stored")
	return nil
}

// SetOverride updates the officer break override of a stored report without
// touching its fights.
func (r *ReportRepository) SetOverride(ctx context.Context, code string, startMS, endMS *int64) error {
	return r.queries.UpdateReportOverride(ctx, db.UpdateReportOverrideParams{
		BreakOverrideStartMs: nullInt64(startMS),
		BreakOverrideEndMs:   nullInt64(endMS),
		Code:                 code,
	})
}

func toDomainReport(row db.Report) domain.Report {
	return domain.Report{
		Code:                 row.Code,
		Title:                row.Title,
		Owner:                row.Owner,
		NightID:              row.NightID,
		StartMS:              row.StartMs,
		EndMS:                row.EndMs,
		Notes:                row.Notes,
		BreakOverrideStartMS: int64Ptr(row.BreakOverrideStartMs),
		BreakOverrideEndMS:   int64Ptr(row.BreakOverrideEndMs),
	}
}

func fightKey(report string, fightID int64) string {
	return fmt.Sprintf("%s#%d", report, fightID)
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}
