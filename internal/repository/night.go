package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"pebble/internal/db"
	"pebble/internal/domain"
)

// NightRepository stores the per-night intermediate chain (participation and
// blocks). Both are regenerated wholesale on every run.
type NightRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewNightRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *NightRepository {
	return &NightRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *NightRepository) Replace(ctx context.Context, nightID string, records []domain.ParticipationRecord, blocks []domain.Block) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	if err := qtx.DeleteParticipationByNight(ctx, nightID); err != nil {
		return fmt.Errorf("failed to clear participation: %w", err)
	}
	if err := qtx.DeleteBlocksByNight(ctx, nightID); err != nil {
		return fmt.Errorf("failed to clear blocks: %w", err)
	}

	for _, p := range records {
		err := qtx.InsertParticipation(ctx, db.InsertParticipationParams{
			NightID:     nightID,
			ReportCode:  p.ReportID,
			FightID:     int64(p.FightID),
			EncounterID: int64(p.EncounterID),
			Main:        p.Main,
			StartMs:     p.StartMS,
			EndMs:       p.EndMS,
		})
		if err != nil {
			return fmt.Errorf("failed to insert participation %s on %s#%d: %w", p.Main, p.ReportID, p.FightID, err)
		}
	}
	for _, b := range blocks {
		err := qtx.InsertBlock(ctx, db.InsertBlockParams{
			NightID:  nightID,
			Main:     b.Main,
			Half:     string(b.Half),
			Sequence: int64(b.Sequence),
			StartMs:  b.StartMS,
			EndMs:    b.EndMS,
		})
		if err != nil {
			return fmt.Errorf("failed to insert block %s/%s/%d: %w", b.Main, b.Half, b.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug().
		Str("night_id", nightID).
		Int("participation", len(records)).
		Int("blocks", len(blocks)).
		Msg("night chain stored")
	return nil
}

func (r *NightRepository) Blocks(ctx context.Context, nightID string) ([]domain.Block, error) {
	rows, err := r.queries.ListBlocksByNight(ctx, nightID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Block, 0, len(rows))
	for _, b := range rows {
		out = append(out, domain.Block{
			NightID:  b.NightID,
			Main:     b.Main,
			Half:     domain.Half(b.Half),
			Sequence: int(b.Sequence),
			StartMS:  b.StartMs,
			EndMS:    b.EndMs,
		})
	}
	return out, nil
}

func (r *NightRepository) ParticipationCount(ctx context.Context, nightID string) (int64, error) {
	return r.queries.CountParticipationByNight(ctx, nightID)
}
