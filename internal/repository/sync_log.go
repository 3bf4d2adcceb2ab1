package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"pebble/internal/db"
	"pebble/internal/domain"
)

type SyncLogRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewSyncLogRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *SyncLogRepository {
	return &SyncLogRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Record implements reconcile.Recorder.
func (r *SyncLogRepository) Record(ctx context.Context, res domain.SyncResult) error {
	id := res.ID
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate sync id: %w", err)
		}
	}
	err := r.queries.InsertSyncLog(ctx, db.InsertSyncLogParams{
		ID:        id,
		TableName: res.Table,
		Target:    res.Target,
		Scope:     res.Scope,
		Upserted:  int64(res.Upserted),
		Deleted:   int64(res.Deleted),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		r.logger.Error().Err(err).Str("table", res.Table).Str("scope", res.Scope).Msg("failed to record sync")
		return err
	}
	return nil
}

func (r *SyncLogRepository) Recent(ctx context.Context, limit int) ([]domain.SyncResult, error) {
	rows, err := r.queries.ListRecentSyncLog(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]domain.SyncResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.SyncResult{
			ID:       row.ID,
			Table:    row.TableName,
			Target:   row.Target,
			Scope:    row.Scope,
			Upserted: int(row.Upserted),
			Deleted:  int(row.Deleted),
		})
	}
	return out, nil
}
