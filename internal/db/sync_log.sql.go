package db

import (
	"context"
	"time"
)

const insertSyncLog = `
INSERT INTO sync_log (id, table_name, target, scope, upserted, deleted, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type InsertSyncLogParams struct {
	ID        string
	TableName string
	Target    string
	Scope     string
	Upserted  int64
	Deleted   int64
	CreatedAt time.Time
}

func (q *Queries) InsertSyncLog(ctx context.Context, arg InsertSyncLogParams) error {
	_, err := q.db.ExecContext(ctx, insertSyncLog,
		arg.ID,
		arg.TableName,
		arg.Target,
		arg.Scope,
		arg.Upserted,
		arg.Deleted,
		arg.CreatedAt,
	)
	return err
}

const listRecentSyncLog = `
SELECT id, table_name, target, scope, upserted, deleted, created_at FROM sync_log
ORDER BY created_at DESC, id
LIMIT ?
`

func (q *Queries) ListRecentSyncLog(ctx context.Context, limit int64) ([]SyncLog, error) {
	rows, err := q.db.QueryContext(ctx, listRecentSyncLog, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SyncLog
	for rows.Next() {
		var i SyncLog
		if err := rows.Scan(
			&i.ID,
			&i.TableName,
			&i.Target,
			&i.Scope,
			&i.Upserted,
			&i.Deleted,
			&i.CreatedAt,
		); err != nil {
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
