package db

import (
	"context"
)

const deleteParticipationByNight = `DELETE FROM participation WHERE night_id = ?`

func (q *Queries) DeleteParticipationByNight(ctx context.Context, nightID string) error {
	_, err := q.db.ExecContext(ctx, deleteParticipationByNight, nightID)
	return err
}

const insertParticipation = `
INSERT INTO participation (night_id, report_code, fight_id, encounter_id, main, start_ms, end_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type InsertParticipationParams struct {
	NightID     string
	ReportCode  string
	FightID     int64
	EncounterID int64
	Main        string
	StartMs     int64
	EndMs       int64
}

func (q *Queries) InsertParticipation(ctx context.Context, arg InsertParticipationParams) error {
	_, err := q.db.ExecContext(ctx, insertParticipation,
		arg.NightID,
		arg.ReportCode,
		arg.FightID,
		arg.EncounterID,
		arg.Main,
		arg.StartMs,
		arg.EndMs,
	)
	return err
}

const deleteBlocksByNight = `DELETE FROM blocks WHERE night_id = ?`

func (q *Queries) DeleteBlocksByNight(ctx context.Context, nightID string) error {
	_, err := q.db.ExecContext(ctx, deleteBlocksByNight, nightID)
	return err
}

const insertBlock = `
INSERT INTO blocks (night_id, main, half, sequence, start_ms, end_ms) VALUES (?, ?, ?, ?, ?, ?)
`

type InsertBlockParams struct {
	NightID  string
	Main     string
	Half     string
	Sequence int64
	StartMs  int64
	EndMs    int64
}

func (q *Queries) InsertBlock(ctx context.Context, arg InsertBlockParams) error {
	_, err := q.db.ExecContext(ctx, insertBlock,
		arg.NightID,
		arg.Main,
		arg.Half,
		arg.Sequence,
		arg.StartMs,
		arg.EndMs,
	)
	return err
}

const listBlocksByNight = `
SELECT night_id, main, half, sequence, start_ms, end_ms FROM blocks
WHERE night_id = ?
ORDER BY main, half DESC, sequence
`

func (q *Queries) ListBlocksByNight(ctx context.Context, nightID string) ([]Block, error) {
	rows, err := q.db.QueryContext(ctx, listBlocksByNight, nightID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Block
	for rows.Next() {
		var i Block
		if err := rows.Scan(
			&i.NightID,
			&i.Main,
			&i.Half,
			&i.Sequence,
			&i.StartMs,
			&i.EndMs,
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

const countParticipationByNight = `SELECT COUNT(*) FROM participation WHERE night_id = ?`

func (q *Queries) CountParticipationByNight(ctx context.Context, nightID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countParticipationByNight, nightID).Scan(&count)
	return count, err
}
