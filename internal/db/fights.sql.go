package db

import (
	"context"
)

const deleteFightsByReport = `DELETE FROM fights WHERE report_code = ?`

func (q *Queries) DeleteFightsByReport(ctx context.Context, reportCode string) error {
	_, err := q.db.ExecContext(ctx, deleteFightsByReport, reportCode)
	return err
}

const insertFight = `
INSERT INTO fights (report_code, fight_id, encounter_id, difficulty, name, kill, start_ms, end_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertFightParams struct {
	ReportCode  string
	FightID     int64
	EncounterID int64
	Difficulty  int64
	Name        string
	Kill        bool
	StartMs     int64
	EndMs       int64
}

func (q *Queries) InsertFight(ctx context.Context, arg InsertFightParams) error {
	_, err := q.db.ExecContext(ctx, insertFight,
		arg.ReportCode,
		arg.FightID,
		arg.EncounterID,
		arg.Difficulty,
		arg.Name,
		arg.Kill,
		arg.StartMs,
		arg.EndMs,
	)
	return err
}

const insertFightParticipant = `
INSERT OR IGNORE INTO fight_participants (report_code, fight_id, name) VALUES (?, ?, ?)
`

type InsertFightParticipantParams struct {
	ReportCode string
	FightID    int64
	Name       string
}

func (q *Queries) InsertFightParticipant(ctx context.Context, arg InsertFightParticipantParams) error {
	_, err := q.db.ExecContext(ctx, insertFightParticipant, arg.ReportCode, arg.FightID, arg.Name)
	return err
}

const listFightsByNight = `
SELECT f.report_code, f.fight_id, f.encounter_id, f.difficulty, f.name, f.kill, f.start_ms, f.end_ms
FROM fights f
JOIN reports r ON r.code = f.report_code
WHERE r.night_id = ?
ORDER BY f.start_ms, f.report_code, f.fight_id
`

func (q *Queries) ListFightsByNight(ctx context.Context, nightID string) ([]Fight, error) {
	rows, err := q.db.QueryContext(ctx, listFightsByNight, nightID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Fight
	for rows.Next() {
		var i Fight
		if err := rows.Scan(
			&i.ReportCode,
			&i.FightID,
			&i.EncounterID,
			&i.Difficulty,
			&i.Name,
			&i.Kill,
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

const listParticipantsByNight = `
SELECT p.report_code, p.fight_id, p.name
FROM fight_participants p
JOIN reports r ON r.code = p.report_code
WHERE r.night_id = ?
ORDER BY p.report_code, p.fight_id, p.name
`

func (q *Queries) ListParticipantsByNight(ctx context.Context, nightID string) ([]FightParticipant, error) {
	rows, err := q.db.QueryContext(ctx, listParticipantsByNight, nightID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FightParticipant
	for rows.Next() {
		var i FightParticipant
		if err := rows.Scan(&i.ReportCode, &i.FightID, &i.Name); err != nil {
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
