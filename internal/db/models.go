package db

import (
	"database/sql"
	"time"
)

type Report struct {
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

type Fight struct {
	ReportCode  string
	FightID     int64
	EncounterID int64
	Difficulty  int64
	Name        string
	Kill        bool
	StartMs     int64
	EndMs       int64
}

type FightParticipant struct {
	ReportCode string
	FightID    int64
	Name       string
}

type Participation struct {
	NightID     string
	ReportCode  string
	FightID     int64
	EncounterID int64
	Main        string
	StartMs     int64
	EndMs       int64
}

type Block struct {
	NightID  string
	Main     string
	Half     string
	Sequence int64
	StartMs  int64
	EndMs    int64
}

type SyncLog struct {
	ID        string
	TableName string
	Target    string
	Scope     string
	Upserted  int64
	Deleted   int64
	CreatedAt time.Time
}
