package domain

type Difficulty int

const (
	DifficultyNormal Difficulty = 3
	DifficultyHeroic Difficulty = 4
	DifficultyMythic Difficulty = 5

	// TopTier is the hardest difficulty; only its fights form the envelope.
	TopTier = DifficultyMythic
)

type Half string

const (
	HalfPre  Half = "pre"
	HalfPost Half = "post"
)

type StatusSource string

// Ordered by priority, highest first.
const (
	StatusOverride  StatusSource = "override"
	StatusLastFight StatusSource = "last_fight"
	StatusBlocks    StatusSource = "blocks"
	StatusNone      StatusSource = "none"
)

func (s StatusSource) priority() int {
	switch s {
	case StatusOverride:
		return 0
	case StatusLastFight:
		return 1
	case StatusBlocks:
		return 2
	default:
		return 3
	}
}

// Outranks reports whether s was produced by a higher-priority rule than o.
func (s StatusSource) Outranks(o StatusSource) bool {
	return s.priority() < o.priority()
}

type Report struct {
	Code    string
	Title   string
	Owner   string
	NightID string
	StartMS int64
	EndMS   int64
	Notes   string

	// manual break override from the Reports tab, nil when blank
	BreakOverrideStartMS *int64
	BreakOverrideEndMS   *int64
}

type Fight struct {
	ReportID    string
	FightID     int
	EncounterID int // 0 for trash
	Difficulty  Difficulty
	Name        string
	Kill        bool
	StartMS     int64
	EndMS       int64
	Roster      []string
}

func (f Fight) IsBoss() bool {
	return f.EncounterID > 0
}

func (f Fight) IsTopTier() bool {
	return f.Difficulty == TopTier
}

type ParticipationRecord struct {
	NightID     string
	ReportID    string
	FightID     int
	EncounterID int
	Main        string
	StartMS     int64
	EndMS       int64
}

type Block struct {
	NightID  string
	Main     string
	Half     Half
	Sequence int
	StartMS  int64
	EndMS    int64
}

func (b Block) DurationMS() int64 {
	if b.EndMS < b.StartMS {
		return 0
	}
	return b.EndMS - b.StartMS
}

type AvailabilityOverride struct {
	NightID   string
	Main      string
	AvailPre  *bool
	AvailPost *bool
	Reason    string
}

func (o AvailabilityOverride) For(h Half) *bool {
	if h == HalfPre {
		return o.AvailPre
	}
	return o.AvailPost
}

// RosterMap maps alt character names to their main.
type RosterMap map[string]string

func (m RosterMap) MainOf(name string) string {
	if main, ok := m[name]; ok && main != "" {
		return main
	}
	return name
}

type TeamRosterEntry struct {
	Main      string
	JoinDate  string // YYYY-MM-DD, empty means since forever
	LeaveDate string // YYYY-MM-DD, empty means still on the team
	Active    *bool
}

func (e TeamRosterEntry) IsActive() bool {
	return e.Active == nil || *e.Active
}

type GapCandidate struct {
	StartMS   int64   `json:"start_ms"`
	EndMS     int64   `json:"end_ms"`
	Minutes   float64 `json:"gap_min"`
	Qualifies bool    `json:"qualifies"`
}

// NightQA is the per-night audit row. All fields are comparable so rows can
// be diffed by value during reconciliation.
type NightQA struct {
	NightID           string
	Reports           string // comma separated report codes
	MainsSeen         int
	NightStartMS      int64
	NightEndMS        int64
	TopTierFights     int
	EnvelopeStartMS   int64
	EnvelopeEndMS     int64
	HasBreak          bool
	BreakStartMS      int64
	BreakEndMS        int64
	BreakMinutes      int
	OverrideUsed      bool
	PreMinutes        int
	PostMinutes       int
	EnvelopeMinutes   int
	LargestGapMinutes float64
	Candidates        string // JSON encoded []GapCandidate
	NeedsReview       bool
	Warnings          string // semicolon separated
}

func (q NightQA) NaturalKey() string { return q.NightID }
func (q NightQA) ScopeKey() string   { return q.NightID }

type BenchNightTotal struct {
	NightID      string
	Main         string
	PlayedPre    int
	PlayedPost   int
	PlayedTotal  int
	BenchPre     int
	BenchPost    int
	BenchTotal   int
	AvailPre     bool
	AvailPost    bool
	StatusSource StatusSource
}

func (b BenchNightTotal) NaturalKey() string { return b.NightID + "|" + b.Main }
func (b BenchNightTotal) ScopeKey() string   { return b.NightID }

type BenchWeekTotal struct {
	WeekID       string
	Main         string
	PlayedWeek   int
	BenchWeek    int
	BenchPre     int
	BenchPost    int
	NightsPlayed int
	Rank         int
}

func (b BenchWeekTotal) NaturalKey() string { return b.WeekID + "|" + b.Main }
func (b BenchWeekTotal) ScopeKey() string   { return b.WeekID }

// SeasonScope is the single scope of the season-to-date ranking table.
const SeasonScope = "season"

type BenchRanking struct {
	Rank          int
	Main          string
	BenchMinutes  int
	PlayedMinutes int
	Weeks         int
}

func (b BenchRanking) NaturalKey() string { return b.Main }
func (b BenchRanking) ScopeKey() string   { return SeasonScope }

type SyncResult struct {
	ID       string
	Table    string
	Target   string
	Scope    string
	Upserted int
	Deleted  int
}
