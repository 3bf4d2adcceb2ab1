package constants

import "time"

const (
	// reports younger than FreshReportAge may still be receiving fights
	FreshReportAge      = 24 * time.Hour
	FreshReportCacheTTL = 5 * time.Minute
	FinalReportCacheTTL = 180 * 24 * time.Hour
	ReportCachePrefix   = "pebble:report:"
)

const (
	ExternalAPITimeout = 30 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	SheetsTimeout      = 30 * time.Second
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	APIMaxRetries      = 5
	APIInitialBackoff  = 1 * time.Second
	APIMaxBackoff      = 30 * time.Second
	ReconcileMaxTries  = 4
	ReconcileBackoff   = 500 * time.Millisecond
	ReconcileMaxDelay  = 10 * time.Second
	FightsPageSize     = 1000
	RankingDefaultSize = 50
)

const (
	// officer and derived tabs keep a title block above the header row
	SheetHeaderRow         = 5
	SheetLastColumn        = "Z"
	SheetLastProcessedCell = "B3"
	SheetsMaxRetries       = 5
)
