package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"pebble/internal/engine"
	"pebble/internal/timeutil"
)

const (
	configName = "pebble"
	configType = "yaml"
	envPrefix  = "PEBBLE"
)

type Tabs struct {
	Reports       string `mapstructure:"reports"`
	RosterMap     string `mapstructure:"roster_map"`
	TeamRoster    string `mapstructure:"team_roster"`
	Overrides     string `mapstructure:"overrides"`
	NightQA       string `mapstructure:"night_qa"`
	BenchNight    string `mapstructure:"bench_night"`
	BenchWeek     string `mapstructure:"bench_week"`
	BenchRankings string `mapstructure:"bench_rankings"`
}

type Config struct {
	Timezone         string        `mapstructure:"timezone"`
	BreakWindowStart string        `mapstructure:"break_window_start"`
	BreakWindowEnd   string        `mapstructure:"break_window_end"`
	BreakMinMinutes  int           `mapstructure:"break_min_minutes"`
	BreakMaxMinutes  int           `mapstructure:"break_max_minutes"`
	DedupeTolerance  time.Duration `mapstructure:"dedupe_tolerance"`
	WeekReset        string        `mapstructure:"week_reset"`

	DBPath          string        `mapstructure:"db_path"`
	ServerPort      string        `mapstructure:"server_port"`
	LogLevel        string        `mapstructure:"log_level"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	OutageThreshold time.Duration `mapstructure:"outage_threshold"`
	FetchWorkers    int           `mapstructure:"fetch_workers"`

	WCLClientID     string `mapstructure:"wcl_client_id"`
	WCLClientSecret string `mapstructure:"wcl_client_secret"`
	WCLBaseURL      string `mapstructure:"wcl_base_url"`
	WCLTokenURL     string `mapstructure:"wcl_token_url"`

	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Tabs            Tabs   `mapstructure:"tabs"`

	// OfficerFile switches the officer tables from the spreadsheet to a yaml file.
	OfficerFile string `mapstructure:"officer_file"`

	RedisURL string `mapstructure:"redis_url"`

	location *time.Location
}

// Load reads .env, then the yaml config at path (falling back to
// $PEBBLE_CONFIG, then pebble.yaml in the working directory), then
// environment overrides.
func Load(path string, logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}
	if path == "" {
		path = os.Getenv("PEBBLE_CONFIG")
	}

	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// names the original deployment used
	_ = v.BindEnv("wcl_client_id", "PEBBLE_WCL_CLIENT_ID", "WCL_CLIENT_ID")
	_ = v.BindEnv("wcl_client_secret", "PEBBLE_WCL_CLIENT_SECRET", "WCL_CLIENT_SECRET")
	_ = v.BindEnv("spreadsheet_id", "PEBBLE_SPREADSHEET_ID", "SHEETS_SPREADSHEET_ID")
	_ = v.BindEnv("credentials_file", "PEBBLE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")
	_ = v.BindEnv("redis_url", "PEBBLE_REDIS_URL", "REDIS_URL")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logger.Info().
		Str("timezone", cfg.Timezone).
		Str("break_window", cfg.BreakWindowStart+"-"+cfg.BreakWindowEnd).
		Str("week_reset", cfg.WeekReset).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("poll_interval", cfg.PollInterval).
		Bool("officer_file", cfg.OfficerFile != "").
		Bool("redis", cfg.RedisURL != "").
		Msg("configuration loaded")

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("timezone", "America/Los_Angeles")
	v.SetDefault("break_window_start", "20:50")
	v.SetDefault("break_window_end", "21:30")
	v.SetDefault("break_min_minutes", 10)
	v.SetDefault("break_max_minutes", 30)
	v.SetDefault("dedupe_tolerance", 100*time.Millisecond)
	v.SetDefault("week_reset", "tuesday 00:00")

	v.SetDefault("db_path", "pebble.db")
	v.SetDefault("server_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("poll_interval", 5*time.Minute)
	v.SetDefault("outage_threshold", 30*time.Minute)
	v.SetDefault("fetch_workers", 4)

	v.SetDefault("wcl_base_url", "https://www.warcraftlogs.com/api/v2/client")
	v.SetDefault("wcl_token_url", "https://www.warcraftlogs.com/oauth/token")

	v.SetDefault("tabs.reports", "Reports")
	v.SetDefault("tabs.roster_map", "Roster Map")
	v.SetDefault("tabs.team_roster", "Team Roster")
	v.SetDefault("tabs.overrides", "Availability Overrides")
	v.SetDefault("tabs.night_qa", "Night QA")
	v.SetDefault("tabs.bench_night", "Bench Night Totals")
	v.SetDefault("tabs.bench_week", "Bench Week Totals")
	v.SetDefault("tabs.bench_rankings", "Bench Rankings")
}

func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	if _, err := timeutil.ClockOffset(c.BreakWindowStart); err != nil {
		return fmt.Errorf("break_window_start: %w", err)
	}
	if _, err := timeutil.ClockOffset(c.BreakWindowEnd); err != nil {
		return fmt.Errorf("break_window_end: %w", err)
	}
	if c.BreakMinMinutes < 0 || c.BreakMaxMinutes < c.BreakMinMinutes {
		return fmt.Errorf("break length bounds [%d, %d] are invalid", c.BreakMinMinutes, c.BreakMaxMinutes)
	}
	if c.DedupeTolerance < 0 {
		return fmt.Errorf("dedupe_tolerance must not be negative")
	}
	if _, err := c.Reset(); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = 1
	}
	return nil
}

// Location is the time zone nights and weeks are computed in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Settings returns the night computation knobs.
func (c *Config) Settings() engine.Settings {
	ws, _ := timeutil.ClockOffset(c.BreakWindowStart)
	we, _ := timeutil.ClockOffset(c.BreakWindowEnd)
	return engine.Settings{
		Location:        c.Location(),
		WindowStart:     ws,
		WindowEnd:       we,
		MinBreak:        time.Duration(c.BreakMinMinutes) * time.Minute,
		MaxBreak:        time.Duration(c.BreakMaxMinutes) * time.Minute,
		DedupeTolerance: c.DedupeTolerance,
	}
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// Reset parses week_reset, e.g. "tuesday 08:00".
func (c *Config) Reset() (engine.WeekReset, error) {
	fields := strings.Fields(strings.ToLower(c.WeekReset))
	if len(fields) == 0 || len(fields) > 2 {
		return engine.WeekReset{}, fmt.Errorf("week_reset %q: want \"<weekday> [HH:MM]\"", c.WeekReset)
	}
	day, ok := weekdays[fields[0]]
	if !ok {
		return engine.WeekReset{}, fmt.Errorf("week_reset %q: unknown weekday", c.WeekReset)
	}
	reset := engine.WeekReset{Weekday: day, Location: c.Location()}
	if len(fields) == 2 {
		off, err := timeutil.ClockOffset(fields[1])
		if err != nil {
			return engine.WeekReset{}, fmt.Errorf("week_reset %q: %w", c.WeekReset, err)
		}
		reset.Offset = off
	}
	return reset, nil
}

func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

