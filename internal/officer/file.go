package officer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// FileSource reads the officer tables from a yaml file, for teams that keep
// them in version control instead of a spreadsheet.
type FileSource struct {
	path   string
	loc    *time.Location
	logger zerolog.Logger
}

func NewFileSource(path string, loc *time.Location, logger zerolog.Logger) *FileSource {
	return &FileSource{path: path, loc: loc, logger: logger}
}

func (s *FileSource) Load(_ context.Context) (*Tables, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read officer file: %w", err)
	}
	var raw Raw
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse officer file %s: %w", s.path, err)
	}
	for i := range raw.Reports {
		raw.Reports[i].Row = i + 1
	}

	t := Parse(raw, s.loc)
	s.logger.Debug().
		Str("path", s.path).
		Int("reports", len(t.Reports)).
		Int("roster_map", len(t.Roster)).
		Int("team", len(t.Team)).
		Int("overrides", len(t.Overrides)).
		Msg("officer tables loaded")
	return t, nil
}
