package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"pebble/internal/domain"
	"pebble/internal/timeutil"
)

// Settings are the per-team knobs of the night computation.
type Settings struct {
	Location        *time.Location
	WindowStart     time.Duration // past local midnight of the night
	WindowEnd       time.Duration
	MinBreak        time.Duration
	MaxBreak        time.Duration
	DedupeTolerance time.Duration
}

type NightInput struct {
	NightID   string
	Reports   []domain.Report
	Fights    []domain.Fight
	Roster    domain.RosterMap
	Overrides []domain.AvailabilityOverride
}

type NightResult struct {
	QA            domain.NightQA
	Break         BreakResult
	Envelope      Envelope
	Fights        []domain.Fight
	Participation []domain.ParticipationRecord
	Blocks        []domain.Block
	Availability  []Availability
	Totals        []domain.BenchNightTotal
	Warnings      []error
}

// ComputeNight runs break detection through bench arithmetic for one night.
// Degraded inputs (no top-tier pulls, no break) produce warnings and a
// flagged QA row rather than an error.
func ComputeNight(s Settings, in NightInput) (NightResult, error) {
	var res NightResult
	if len(in.Fights) == 0 {
		return res, fmt.Errorf("night %s: %w", in.NightID, ErrNoFights)
	}

	params, err := s.breakParams(in)
	if err != nil {
		return res, fmt.Errorf("night %s: %w", in.NightID, err)
	}

	res.Fights = DedupeFights(in.Fights, s.DedupeTolerance)
	res.Break = DetectBreak(res.Fights, params)
	res.Warnings = append(res.Warnings, res.Break.Warnings...)

	res.Envelope = ComputeEnvelope(res.Fights, res.Break.Break)
	if res.Envelope.Empty {
		res.Warnings = append(res.Warnings, ErrNoTopTierFights)
	}

	res.Participation = BuildParticipation(in.NightID, res.Fights, in.Roster)
	res.Blocks = BuildBlocks(in.NightID, res.Participation, res.Fights, res.Envelope)
	res.Availability = ResolveAvailability(res.Fights, res.Envelope, res.Blocks, in.Overrides, in.Roster)
	res.Totals = ComputeBench(in.NightID, res.Envelope, res.Blocks, res.Availability)
	res.QA = buildQA(in, res)
	return res, nil
}

func (s Settings) breakParams(in NightInput) (BreakParams, error) {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	ws, err := timeutil.AtClock(in.NightID, s.WindowStart, loc)
	if err != nil {
		return BreakParams{}, err
	}
	we, err := timeutil.AtClock(in.NightID, s.WindowEnd, loc)
	if err != nil {
		return BreakParams{}, err
	}
	// a window crossing midnight ends on the next day
	if we < ws {
		we += (24 * time.Hour).Milliseconds()
	}

	p := BreakParams{
		WindowStartMS: ws,
		WindowEndMS:   we,
		MinLength:     s.MinBreak,
		MaxLength:     s.MaxBreak,
	}
	p.OverrideStartMS, p.OverrideEndMS = pickOverride(in.Reports)
	return p, nil
}

// pickOverride prefers the first report (by code) with a complete override.
// Failing that, a half-filled override is passed through so detection can
// flag it.
func pickOverride(reports []domain.Report) (*int64, *int64) {
	sorted := make([]domain.Report, len(reports))
	copy(sorted, reports)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })

	for _, r := range sorted {
		if r.BreakOverrideStartMS != nil && r.BreakOverrideEndMS != nil {
			return r.BreakOverrideStartMS, r.BreakOverrideEndMS
		}
	}
	for _, r := range sorted {
		if r.BreakOverrideStartMS != nil || r.BreakOverrideEndMS != nil {
			return r.BreakOverrideStartMS, r.BreakOverrideEndMS
		}
	}
	return nil, nil
}

// FirstFightStartMS is the start of the earliest fight, the instant a night
// is dated by. It is zero for no fights.
func FirstFightStartMS(fights []domain.Fight) int64 {
	var first int64
	for i, f := range fights {
		if i == 0 || f.StartMS < first {
			first = f.StartMS
		}
	}
	return first
}

func buildQA(in NightInput, res NightResult) domain.NightQA {
	codes := make([]string, 0, len(in.Reports))
	for _, r := range in.Reports {
		codes = append(codes, r.Code)
	}
	sort.Strings(codes)

	mains := make(map[string]struct{})
	qa := domain.NightQA{
		NightID: in.NightID,
		Reports: strings.Join(codes, ","),
	}
	qa.NightStartMS = FirstFightStartMS(res.Fights)
	for _, f := range res.Fights {
		if f.EndMS > qa.NightEndMS {
			qa.NightEndMS = f.EndMS
		}
		if f.IsTopTier() {
			qa.TopTierFights++
		}
		if f.IsBoss() {
			for _, name := range f.Roster {
				mains[in.Roster.MainOf(name)] = struct{}{}
			}
		}
	}
	qa.MainsSeen = len(mains)

	env := res.Envelope
	if !env.Empty {
		qa.EnvelopeStartMS, qa.EnvelopeEndMS = env.StartMS, env.EndMS
	}
	if b := res.Break.Break; b != nil {
		qa.HasBreak = true
		qa.BreakStartMS, qa.BreakEndMS = b.StartMS, b.EndMS
		qa.BreakMinutes = Minutes(b.DurationMS())
	}
	qa.OverrideUsed = res.Break.OverrideUsed
	qa.PreMinutes = env.PreMinutes()
	qa.PostMinutes = env.PostMinutes()
	qa.EnvelopeMinutes = Minutes(env.SpanMS())
	qa.LargestGapMinutes = roundMinutes(res.Break.LargestGapMS)

	candidates := res.Break.Candidates
	if candidates == nil {
		candidates = []domain.GapCandidate{}
	}
	if raw, err := json.Marshal(candidates); err == nil {
		qa.Candidates = string(raw)
	}

	qa.NeedsReview = res.Break.NeedsReview || env.Empty
	msgs := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		msgs = append(msgs, w.Error())
	}
	qa.Warnings = strings.Join(msgs, "; ")
	return qa
}

// IsDegraded reports whether err is one of the warnings a night can carry
// without failing.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrNoTopTierFights) || errors.Is(err, ErrAmbiguousOverride) || errors.Is(err, ErrNoQualifyingBreak)
}
