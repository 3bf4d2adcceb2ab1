package engine

import (
	"sort"

	"pebble/internal/domain"
)

type Decision struct {
	Available bool
	Source    domain.StatusSource
}

// availabilityFacts is everything the rules may look at for one main.
type availabilityFacts struct {
	override  *domain.AvailabilityOverride
	lastFight bool
	hasBlocks bool
}

type availabilityRule func(facts availabilityFacts, h domain.Half) (Decision, bool)

// Evaluated in order, the first rule that fires decides.
var availabilityRules = []availabilityRule{
	overrideRule,
	lastFightRule,
	blocksRule,
	absentRule,
}

func overrideRule(facts availabilityFacts, h domain.Half) (Decision, bool) {
	if facts.override == nil {
		return Decision{}, false
	}
	v := facts.override.For(h)
	if v == nil {
		return Decision{}, false
	}
	return Decision{Available: *v, Source: domain.StatusOverride}, true
}

func lastFightRule(facts availabilityFacts, _ domain.Half) (Decision, bool) {
	if !facts.lastFight {
		return Decision{}, false
	}
	return Decision{Available: true, Source: domain.StatusLastFight}, true
}

func blocksRule(facts availabilityFacts, _ domain.Half) (Decision, bool) {
	if !facts.hasBlocks {
		return Decision{}, false
	}
	return Decision{Available: true, Source: domain.StatusBlocks}, true
}

func absentRule(availabilityFacts, domain.Half) (Decision, bool) {
	return Decision{Available: false, Source: domain.StatusNone}, true
}

func decide(facts availabilityFacts, h domain.Half) Decision {
	for _, rule := range availabilityRules {
		if d, ok := rule(facts, h); ok {
			return d
		}
	}
	return Decision{Source: domain.StatusNone}
}

type Availability struct {
	Main string
	Pre  Decision
	Post Decision
}

func (a Availability) For(h domain.Half) Decision {
	if h == domain.HalfPre {
		return a.Pre
	}
	return a.Post
}

// StatusSource is the highest-priority rule that fired for either half.
func (a Availability) StatusSource() domain.StatusSource {
	if a.Post.Source.Outranks(a.Pre.Source) {
		return a.Post.Source
	}
	return a.Pre.Source
}

// LastFightMains returns the mains on the last lower-difficulty boss pull
// that ended on or before envelopeStartMS.
func LastFightMains(fights []domain.Fight, envelopeStartMS int64, roster domain.RosterMap) map[string]bool {
	var last *domain.Fight
	for i := range fights {
		f := &fights[i]
		if f.IsTopTier() || !f.IsBoss() || f.EndMS > envelopeStartMS {
			continue
		}
		if last == nil || f.EndMS > last.EndMS || (f.EndMS == last.EndMS && f.StartMS > last.StartMS) {
			last = f
		}
	}
	out := make(map[string]bool)
	if last == nil {
		return out
	}
	for _, name := range last.Roster {
		if name != "" {
			out[roster.MainOf(name)] = true
		}
	}
	return out
}

// ResolveAvailability decides per main per half whether the main was
// expected to be present. Mains come from blocks, overrides and the last
// lower-difficulty pull; everyone else is simply absent.
func ResolveAvailability(fights []domain.Fight, env Envelope, blocks []domain.Block, overrides []domain.AvailabilityOverride, roster domain.RosterMap) []Availability {
	facts := make(map[string]*availabilityFacts)
	get := func(main string) *availabilityFacts {
		f, ok := facts[main]
		if !ok {
			f = &availabilityFacts{}
			facts[main] = f
		}
		return f
	}

	for _, b := range blocks {
		get(b.Main).hasBlocks = true
	}
	for i := range overrides {
		o := overrides[i]
		get(roster.MainOf(o.Main)).override = &o
	}
	if !env.Empty {
		for main := range LastFightMains(fights, env.StartMS, roster) {
			get(main).lastFight = true
		}
	}

	out := make([]Availability, 0, len(facts))
	for main, f := range facts {
		out = append(out, Availability{
			Main: main,
			Pre:  decide(*f, domain.HalfPre),
			Post: decide(*f, domain.HalfPost),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Main < out[j].Main })
	return out
}
