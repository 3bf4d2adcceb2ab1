package engine

import (
	"pebble/internal/domain"
)

// Envelope is the top-tier span of a night split at the break.
type Envelope struct {
	StartMS int64
	EndMS   int64
	Empty   bool

	HasBreak     bool
	BreakStartMS int64
	BreakEndMS   int64

	PreMS  int64
	PostMS int64
}

// ComputeEnvelope spans the first top-tier start to the last top-tier end
// and splits it at brk. A nil break puts the whole envelope in pre.
func ComputeEnvelope(fights []domain.Fight, brk *Break) Envelope {
	var env Envelope
	first := true
	for _, f := range fights {
		if !f.IsTopTier() {
			continue
		}
		if first || f.StartMS < env.StartMS {
			env.StartMS = f.StartMS
		}
		if first || f.EndMS > env.EndMS {
			env.EndMS = f.EndMS
		}
		first = false
	}
	if first {
		env.Empty = true
		if brk != nil {
			env.HasBreak = true
			env.BreakStartMS, env.BreakEndMS = brk.StartMS, brk.EndMS
		}
		return env
	}

	if brk == nil {
		env.PreMS = env.EndMS - env.StartMS
		return env
	}

	env.HasBreak = true
	env.BreakStartMS, env.BreakEndMS = brk.StartMS, brk.EndMS
	env.PreMS = nonNegative(env.clamp(brk.StartMS) - env.StartMS)
	env.PostMS = nonNegative(env.EndMS - env.clamp(brk.EndMS))
	return env
}

func (e Envelope) clamp(ms int64) int64 {
	if ms < e.StartMS {
		return e.StartMS
	}
	if ms > e.EndMS {
		return e.EndMS
	}
	return ms
}

func (e Envelope) SpanMS() int64 {
	return nonNegative(e.EndMS - e.StartMS)
}

func (e Envelope) PreMinutes() int  { return Minutes(e.PreMS) }
func (e Envelope) PostMinutes() int { return Minutes(e.PostMS) }

// HalfMinutes returns the envelope minutes of h.
func (e Envelope) HalfMinutes(h domain.Half) int {
	if h == domain.HalfPre {
		return e.PreMinutes()
	}
	return e.PostMinutes()
}

// HalfOf assigns a fight to the half containing its start.
func (e Envelope) HalfOf(startMS int64) domain.Half {
	if !e.HasBreak || startMS < e.BreakStartMS {
		return domain.HalfPre
	}
	return domain.HalfPost
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
