package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"pebble/internal/domain"
)

// Row is a derived row that can be diffed by value.
type Row interface {
	comparable
	NaturalKey() string
	ScopeKey() string
}

// Table names a derived table and its canonical order.
type Table[R Row] struct {
	Name string
	Less func(a, b R) bool
}

// Target is a store the derived rows are published to.
type Target[R Row] interface {
	Name() string
	Load(ctx context.Context, scope string) ([]R, error)
	Apply(ctx context.Context, plan Plan[R]) error
}

// ScopeLister is implemented by targets that can enumerate the scopes they
// currently hold, which lets ReconcileAll empty scopes that disappeared.
type ScopeLister interface {
	Scopes(ctx context.Context) ([]string, error)
}

// Snapshotter is implemented by targets whose reads are expensive.
// ReconcileAll calls Begin before its first read and End after its last
// scope; in between the target may serve every read from one snapshot.
type Snapshotter interface {
	Begin(ctx context.Context) error
	End()
}

// Normalizer is implemented by lossy targets. Fresh rows are passed through
// Normalize before diffing so a round trip through the target compares equal.
type Normalizer[R Row] interface {
	Normalize(r R) R
}

// Recorder receives the outcome of every reconciled scope.
type Recorder interface {
	Record(ctx context.Context, res domain.SyncResult) error
}

type Options struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxTries:        5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

type Reconciler struct {
	opts      Options
	recorders []Recorder
	logger    zerolog.Logger
}

func New(opts Options, logger zerolog.Logger, recorders ...Recorder) *Reconciler {
	if opts.MaxTries == 0 {
		opts.MaxTries = 1
	}
	return &Reconciler{
		opts:      opts,
		recorders: recorders,
		logger:    logger,
	}
}

func (r *Reconciler) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.opts.InitialInterval > 0 {
		b.InitialInterval = r.opts.InitialInterval
	}
	if r.opts.MaxInterval > 0 {
		b.MaxInterval = r.opts.MaxInterval
	}
	return b
}

// Reconcile brings one scope of target in line with fresh. Rows of fresh
// belonging to another scope are ignored. An unchanged scope costs one Load
// and no write.
func Reconcile[R Row](ctx context.Context, rc *Reconciler, table Table[R], target Target[R], scope string, fresh []R) (domain.SyncResult, error) {
	res := domain.SyncResult{Table: table.Name, Target: target.Name(), Scope: scope}

	inScope := make([]R, 0, len(fresh))
	for _, row := range fresh {
		if row.ScopeKey() == scope {
			inScope = append(inScope, row)
		}
	}
	if n, ok := target.(Normalizer[R]); ok {
		for i := range inScope {
			inScope[i] = n.Normalize(inScope[i])
		}
	}

	existing, err := target.Load(ctx, scope)
	if err != nil {
		return res, fmt.Errorf("load %s/%s scope %s: %w", target.Name(), table.Name, scope, err)
	}

	plan := Diff(scope, existing, inScope, table.Less)
	res.Upserted, res.Deleted = len(plan.Upserts), len(plan.Deletes)

	log := rc.logger.With().
		Str("table", table.Name).
		Str("target", target.Name()).
		Str("scope", scope).
		Logger()

	if plan.Empty() {
		log.Debug().Msg("scope unchanged")
		return res, nil
	}

	// the same plan is reapplied on every attempt
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, target.Apply(ctx, plan)
	},
		backoff.WithBackOff(rc.backOff()),
		backoff.WithMaxTries(rc.opts.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("apply failed, retrying")
		}),
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to apply plan")
		return res, fmt.Errorf("apply %s/%s scope %s: %w", target.Name(), table.Name, scope, err)
	}

	log.Info().
		Int("upserted", res.Upserted).
		Int("deleted", res.Deleted).
		Bool("reordered", plan.Reorder).
		Msg("scope reconciled")

	for _, rec := range rc.recorders {
		if err := rec.Record(ctx, res); err != nil {
			log.Warn().Err(err).Msg("failed to record sync result")
		}
	}
	return res, nil
}

// ReconcileAll reconciles every scope present in fresh and, when the target
// can list them, empties scopes that are no longer produced. Scopes for which
// skip returns true are left untouched.
func ReconcileAll[R Row](ctx context.Context, rc *Reconciler, table Table[R], target Target[R], fresh []R, skip func(scope string) bool) ([]domain.SyncResult, error) {
	if snap, ok := target.(Snapshotter); ok {
		if err := snap.Begin(ctx); err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", target.Name(), table.Name, err)
		}
		defer snap.End()
	}

	scopes := make(map[string]struct{})
	for _, row := range fresh {
		scopes[row.ScopeKey()] = struct{}{}
	}
	if lister, ok := target.(ScopeLister); ok {
		existing, err := lister.Scopes(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s scopes: %w", target.Name(), table.Name, err)
		}
		for _, s := range existing {
			scopes[s] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(scopes))
	for s := range scopes {
		if skip != nil && skip(s) {
			rc.logger.Warn().Str("table", table.Name).Str("scope", s).Msg("scope skipped")
			continue
		}
		ordered = append(ordered, s)
	}
	sort.Strings(ordered)

	results := make([]domain.SyncResult, 0, len(ordered))
	for _, s := range ordered {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := Reconcile(ctx, rc, table, target, s, fresh)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
