package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pebble/internal/domain"
)

var nightTable = Table[domain.BenchNightTotal]{Name: "bench_night_totals", Less: domain.LessBenchNight}

type recorded struct {
	results []domain.SyncResult
}

func (r *recorded) Record(_ context.Context, res domain.SyncResult) error {
	r.results = append(r.results, res)
	return nil
}

func newTestReconciler(recs ...Recorder) *Reconciler {
	return New(Options{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}, zerolog.Nop(), recs...)
}

func row(night, main string, bench int) domain.BenchNightTotal {
	return domain.BenchNightTotal{NightID: night, Main: main, BenchPre: bench, BenchTotal: bench, AvailPre: true, StatusSource: domain.StatusBlocks}
}

func TestDiff(t *testing.T) {
	existing := []domain.BenchNightTotal{row("n1", "A", 0), row("n1", "B", 5), row("n1", "Gone", 1)}
	fresh := []domain.BenchNightTotal{row("n1", "B", 7), row("n1", "A", 0), row("n1", "New", 3)}

	plan := Diff("n1", existing, fresh, domain.LessBenchNight)

	require.Len(t, plan.Upserts, 2)
	assert.Equal(t, "New", plan.Upserts[0].Main)
	assert.Equal(t, "B", plan.Upserts[1].Main)
	assert.Equal(t, []string{"n1|Gone"}, plan.Deletes)
	assert.Equal(t, []string{"A", "New", "B"}, mains(plan.Ordered))
	assert.False(t, plan.Empty())
}

func TestDiff_OrderOnlyChange(t *testing.T) {
	existing := []domain.BenchNightTotal{row("n1", "B", 5), row("n1", "A", 0)}
	plan := Diff("n1", existing, []domain.BenchNightTotal{row("n1", "A", 0), row("n1", "B", 5)}, domain.LessBenchNight)

	assert.Empty(t, plan.Upserts)
	assert.Empty(t, plan.Deletes)
	assert.True(t, plan.Reorder)
	assert.False(t, plan.Empty())
}

func TestReconcile_IdempotentReExport(t *testing.T) {
	ctx := context.Background()
	rec := &recorded{}
	rc := newTestReconciler(rec)
	target := NewMemoryTarget[domain.BenchNightTotal]()
	fresh := []domain.BenchNightTotal{row("n1", "B", 5), row("n1", "A", 0), row("n2", "A", 9)}

	first, err := Reconcile(ctx, rc, nightTable, target, "n1", fresh)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Upserted)
	assert.Equal(t, 0, first.Deleted)

	second, err := Reconcile(ctx, rc, nightTable, target, "n1", fresh)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Upserted)
	assert.Equal(t, 0, second.Deleted)

	assert.Equal(t, 1, target.Writes())
	assert.Len(t, rec.results, 1, "no-op runs are not recorded")
	assert.Equal(t, []string{"A", "B"}, mains(target.Rows()))
}

func TestReconcile_ScopedDelete(t *testing.T) {
	ctx := context.Background()
	rc := newTestReconciler()
	target := NewMemoryTarget[domain.BenchNightTotal]()

	_, err := ReconcileAll(ctx, rc, nightTable, target, []domain.BenchNightTotal{
		row("n1", "A", 0), row("n1", "B", 5), row("n2", "B", 1),
	}, nil)
	require.NoError(t, err)

	res, err := Reconcile(ctx, rc, nightTable, target, "n1", []domain.BenchNightTotal{row("n1", "A", 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	n1, _ := target.Load(ctx, "n1")
	assert.Equal(t, []string{"A"}, mains(n1))
	n2, _ := target.Load(ctx, "n2")
	assert.Equal(t, []string{"B"}, mains(n2), "other scopes are untouched")
}

func TestReconcileAll_StaleAndSkippedScopes(t *testing.T) {
	ctx := context.Background()
	rc := newTestReconciler()
	target := NewMemoryTarget[domain.BenchNightTotal]()

	_, err := ReconcileAll(ctx, rc, nightTable, target, []domain.BenchNightTotal{
		row("n1", "A", 0), row("n2", "A", 1), row("n3", "A", 2),
	}, nil)
	require.NoError(t, err)

	results, err := ReconcileAll(ctx, rc, nightTable, target, []domain.BenchNightTotal{row("n1", "A", 0)},
		func(scope string) bool { return scope == "n3" })
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "n2", results[1].Scope)
	assert.Equal(t, 1, results[1].Deleted)

	scopes, _ := target.Scopes(ctx)
	assert.Equal(t, []string{"n1", "n3"}, scopes)
}

type snapshotting struct {
	*MemoryTarget[domain.BenchNightTotal]
	begins, ends int
	beginErr     error
}

func (s *snapshotting) Begin(context.Context) error {
	s.begins++
	return s.beginErr
}

func (s *snapshotting) End() { s.ends++ }

func TestReconcileAll_SnapshotAroundScopes(t *testing.T) {
	ctx := context.Background()
	rc := newTestReconciler()
	target := &snapshotting{MemoryTarget: NewMemoryTarget[domain.BenchNightTotal]()}

	results, err := ReconcileAll[domain.BenchNightTotal](ctx, rc, nightTable, target,
		[]domain.BenchNightTotal{row("n1", "A", 0), row("n2", "A", 1)}, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 1, target.begins)
	assert.Equal(t, 1, target.ends)

	target.beginErr = assert.AnError
	_, err = ReconcileAll[domain.BenchNightTotal](ctx, rc, nightTable, target, nil, nil)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, target.ends)
	assert.Equal(t, 2, target.Writes())
}

func TestReconcile_RetriesWithSamePlan(t *testing.T) {
	ctx := context.Background()
	rc := newTestReconciler()
	target := NewMemoryTarget[domain.BenchNightTotal]()
	target.FailNext = 2

	res, err := Reconcile(ctx, rc, nightTable, target, "n1", []domain.BenchNightTotal{row("n1", "A", 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
	assert.Equal(t, 1, target.Writes())

	target.FailNext = 5
	_, err = Reconcile(ctx, rc, nightTable, target, "n1", []domain.BenchNightTotal{row("n1", "B", 0)})
	assert.ErrorIs(t, err, ErrInjected)
}

type truncating struct {
	*MemoryTarget[domain.BenchNightTotal]
}

func (truncating) Normalize(r domain.BenchNightTotal) domain.BenchNightTotal {
	r.StatusSource = ""
	return r
}

func TestReconcile_NormalizesForLossyTargets(t *testing.T) {
	ctx := context.Background()
	rc := newTestReconciler()
	target := truncating{NewMemoryTarget[domain.BenchNightTotal]()}
	fresh := []domain.BenchNightTotal{row("n1", "A", 0)}

	_, err := Reconcile[domain.BenchNightTotal](ctx, rc, nightTable, target, "n1", fresh)
	require.NoError(t, err)
	res, err := Reconcile[domain.BenchNightTotal](ctx, rc, nightTable, target, "n1", fresh)
	require.NoError(t, err)
	assert.Zero(t, res.Upserted)
}

func mains(rows []domain.BenchNightTotal) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Main)
	}
	return out
}
