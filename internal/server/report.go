package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pebble/internal/constants"
	"pebble/internal/domain"
	"pebble/internal/repository"
	"pebble/internal/timeutil"
)

const ReportServicePath = "/pebble.v1.ReportService/"

const (
	ListNightsProcedure      = ReportServicePath + "ListNights"
	GetNightQAProcedure      = ReportServicePath + "GetNightQA"
	ListBenchNightProcedure  = ReportServicePath + "ListBenchNight"
	ListBenchWeekProcedure   = ReportServicePath + "ListBenchWeek"
	GetRankingsProcedure     = ReportServicePath + "GetRankings"
	ListRecentSyncsProcedure = ReportServicePath + "ListRecentSyncs"
)

// ReportServer serves the published tables read-only from the sqlite copy.
type ReportServer struct {
	reports  *repository.ReportRepository
	qa       *repository.DerivedStore[domain.NightQA]
	bench    *repository.DerivedStore[domain.BenchNightTotal]
	weeks    *repository.DerivedStore[domain.BenchWeekTotal]
	rankings *repository.DerivedStore[domain.BenchRanking]
	syncLog  *repository.SyncLogRepository
	logger   zerolog.Logger
}

func NewReportServer(
	reports *repository.ReportRepository,
	qa *repository.DerivedStore[domain.NightQA],
	bench *repository.DerivedStore[domain.BenchNightTotal],
	weeks *repository.DerivedStore[domain.BenchWeekTotal],
	rankings *repository.DerivedStore[domain.BenchRanking],
	syncLog *repository.SyncLogRepository,
	logger zerolog.Logger,
) *ReportServer {
	return &ReportServer{
		reports:  reports,
		qa:       qa,
		bench:    bench,
		weeks:    weeks,
		rankings: rankings,
		syncLog:  syncLog,
		logger:   logger,
	}
}

// Handler returns the service path and its handler, mounted the way a
// generated connect handler would be.
func (s *ReportServer) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ListNightsProcedure, connect.NewUnaryHandler(ListNightsProcedure, s.ListNights, opts...))
	mux.Handle(GetNightQAProcedure, connect.NewUnaryHandler(GetNightQAProcedure, s.GetNightQA, opts...))
	mux.Handle(ListBenchNightProcedure, connect.NewUnaryHandler(ListBenchNightProcedure, s.ListBenchNight, opts...))
	mux.Handle(ListBenchWeekProcedure, connect.NewUnaryHandler(ListBenchWeekProcedure, s.ListBenchWeek, opts...))
	mux.Handle(GetRankingsProcedure, connect.NewUnaryHandler(GetRankingsProcedure, s.GetRankings, opts...))
	mux.Handle(ListRecentSyncsProcedure, connect.NewUnaryHandler(ListRecentSyncsProcedure, s.ListRecentSyncs, opts...))
	return ReportServicePath, mux
}

func (s *ReportServer) ListNights(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[structpb.ListValue], error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	nights, err := s.reports.Nights(ctx)
	if err != nil {
		return nil, s.internal(ctx, err)
	}
	items := make([]any, 0, len(nights))
	for _, n := range nights {
		items = append(items, n)
	}
	return listResponse(items)
}

func (s *ReportServer) GetNightQA(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.Struct], error) {
	night, err := nightArg(req.Msg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	rows, err := s.qa.Load(ctx, night)
	if err != nil {
		return nil, s.internal(ctx, err)
	}
	if len(rows) == 0 {
		return nil, connect.NewError(connect.CodeNotFound, errors.New("no QA row for night "+night))
	}
	st, err := structpb.NewStruct(nightQAFields(rows[0]))
	if err != nil {
		return nil, s.internal(ctx, err)
	}
	return connect.NewResponse(st), nil
}

func (s *ReportServer) ListBenchNight(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.ListValue], error) {
	night, err := nightArg(req.Msg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	rows, err := s.bench.Load(ctx, night)
	if err != nil {
		return nil, s.internal(ctx, err)
	}
	items := make([]any, 0, len(rows))
	for _, r := range rows {
		items = append(items, map[string]any{
			"night_id":      r.NightID,
			"main":          r.Main,
			"played_pre":    r.PlayedPre,
			"played_post":   r.PlayedPost,
			"played_total":  r.PlayedTotal,
			"bench_pre":     r.BenchPre,
			"bench_post":    r.BenchPost,
			"bench_total":   r.BenchTotal,
			"avail_pre":     r.AvailPre,
			"avail_post":    r.AvailPost,
			"status_source": string(r.StatusSource),
		})
	}
	return listResponse(items)
}

func (s *ReportServer) ListBenchWeek(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.ListValue], error) {
	week := strings.TrimSpace(req.Msg.GetValue())
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	// a blank week id lists every week
	var (
		rows []domain.BenchWeekTotal
		err  error
	)
	if week == "" {
		rows, err = s.weeks.All(ctx)
	} else {
		rows, err = s.weeks.Load(ctx, week)
	}
	if err != nil {
		return nil, s.internal(ctx, err)
	}
	items := make([]any, 0, len(rows))
	for _, r := range rows {
		items = append(items, map[string]any{
			"week_id":       r.WeekID,
			"main":          r.Main,
			"played_week":   r.PlayedWeek,
			"bench_week":    r.BenchWeek,
			"bench_pre":     r.BenchPre,
			"bench_post":    r.BenchPost,
			"nights_played": r.NightsPlayed,
			"rank":          r.Rank,
		})
	}
	return listResponse(items)
}

// GetRankings returns the season table, truncated to the requested size.
func (s *ReportServer) GetRankings(ctx context.Context, req *connect.Request[wrapperspb.Int32Value]) (*connect.Response[structpb.ListValue], error) {
	limit := int(req.Msg.GetValue())
	if limit <= 0 {
		limit = constants.RankingDefaultSize
	}
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	rows, err := s.rankings.Load(ctx, domain.SeasonScope)
	if err != nil {
		return nil, s.internal(ctx, err)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]any, 0, len(rows))
	for _, r := range rows {
		items = append(items, map[string]any{
			"rank":           r.Rank,
			"main":           r.Main,
			"bench_minutes":  r.BenchMinutes,
			"played_minutes": r.PlayedMinutes,
			"weeks":          r.Weeks,
		})
	}
	return listResponse(items)
}

func (s *ReportServer) ListRecentSyncs(ctx context.Context, req *connect.Request[wrapperspb.Int32Value]) (*connect.Response[structpb.ListValue], error) {
	limit := int(req.Msg.GetValue())
	if limit <= 0 {
		limit = constants.RankingDefaultSize
	}
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	rows, err := s.syncLog.Recent(ctx, limit)
	if err != nil {
		return nil, s.internal(ctx, err)
	}
	items := make([]any, 0, len(rows))
	for _, r := range rows {
		items = append(items, map[string]any{
			"id":       r.ID,
			"table":    r.Table,
			"target":   r.Target,
			"scope":    r.Scope,
			"upserted": r.Upserted,
			"deleted":  r.Deleted,
		})
	}
	return listResponse(items)
}

func nightArg(msg *wrapperspb.StringValue) (string, error) {
	night := strings.TrimSpace(msg.GetValue())
	if night == "" {
		return "", connect.NewError(connect.CodeInvalidArgument, errors.New("night id is required"))
	}
	return night, nil
}

func nightQAFields(q domain.NightQA) map[string]any {
	return map[string]any{
		"night_id":            q.NightID,
		"reports":             q.Reports,
		"mains_seen":          q.MainsSeen,
		"night_start":         stamp(q.NightStartMS),
		"night_end":           stamp(q.NightEndMS),
		"top_tier_fights":     q.TopTierFights,
		"envelope_start":      stamp(q.EnvelopeStartMS),
		"envelope_end":        stamp(q.EnvelopeEndMS),
		"has_break":           q.HasBreak,
		"break_start":         stamp(q.BreakStartMS),
		"break_end":           stamp(q.BreakEndMS),
		"break_minutes":       q.BreakMinutes,
		"override_used":       q.OverrideUsed,
		"pre_minutes":         q.PreMinutes,
		"post_minutes":        q.PostMinutes,
		"envelope_minutes":    q.EnvelopeMinutes,
		"largest_gap_minutes": q.LargestGapMinutes,
		"candidates":          q.Candidates,
		"needs_review":        q.NeedsReview,
		"warnings":            q.Warnings,
	}
}

// stamp renders epoch ms as RFC 3339 in UTC, empty for unset.
func stamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	return timeutil.FromMS(ms).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func listResponse(items []any) (*connect.Response[structpb.ListValue], error) {
	list, err := structpb.NewList(items)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(list), nil
}

func (s *ReportServer) internal(ctx context.Context, err error) error {
	log := zerolog.Ctx(ctx)
	if log.GetLevel() == zerolog.Disabled {
		log = &s.logger
	}
	log.Error().Err(err).Msg("report query failed")
	return connect.NewError(connect.CodeInternal, err)
}
