package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pebble/internal/domain"
	"pebble/internal/service"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"serve", "compute", "rank", "flush-cache"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestPrintRankings(t *testing.T) {
	var buf bytes.Buffer
	printRankings(&buf, []domain.BenchRanking{
		{Rank: 1, Main: "Amy", BenchMinutes: 12, PlayedMinutes: 300, Weeks: 2},
		{Rank: 2, Main: "Zed", BenchMinutes: 90, PlayedMinutes: 200, Weeks: 2},
	})
	out := buf.String()
	assert.Contains(t, out, "Amy")
	assert.Contains(t, out, "Zed")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Amy")), bytes.Index(buf.Bytes(), []byte("Zed")))
}

func TestPrintRunSkipsUnchangedScopes(t *testing.T) {
	var buf bytes.Buffer
	printRun(&buf, &service.RunResult{
		Nights: 2,
		Synced: []domain.SyncResult{
			{Table: "night_qa", Target: "memory", Scope: "2025-03-04", Upserted: 1},
			{Table: "night_qa", Target: "memory", Scope: "2025-03-11"},
		},
	}, true)
	out := buf.String()
	assert.Contains(t, out, "2025-03-04")
	assert.NotContains(t, out, "2025-03-11")
	assert.Contains(t, out, "dry run")
}

func TestMemoryTargetsReplaceEveryTable(t *testing.T) {
	targets := memoryTargets(service.Targets{})
	assert.Len(t, targets.NightQA, 1)
	assert.Len(t, targets.BenchNight, 1)
	assert.Len(t, targets.BenchWeek, 1)
	assert.Len(t, targets.Rankings, 1)
	assert.Equal(t, "memory", targets.Rankings[0].Name())
}
