package database

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	src := "-- header\nCREATE TABLE a (\n  id INT -- trailing stays\n);\n\n-- only a comment;\nDROP TABLE b;\n"
	got := SplitStatements(src)
	assert.Equal(t, []string{
		"CREATE TABLE a (\n  id INT -- trailing stays\n)",
		"DROP TABLE b",
	}, got)
}

func TestDailyStatsMigrationMatchesUpsert(t *testing.T) {
	src, err := os.ReadFile("../../migrations/create_daily_stats_table.sql")
	require.NoError(t, err)
	stmts := SplitStatements(string(src))
	require.Len(t, stmts, 1)

	query, _ := BuildDailyStatsUpsert([]*DailyStats{{Date: "2026-01-01", Model: "m"}})
	for _, col := range []string{
		"request_count", "completed_requests", "failed_requests", "canceled_requests",
		"attempts", "chunks", "time_to_first_token", "total_time",
	} {
		assert.Contains(t, stmts[0], col)
		assert.Contains(t, query, col)
	}
}
