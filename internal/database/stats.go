// Package database defines the insertions and transactions to the database
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DailyStats is one model's relay totals for one day. Durations are summed
// milliseconds so averages can be derived from RequestCount.
type DailyStats struct {
	Date             string
	Model            string
	RequestCount     uint64
	CompletedCount   uint64
	FailedCount      uint64
	CanceledCount    uint64
	Attempts         uint64
	Chunks           uint64
	TimeToFirstToken int64
	TotalTime        int64
}

// BuildDailyStatsUpsert returns one multi row insert that adds stats onto
// any existing row for the same (date, model).
func BuildDailyStatsUpsert(stats []*DailyStats) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO daily_stats (
		date, model, request_count, completed_requests, failed_requests, canceled_requests,
		attempts, chunks, time_to_first_token, total_time
	) VALUES`)

	vals := make([]any, 0, len(stats)*10)
	for i, s := range stats {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(" (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		vals = append(vals,
			s.Date, s.Model, s.RequestCount, s.CompletedCount, s.FailedCount, s.CanceledCount,
			s.Attempts, s.Chunks, s.TimeToFirstToken, s.TotalTime,
		)
	}
	sb.WriteString(` ON DUPLICATE KEY UPDATE
		request_count = request_count + VALUES(request_count),
		completed_requests = completed_requests + VALUES(completed_requests),
		failed_requests = failed_requests + VALUES(failed_requests),
		canceled_requests = canceled_requests + VALUES(canceled_requests),
		attempts = attempts + VALUES(attempts),
		chunks = chunks + VALUES(chunks),
		time_to_first_token = time_to_first_token + VALUES(time_to_first_token),
		total_time = total_time + VALUES(total_time)`)
	return sb.String(), vals
}

type StatsStore struct {
	db *sql.DB
}

func NewStatsStore(db *sql.DB) *StatsStore {
	return &StatsStore{db: db}
}

// SaveDailyStats writes all stats in a single transaction.
func (s *StatsStore) SaveDailyStats(ctx context.Context, stats []*DailyStats) error {
	if len(stats) == 0 {
		return nil
	}
	query, vals := BuildDailyStatsUpsert(stats)
	return ExecuteTransaction(ctx, s.db, []func(*sql.Tx) error{
		func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, query, vals...); err != nil {
				return fmt.Errorf("failed to save daily stats: %w", err)
			}
			return nil
		},
	})
}

// ExecuteTransaction executes one transaction with one or multiple database executions.
func ExecuteTransaction(ctx context.Context, writeDB *sql.DB, fns []func(*sql.Tx) error) error {
	tx, err := writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, fn := range fns {
		if err := fn(tx); err != nil {
			return fmt.Errorf("failed to execute transaction function: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
