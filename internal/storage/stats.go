package storage

import (
	"context"
	"fmt"

	"github.com/fraudsight/fraudsight/internal/model"
)

var windowDays = map[string]int{
	"7d":  7,
	"30d": 30,
}

// Stats aggregates fraud/clean counts over a rolling time window. Unknown
// windows fall back to 7d.
func (s *SQLiteStorage) Stats(ctx context.Context, window string) (*model.Stats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	days, ok := windowDays[window]
	if !ok {
		days = windowDays["7d"]
	}
	cutoff := s.nowFunc().UTC().AddDate(0, 0, -days)

	stats := &model.Stats{Timeseries: []model.StatsBucket{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			date(timestamp) AS day,
			SUM(CASE WHEN is_fraud THEN 1 ELSE 0 END) AS count_fraud,
			SUM(CASE WHEN is_fraud THEN 0 ELSE 1 END) AS count_clean
		FROM transactions
		WHERE timestamp >= ?
		GROUP BY 1
		ORDER BY 1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats timeseries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var b model.StatsBucket
		if err := rows.Scan(&b.Day, &b.CountFraud, &b.CountClean); err != nil {
			return nil, fmt.Errorf("failed to scan stats bucket: %w", err)
		}
		stats.Timeseries = append(stats.Timeseries, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats buckets: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN is_fraud THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_fraud THEN 0 ELSE 1 END), 0),
			COALESCE(SUM(CASE WHEN status = 'PENDING_REVIEW' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'APPROVED' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'REJECTED' THEN 1 ELSE 0 END), 0)
		FROM transactions
		WHERE timestamp >= ?`, cutoff,
	).Scan(
		&stats.Totals.FraudTotal,
		&stats.Totals.CleanTotal,
		&stats.Totals.PendingTotal,
		&stats.Totals.ApprovedTotal,
		&stats.Totals.RejectedTotal,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats totals: %w", err)
	}

	return stats, nil
}
