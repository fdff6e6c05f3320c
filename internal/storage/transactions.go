package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fraudsight/fraudsight/internal/common"
	"github.com/fraudsight/fraudsight/internal/model"
)

// UpsertScored inserts or updates the transaction for the event's id within a
// single database transaction. Identity fields of an existing row are never
// touched; score, fraud flag and status are always rewritten.
//
// Status is re-derived from the fraud flag on every ingestion, including
// re-ingestions of an already-reviewed id. A later re-scoring therefore
// resets a prior human decision; the review endpoint is the only other writer
// of status.
func (s *SQLiteStorage) UpsertScored(ctx context.Context, event model.InboundEvent, score float64, isFraud bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(event.TransactionID, "event.TransactionID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	status := model.StatusForFraud(isFraud)
	now := s.nowFunc().UTC()

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM transactions WHERE id = ?)", event.TransactionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up transaction %s: %w", event.TransactionID, err)
	}

	if exists {
		_, err = tx.ExecContext(ctx, `
			UPDATE transactions
			SET score = ?, is_fraud = ?, status = ?, updated_at = ?
			WHERE id = ?`,
			score, isFraud, string(status), now, event.TransactionID,
		)
		if err != nil {
			return fmt.Errorf("failed to update transaction %s: %w", event.TransactionID, err)
		}
	} else {
		var lat, lon *float64
		if event.Geo != nil {
			lat, lon = event.Geo.Lat, event.Geo.Lon
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (
				id, user_id, amount, currency, merchant_id, merchant_category,
				timestamp, channel, ip, lat, lon, device_id,
				score, is_fraud, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			event.TransactionID,
			event.UserID,
			event.Amount,
			event.Currency,
			event.MerchantID,
			event.MerchantCategory,
			parseEventTime(event.Timestamp),
			event.Channel,
			event.IP,
			lat,
			lon,
			event.DeviceID,
			score,
			isFraud,
			string(status),
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", event.TransactionID, err)
		}
	}

	return tx.Commit()
}

// GetTransaction returns the transaction by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectTransactionColumns+" FROM transactions WHERE id = ?", id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return txn, nil
}

// ListFlagged returns flagged transactions ordered newest-first, optionally
// filtered by status.
func (s *SQLiteStorage) ListFlagged(ctx context.Context, limit int, status *model.Status) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	limit = validateLimit(limit)

	query := selectTransactionColumns + " FROM transactions WHERE is_fraud = 1"
	args := []any{}
	if status != nil {
		query += " AND status = ?"
		args = append(args, string(*status))
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan flagged transaction: %w", scanErr)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flagged transactions: %w", err)
	}
	return txns, nil
}

const selectTransactionColumns = `SELECT
	id, user_id, amount, currency, merchant_id, merchant_category,
	timestamp, channel, ip, lat, lon, device_id, score, is_fraud, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn      model.Transaction
		ts       sql.NullTime
		lat, lon sql.NullFloat64
		deviceID sql.NullString
		status   string
	)

	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.Amount, &txn.Currency,
		&txn.MerchantID, &txn.MerchantCategory,
		&ts, &txn.Channel, &txn.IP, &lat, &lon, &deviceID,
		&txn.Score, &txn.IsFraud, &status,
	)
	if err != nil {
		return nil, err
	}

	if ts.Valid {
		t := ts.Time
		txn.Timestamp = &t
	}
	if lat.Valid {
		txn.Lat = &lat.Float64
	}
	if lon.Valid {
		txn.Lon = &lon.Float64
	}
	if deviceID.Valid {
		txn.DeviceID = &deviceID.String
	}
	txn.Status = model.Status(status)

	return &txn, nil
}

// parseEventTime parses an ISO-8601 event timestamp, tolerating a trailing
// UTC designator and a missing zone. Unparseable or absent timestamps are
// stored as NULL rather than failing the upsert.
func parseEventTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
