package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fraudsight/fraudsight/internal/common"
	"github.com/fraudsight/fraudsight/internal/model"
)

// SaveReview creates or replaces the single review row for a transaction and
// sets the transaction's status to match the decision, atomically.
func (s *SQLiteStorage) SaveReview(ctx context.Context, review model.Review) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(review.TransactionID, "review.TransactionID"); err != nil {
		return err
	}
	if err := validateString(review.Reviewer, "review.Reviewer"); err != nil {
		return err
	}
	if !review.Decision.Valid() {
		return fmt.Errorf("invalid review decision %q", review.Decision)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM transactions WHERE id = ?)", review.TransactionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up transaction %s: %w", review.TransactionID, err)
	}
	if !exists {
		return fmt.Errorf("transaction %s: %w", review.TransactionID, common.ErrNotFound)
	}

	now := s.nowFunc().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO reviews (transaction_id, reviewer, decision, notes, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			reviewer = excluded.reviewer,
			decision = excluded.decision,
			notes = excluded.notes`,
		review.TransactionID, review.Reviewer, string(review.Decision), nullIfEmpty(review.Notes), now,
	)
	if err != nil {
		return fmt.Errorf("failed to save review for %s: %w", review.TransactionID, err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?",
		string(review.Decision.Status()), now, review.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update status for %s: %w", review.TransactionID, err)
	}

	return tx.Commit()
}

// GetReview returns the review for a transaction id.
func (s *SQLiteStorage) GetReview(ctx context.Context, transactionID string) (*model.Review, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	var (
		review   model.Review
		decision string
		notes    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, reviewer, decision, notes, created_at
		FROM reviews WHERE transaction_id = ?`, transactionID,
	).Scan(&review.TransactionID, &review.Reviewer, &decision, &notes, &review.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review for %s: %w", transactionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review for %s: %w", transactionID, err)
	}

	review.Decision = model.Decision(decision)
	review.Notes = notes.String
	return &review, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
