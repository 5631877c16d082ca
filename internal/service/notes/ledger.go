package notes

import (
	"context"
	"fmt"
	"log"
	"time"

	"notesai/internal/models"
	"notesai/internal/prompt"
)

// recordOperation appends one metadata row for a completion call. Failures are
// logged; the ledger never fails the user action.
func (s *Service) recordOperation(ctx context.Context, sessionID string, kind prompt.Kind, promptChars, resultChars int, took time.Duration, callErr error) {
	if s.db == nil {
		return
	}
	status, message := models.OperationOK, ""
	if callErr != nil {
		status, message = models.OperationFailed, callErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (session_id, kind, status, prompt_chars, result_chars, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, string(kind), status, promptChars, resultChars, took.Milliseconds(), message, s.now().UTC(),
	)
	if err != nil {
		log.Printf("record operation for session %s: %v", sessionID, err)
	}
}

// Operations lists the session's ledger entries, oldest first.
func (s *Service) Operations(ctx context.Context, sessionID string) ([]models.Operation, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, kind, status, prompt_chars, result_chars, duration_ms, error, created_at
		FROM operations WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var ops []models.Operation
	for rows.Next() {
		var op models.Operation
		if err := rows.Scan(&op.ID, &op.SessionID, &op.Kind, &op.Status, &op.PromptChars,
			&op.ResultChars, &op.DurationMs, &op.Error, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
