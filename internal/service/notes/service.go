// Package notes dispatches user actions: it extracts uploaded documents into the
// session workspace and runs prompt operations over the extracted text.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"notesai/internal/extract"
	"notesai/internal/models"
	"notesai/internal/prompt"
	"notesai/internal/service/ai"
	"notesai/internal/session"
)

var (
	// ErrNoSummary is returned when downloading before a summary was generated.
	ErrNoSummary = errors.New("no summary generated yet")

	errStaleRevision = errors.New("workspace changed during operation")
)

// Service ties the extractor, the prompt builder and the completer to the
// per-session workspace.
type Service struct {
	db        *sql.DB
	store     session.Store
	completer ai.Completer
	now       func() time.Time
	// expired is told the token of every session the cleaner removes.
	expired func(ctx context.Context, token string)
}

// NewService wires the dispatch service. db may be nil, in which case operations
// are not recorded.
func NewService(db *sql.DB, store session.Store, completer ai.Completer) *Service {
	return &Service{db: db, store: store, completer: completer, now: time.Now}
}

// OnSessionExpired registers fn to run with the token of each session removed by
// the cleaner.
func (s *Service) OnSessionExpired(fn func(ctx context.Context, token string)) {
	s.expired = fn
}

// Upload replaces the session's document. Unsupported files leave the workspace
// untouched. When extraction fails the document is still stored with empty text
// and the extraction error is returned alongside the workspace.
func (s *Service) Upload(ctx context.Context, sessionID, filename string, data []byte) (*models.Workspace, error) {
	tag, err := extract.TypeFromFilename(filename)
	if err != nil {
		return nil, err
	}
	doc := &models.Document{
		FileName:   filepath.Base(filename),
		Type:       tag,
		MimeType:   http.DetectContentType(data),
		Size:       int64(len(data)),
		UploadedAt: s.now().UTC(),
	}

	text, extractErr := extract.Extract(data, tag)
	if extractErr != nil {
		log.Printf("extract %s (%s) for session %s: %v", doc.FileName, tag, sessionID, extractErr)
		text = ""
	}

	ws, err := s.store.Update(ctx, sessionID, func(ws *models.Workspace) error {
		ws.Document = doc
		ws.Text = text
		ws.Revision++
		ws.Summary = ""
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	debugLog("session %s stored %s revision=%d chars=%d", sessionID, doc.FileName, ws.Revision, len(text))
	return ws, extractErr
}

// Run executes op against the session's current text, which is empty until a
// document is uploaded. A blank question is rejected before the completer is
// called.
func (s *Service) Run(ctx context.Context, sessionID string, op prompt.Operation) (*models.Result, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	ws, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	text := prompt.Build(ws.Text, op)
	params := op.Params()
	start := s.now()
	content, err := s.completer.Complete(ctx, ai.Request{
		Prompt:      text,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	})
	s.recordOperation(ctx, sessionID, op.Kind, len(text), len(content), s.now().Sub(start), err)
	if err != nil {
		return nil, err
	}

	result := &models.Result{Kind: string(op.Kind), Content: content, CreatedAt: s.now().UTC()}
	if op.Kind == prompt.KindSummarize {
		s.storeSummary(ctx, sessionID, ws.Revision, content)
	}
	return result, nil
}

// storeSummary keeps the summary only if no newer document replaced the text it
// was generated from.
func (s *Service) storeSummary(ctx context.Context, sessionID string, revision int64, summary string) {
	_, err := s.store.Update(ctx, sessionID, func(ws *models.Workspace) error {
		if ws.Revision != revision {
			return errStaleRevision
		}
		ws.Summary = summary
		return nil
	})
	switch {
	case errors.Is(err, errStaleRevision):
		debugLog("session %s dropped summary for stale revision %d", sessionID, revision)
	case err != nil:
		log.Printf("store summary for session %s: %v", sessionID, err)
	}
}

// Summary returns the last generated summary.
func (s *Service) Summary(ctx context.Context, sessionID string) (string, error) {
	ws, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load workspace: %w", err)
	}
	if ws.Summary == "" {
		return "", ErrNoSummary
	}
	return ws.Summary, nil
}

// Workspace returns the session's current state.
func (s *Service) Workspace(ctx context.Context, sessionID string) (*models.Workspace, error) {
	ws, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	return ws, nil
}

// EndSession discards everything held for the session.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("drop workspace: %w", err)
	}
	return nil
}
