package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Outcomes of a recorded write.
const (
	OutcomeCommitted = "committed"
	OutcomeFailed    = "failed"
)

// Entry is one write attempt.
type Entry struct {
	ID        int64     `json:"id"`
	RequestID string    `json:"requestId"`
	Transport string    `json:"transport"`
	Action    string    `json:"action"`
	Path      string    `json:"path"`
	CommitSHA string    `json:"commitSha"`
	Message   string    `json:"message"`
	Additions int       `json:"additions"`
	Deletions int       `json:"deletions"`
	Outcome   string    `json:"outcome"`
	ErrorKind string    `json:"errorKind,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recorder writes entries to the content_commits table.
type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO content_commits
			(request_id, transport, action, path, commit_sha, message, additions, deletions, outcome, error_kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.RequestID, entry.Transport, entry.Action, entry.Path, entry.CommitSHA, entry.Message,
		entry.Additions, entry.Deletions, entry.Outcome, entry.ErrorKind)
	if err != nil {
		return fmt.Errorf("record content commit: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first. An empty path matches all.
func (r *Recorder) Recent(ctx context.Context, path string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, transport, action, path, commit_sha, message, additions, deletions, outcome, error_kind, created_at
		FROM content_commits
		WHERE ($1 = '' OR path = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, path, limit)
	if err != nil {
		return nil, fmt.Errorf("query content commits: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Transport, &e.Action, &e.Path, &e.CommitSHA, &e.Message,
			&e.Additions, &e.Deletions, &e.Outcome, &e.ErrorKind, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan content commit: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
