package workcopy

import (
	"context"
	"errors"
	"os"

	"vitrine/api/internal/docstore"
)

// Store exposes a Repo as a docstore.Store bound to one credential.
type Store struct {
	repo  *Repo
	token string
}

// Store returns the document store view of r for token.
func (r *Repo) Store(token string) *Store {
	return &Store{repo: r, token: token}
}

// Sync makes the working copy match the remote branch.
func (s *Store) Sync(ctx context.Context) error {
	return s.repo.Sync(ctx, s.token)
}

// Get reads a document from the working copy. The SHA is the git blob hash
// of the content, as the contents API reports it.
func (s *Store) Get(_ context.Context, name string) (docstore.Document, error) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()
	return s.repo.readLocked("get", name)
}

func (s *Store) List(_ context.Context, dir string) ([]string, error) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()
	return s.repo.listLocked(dir)
}

// Update rewrites an existing document, then commits and pushes it. A
// failed push is returned as a *PushError and the commit stays local.
func (s *Store) Update(ctx context.Context, req docstore.UpdateRequest) (docstore.Commit, error) {
	if err := requireToken("update", s.token); err != nil {
		return docstore.Commit{}, err
	}
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()

	current, err := s.repo.readLocked("update", req.Path)
	if err != nil {
		return docstore.Commit{}, err
	}
	if req.ExpectedSHA != "" && req.ExpectedSHA != current.SHA {
		return docstore.Commit{}, docstore.Conflict("update", current.Path, req.ExpectedSHA, current.SHA)
	}

	message := req.Message
	if message == "" {
		message = docstore.DefaultMessage(current.Path)
	}
	result, err := s.repo.writeLocked(ctx, s.token, current.Path, []byte(req.Content), message)
	if err != nil {
		var pushErr *PushError
		if !errors.As(err, &pushErr) {
			// Restore the file so the next write starts from the committed tree.
			_ = os.WriteFile(s.repo.filePath(current.Path), []byte(current.Content), 0o644)
		}
		return docstore.Commit{}, err
	}

	additions, deletions := docstore.DiffStat(current.Content, req.Content)
	return docstore.Commit{
		SHA:       result.Commit,
		Path:      current.Path,
		Message:   message,
		Additions: additions,
		Deletions: deletions,
	}, nil
}
