package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"vitrine/api/internal/audit"
	"vitrine/api/internal/config"
	"vitrine/api/internal/docstore"
	"vitrine/api/internal/workcopy"
)

// Auditor records content writes. The Postgres recorder implements it.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
	Recent(ctx context.Context, path string, limit int) ([]audit.Entry, error)
}

// Diagnostics is the non-secret configuration echoed by the content dispatcher.
type Diagnostics struct {
	Owner        string `json:"owner"`
	Repo         string `json:"repo"`
	Branch       string `json:"branch"`
	DataDir      string `json:"dataDir"`
	HasToken     bool   `json:"hasToken"`
	TokenPreview string `json:"tokenPreview"`
	Stack        string `json:"stack,omitempty"`
}

// Service sits between the dispatchers and the two document transports.
type Service struct {
	cfg     config.Config
	store   docstore.Store
	repo    *workcopy.Repo
	auditor Auditor
	checks  map[string]func(context.Context) error
	logger  *slog.Logger
}

// New builds the service. store serves the content dispatcher and repo the
// working-copy dispatcher; either may be nil when not configured.
func New(cfg config.Config, store docstore.Store, repo *workcopy.Repo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		cfg:    cfg,
		store:  store,
		repo:   repo,
		checks: make(map[string]func(context.Context) error),
		logger: logger,
	}
}

// SetAuditor enables the commit audit log.
func (s *Service) SetAuditor(auditor Auditor) {
	s.auditor = auditor
}

// AddCheck registers a readiness check reported by /api/ready.
func (s *Service) AddCheck(name string, check func(context.Context) error) {
	s.checks[name] = check
}

func (s *Service) Diagnostics() Diagnostics {
	return Diagnostics{
		Owner:        s.cfg.GitHubOwner,
		Repo:         s.cfg.GitHubRepo,
		Branch:       s.cfg.GitHubBranch,
		DataDir:      s.cfg.GitHubDataDir,
		HasToken:     strings.TrimSpace(s.cfg.GitHubToken) != "",
		TokenPreview: MaskToken(s.cfg.GitHubToken),
	}
}

// Ready runs every registered check and returns the failures by name.
func (s *Service) Ready(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}

func (s *Service) contentStore() (docstore.Store, error) {
	if s.store == nil {
		return nil, docstore.NewError(docstore.KindConfig, "content", "", "content store is not configured", nil)
	}
	return s.store, nil
}

func (s *Service) workingCopy() (*workcopy.Repo, error) {
	if s.repo == nil {
		return nil, docstore.NewError(docstore.KindConfig, "git", "", "working copy is not configured", nil)
	}
	return s.repo, nil
}

func (s *Service) ListDocuments(ctx context.Context, dir string) ([]string, error) {
	store, err := s.contentStore()
	if err != nil {
		return nil, err
	}
	return store.List(ctx, dir)
}

func (s *Service) GetDocument(ctx context.Context, path string) (docstore.Document, error) {
	store, err := s.contentStore()
	if err != nil {
		return docstore.Document{}, err
	}
	return store.Get(ctx, path)
}

// UpdateDocument writes through the content store and records the attempt.
func (s *Service) UpdateDocument(ctx context.Context, req docstore.UpdateRequest) (docstore.Commit, error) {
	store, err := s.contentStore()
	if err != nil {
		return docstore.Commit{}, err
	}
	commit, err := store.Update(ctx, req)
	entry := audit.Entry{Transport: "api", Action: "update", Path: req.Path, Message: req.Message}
	if err != nil {
		s.logger.Warn("document update failed", "path", req.Path, "kind", docstore.KindOf(err), "error", err)
	} else {
		s.logger.Info("document updated", "path", commit.Path, "commit", commit.SHA)
		entry.Path = commit.Path
		entry.Message = commit.Message
	}
	s.record(ctx, entry, commit.SHA, commit.Additions, commit.Deletions, err)
	return commit, err
}

func (s *Service) SyncWorkCopy(ctx context.Context, token string) error {
	repo, err := s.workingCopy()
	if err != nil {
		return err
	}
	if err := repo.Sync(ctx, token); err != nil {
		return err
	}
	s.invalidate(ctx, "sync")
	return nil
}

func (s *Service) ListWorkCopy(ctx context.Context) ([]string, error) {
	repo, err := s.workingCopy()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx)
}

func (s *Service) ReadWorkCopy(ctx context.Context, name string) (any, error) {
	repo, err := s.workingCopy()
	if err != nil {
		return nil, err
	}
	return repo.Read(ctx, name)
}

func (s *Service) WriteWorkCopy(ctx context.Context, token, name string, content []byte, message string) (workcopy.WriteResult, error) {
	repo, err := s.workingCopy()
	if err != nil {
		return workcopy.WriteResult{}, err
	}
	result, err := repo.Write(ctx, token, name, content, message)
	if result.Commit != "" || err != nil {
		s.record(ctx, audit.Entry{Transport: "workcopy", Action: "write", Path: name, Message: message}, result.Commit, 0, 0, err)
	}
	if result.Pushed {
		s.invalidate(ctx, "write")
	}
	return result, err
}

func (s *Service) CommitWorkCopy(ctx context.Context, token, message string) (workcopy.CommitResult, error) {
	repo, err := s.workingCopy()
	if err != nil {
		return workcopy.CommitResult{}, err
	}
	result, err := repo.Commit(ctx, token, message)
	if result.Commit != "" || err != nil {
		s.record(ctx, audit.Entry{Transport: "workcopy", Action: "commit", Message: message}, result.Commit, 0, 0, err)
	}
	return result, err
}

func (s *Service) PushWorkCopy(ctx context.Context, token string) (workcopy.PushResult, error) {
	repo, err := s.workingCopy()
	if err != nil {
		return workcopy.PushResult{}, err
	}
	result, err := repo.Push(ctx, token)
	if err != nil {
		return result, err
	}
	s.invalidate(ctx, "push")
	return result, nil
}

// flusher is implemented by stores that cache remote reads.
type flusher interface {
	Flush(ctx context.Context) error
}

// invalidate drops cached reads of the content store after the working copy
// moved the remote branch.
func (s *Service) invalidate(ctx context.Context, op string) {
	cached, ok := s.store.(flusher)
	if !ok {
		return
	}
	if err := cached.Flush(ctx); err != nil {
		s.logger.Warn("cache flush failed", "op", op, "error", err)
	}
}

// History returns recent audit entries, or an empty list without an auditor.
func (s *Service) History(ctx context.Context, path string, limit int) ([]audit.Entry, error) {
	if s.auditor == nil {
		return []audit.Entry{}, nil
	}
	entries, err := s.auditor.Recent(ctx, path, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return entries, nil
}

func (s *Service) record(ctx context.Context, entry audit.Entry, sha string, additions, deletions int, writeErr error) {
	if s.auditor == nil {
		return
	}
	entry.RequestID = requestIDFrom(ctx)
	entry.CommitSHA = sha
	entry.Additions = additions
	entry.Deletions = deletions
	entry.Outcome = audit.OutcomeCommitted
	if writeErr != nil {
		entry.Outcome = audit.OutcomeFailed
		entry.ErrorKind = string(docstore.KindOf(writeErr))
		var pushErr *workcopy.PushError
		if errors.As(writeErr, &pushErr) {
			entry.CommitSHA = pushErr.Commit
		}
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", "path", entry.Path, "error", err)
	}
}

// MaskToken returns a preview showing at most the first and last four
// characters of token. Tokens too short to hide anything are fully masked.
func MaskToken(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}
