// Package ghcontents implements docstore.Store on top of the GitHub contents
// API. Every document lives under a single data directory of one repository
// and branch.
//
// Writes follow a read-before-write protocol: Update always fetches the
// current blob SHA and submits it with the new content, so GitHub only
// accepts the write if nobody committed in between the two calls. A caller
// that wants to detect edits made since it displayed the document passes the
// SHA it read as UpdateRequest.ExpectedSHA.
package ghcontents

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"vitrine/api/internal/docstore"
)

// DefaultTimeout is the HTTP timeout of calls to the GitHub API.
const DefaultTimeout = 30 * time.Second

// Config identifies the document store location and the service identity.
type Config struct {
	Owner   string
	Repo    string
	Branch  string
	DataDir string
	Token   string

	// BaseURL overrides https://api.github.com/ (tests, GitHub Enterprise).
	BaseURL string

	CommitterName  string
	CommitterEmail string

	// RequestsPerSecond throttles calls proactively. Zero disables throttling.
	RequestsPerSecond float64

	// Pattern selects listed documents; docstore.DefaultPattern when empty.
	Pattern string
}

// HasToken reports whether a credential is configured.
func (c Config) HasToken() bool {
	return strings.TrimSpace(c.Token) != ""
}

// Store is the API-based document store.
type Store struct {
	cfg     Config
	gh      *gh.Client
	limiter *RateLimiter
	logger  *slog.Logger
}

// New builds a Store. A missing token is not an error here: operations report
// it so that callers can still expose diagnostics.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if strings.TrimSpace(cfg.Owner) == "" || strings.TrimSpace(cfg.Repo) == "" {
		return nil, fmt.Errorf("ghcontents: owner and repo are required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout
	client := gh.NewClient(tc)

	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("ghcontents: parse base url: %w", err)
		}
		client.BaseURL = u
	}

	return &Store{
		cfg:     cfg,
		gh:      client,
		limiter: NewRateLimiter(cfg.RequestsPerSecond),
		logger:  logger,
	}, nil
}

// Config returns the configuration the store was built with.
func (s *Store) Config() Config {
	return s.cfg
}

// RateLimiter exposes the limiter state for diagnostics.
func (s *Store) RateLimiter() *RateLimiter {
	return s.limiter
}

func (s *Store) remotePath(p string) string {
	return path.Join(strings.Trim(s.cfg.DataDir, "/"), p)
}

func (s *Store) ref() *gh.RepositoryContentGetOptions {
	return &gh.RepositoryContentGetOptions{Ref: s.cfg.Branch}
}

func (s *Store) before(ctx context.Context, op string) error {
	if !s.cfg.HasToken() {
		return docstore.NewError(docstore.KindConfig, op, "", docstore.ErrMissingToken.Error(), docstore.ErrMissingToken)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return docstore.Upstream(op, "", fmt.Errorf("rate limit wait: %w", err))
	}
	return nil
}

// Get fetches a document and decodes its base64 transport encoding.
func (s *Store) Get(ctx context.Context, p string) (docstore.Document, error) {
	clean, err := docstore.CleanPath(p)
	if err != nil {
		return docstore.Document{}, err
	}
	if err := s.before(ctx, "get"); err != nil {
		return docstore.Document{}, err
	}

	file, _, resp, err := s.gh.Repositories.GetContents(ctx, s.cfg.Owner, s.cfg.Repo, s.remotePath(clean), s.ref())
	s.observe(resp)
	if err != nil {
		return docstore.Document{}, wrapError(err, "get", clean)
	}
	if file == nil {
		return docstore.Document{}, docstore.ClientError("get", clean+" is a directory, not a file")
	}

	content, err := file.GetContent()
	if err != nil {
		return docstore.Document{}, docstore.Upstream("get", clean, fmt.Errorf("decode content: %w", err))
	}
	return docstore.Document{Path: clean, Content: content, SHA: file.GetSHA()}, nil
}

// List returns the JSON file names directly under the data root or dir.
func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	if err := s.before(ctx, "list"); err != nil {
		return nil, err
	}
	clean := ""
	if strings.Trim(strings.TrimSpace(dir), "/") != "" {
		var err error
		if clean, err = docstore.CleanPath(dir); err != nil {
			return nil, err
		}
	}
	target := s.remotePath(clean)

	file, entries, resp, err := s.gh.Repositories.GetContents(ctx, s.cfg.Owner, s.cfg.Repo, target, s.ref())
	s.observe(resp)
	if err != nil {
		return nil, wrapError(err, "list", dir)
	}
	if file != nil {
		return nil, docstore.ClientError("list", target+" is a file, not a directory")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.GetType() != "file" {
			continue
		}
		names = append(names, entry.GetName())
	}
	return docstore.FilterNames(names, s.cfg.Pattern), nil
}

// Update re-reads the document to obtain its current SHA, then submits the
// new content as a conditional write. It never creates missing documents and
// never retries.
func (s *Store) Update(ctx context.Context, req docstore.UpdateRequest) (docstore.Commit, error) {
	clean, err := docstore.CleanPath(req.Path)
	if err != nil {
		return docstore.Commit{}, err
	}

	current, err := s.Get(ctx, clean)
	if err != nil {
		return docstore.Commit{}, err
	}
	if req.ExpectedSHA != "" && req.ExpectedSHA != current.SHA {
		return docstore.Commit{}, docstore.Conflict("update", clean, req.ExpectedSHA, current.SHA)
	}

	if err := s.before(ctx, "update"); err != nil {
		return docstore.Commit{}, err
	}

	message := req.Message
	if strings.TrimSpace(message) == "" {
		message = docstore.DefaultMessage(clean)
	}
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(message),
		Content: []byte(req.Content),
		SHA:     gh.Ptr(current.SHA),
	}
	if s.cfg.Branch != "" {
		opts.Branch = gh.Ptr(s.cfg.Branch)
	}
	if s.cfg.CommitterName != "" && s.cfg.CommitterEmail != "" {
		opts.Committer = &gh.CommitAuthor{
			Name:  gh.Ptr(s.cfg.CommitterName),
			Email: gh.Ptr(s.cfg.CommitterEmail),
		}
	}

	res, resp, err := s.gh.Repositories.UpdateFile(ctx, s.cfg.Owner, s.cfg.Repo, s.remotePath(clean), opts)
	s.observe(resp)
	if err != nil {
		return docstore.Commit{}, wrapError(err, "update", clean)
	}

	additions, deletions := docstore.DiffStat(current.Content, req.Content)
	commit := docstore.Commit{
		SHA:       res.Commit.GetSHA(),
		Path:      clean,
		Message:   message,
		Additions: additions,
		Deletions: deletions,
	}
	s.logger.Info("document updated",
		"path", clean,
		"commit", commit.SHA,
		"previous_sha", current.SHA,
		"additions", additions,
		"deletions", deletions,
	)
	return commit, nil
}

func (s *Store) observe(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	s.limiter.UpdateFromResponse(resp.Response)
}

var _ docstore.Store = (*Store)(nil)
