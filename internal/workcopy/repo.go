// Package workcopy reaches the content repository through a local clone:
// sync, read and write files on disk, then commit and push with go-git.
//
// The working copy is ephemeral. Sync always makes it match the remote
// branch, discarding local divergence.
package workcopy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"vitrine/api/internal/docstore"
)

// Messages returned to callers of Commit and Push.
const (
	NothingToCommit = "Aucun changement à commiter"
	ChangesPushed   = "Changements poussés"
	AlreadyUpToDate = "Déjà à jour"
)

// State of the working copy.
type State string

const (
	// StateAbsent: no working copy on disk.
	StateAbsent State = "absent"
	// StateCloned: a working copy exists but this process has not synced it.
	StateCloned State = "cloned"
	// StateStale: local commits have not reached the remote.
	StateStale State = "stale"
	// StateSynced: the working copy matches the remote tip.
	StateSynced State = "synced"
)

// Config locates the working copy and its remote.
type Config struct {
	Dir       string
	RemoteURL string
	Branch    string
	DataDir   string

	AuthorName  string
	AuthorEmail string

	// Depth of the initial clone; zero clones the full history.
	Depth int

	// Pattern selects listed documents; docstore.DefaultPattern when empty.
	Pattern string
}

// CommitResult is returned by Commit.
type CommitResult struct {
	Message      string `json:"message"`
	FilesChanged int    `json:"filesChanged"`
	Commit       string `json:"commit,omitempty"`
}

// PushResult is returned by Push.
type PushResult struct {
	Message string `json:"message"`
}

// WriteResult is returned by Write.
type WriteResult struct {
	Commit string `json:"commit,omitempty"`
	Pushed bool   `json:"pushed"`
}

// PushError reports a commit that was created locally but could not be
// pushed. Retrying Push alone is enough to recover.
type PushError struct {
	Commit string
	Err    error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("commit %s created locally but push failed: %v", shortHash(e.Commit), e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}

// Repo manages one working copy. Operations are serialized.
type Repo struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// New prepares a Repo. Nothing is cloned until Sync.
func New(cfg Config, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	r := &Repo{cfg: cfg, logger: logger, state: StateAbsent}
	if _, err := os.Stat(filepath.Join(cfg.Dir, ".git")); err == nil {
		r.state = StateCloned
	}
	return r
}

// State returns the current working copy state.
func (r *Repo) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Config returns the configuration of the working copy.
func (r *Repo) Config() Config {
	return r.cfg
}

// Sync clones the remote branch when there is no working copy yet, otherwise
// fetches and hard-resets to the remote tracking branch.
func (r *Repo) Sync(ctx context.Context, token string) error {
	if err := requireToken("sync", token); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncLocked(ctx, token)
}

func (r *Repo) syncLocked(ctx context.Context, token string) error {
	auth := r.auth(token)
	branchRef := plumbing.NewBranchReferenceName(r.cfg.Branch)

	if r.state == StateAbsent {
		if err := os.MkdirAll(filepath.Dir(r.cfg.Dir), 0o755); err != nil {
			return docstore.Upstream("sync", "", fmt.Errorf("create parent dir: %w", err))
		}
		_, err := git.PlainCloneContext(ctx, r.cfg.Dir, false, &git.CloneOptions{
			URL:           r.cfg.RemoteURL,
			Auth:          auth,
			ReferenceName: branchRef,
			SingleBranch:  true,
			Depth:         r.cfg.Depth,
		})
		if err != nil {
			return docstore.Upstream("sync", "", fmt.Errorf("clone %s: %w", r.cfg.Branch, err))
		}
		r.state = StateSynced
		r.logger.Info("working copy cloned", "dir", r.cfg.Dir, "branch", r.cfg.Branch, "depth", r.cfg.Depth)
		return nil
	}

	repo, err := git.PlainOpen(r.cfg.Dir)
	if err != nil {
		return docstore.Upstream("sync", "", fmt.Errorf("open working copy: %w", err))
	}
	err = repo.FetchContext(ctx, &git.FetchOptions{RemoteName: "origin", Auth: auth, Force: true})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return docstore.Upstream("sync", "", fmt.Errorf("fetch: %w", err))
	}
	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", r.cfg.Branch), true)
	if err != nil {
		return docstore.Upstream("sync", "", fmt.Errorf("resolve origin/%s: %w", r.cfg.Branch, err))
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return docstore.Upstream("sync", "", fmt.Errorf("open worktree: %w", err))
	}
	if err := worktree.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return docstore.Upstream("sync", "", fmt.Errorf("reset to origin/%s: %w", r.cfg.Branch, err))
	}
	if err := worktree.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return docstore.Upstream("sync", "", fmt.Errorf("clean worktree: %w", err))
	}

	r.state = StateSynced
	r.logger.Info("working copy reset to remote", "dir", r.cfg.Dir, "head", remoteRef.Hash().String())
	return nil
}

// List returns the JSON document names in the data directory.
func (r *Repo) List(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked("")
}

func (r *Repo) listLocked(dir string) ([]string, error) {
	if err := r.requireWorkingCopy("list"); err != nil {
		return nil, err
	}
	target := r.dataPath()
	if dir = strings.Trim(dir, "/"); dir != "" {
		clean, err := docstore.CleanPath(dir)
		if err != nil {
			return nil, err
		}
		target = r.filePath(clean)
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, docstore.NotFound("list", path.Join(r.cfg.DataDir, dir))
		}
		return nil, docstore.Upstream("list", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return docstore.FilterNames(names, r.cfg.Pattern), nil
}

// Read parses a JSON document from the working copy. It does not sync.
func (r *Repo) Read(_ context.Context, name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.readLocked("read", name)
	if err != nil {
		return nil, err
	}
	var data any
	if err := json.Unmarshal([]byte(doc.Content), &data); err != nil {
		return nil, docstore.NewError(docstore.KindUpstream, "read", doc.Path, fmt.Sprintf("%s is not valid JSON: %v", doc.Path, err), err)
	}
	return data, nil
}

func (r *Repo) readLocked(op, name string) (docstore.Document, error) {
	if err := r.requireWorkingCopy(op); err != nil {
		return docstore.Document{}, err
	}
	clean, err := docstore.CleanPath(name)
	if err != nil {
		return docstore.Document{}, err
	}
	raw, err := os.ReadFile(r.filePath(clean))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return docstore.Document{}, docstore.NotFound(op, clean)
		}
		return docstore.Document{}, docstore.Upstream(op, clean, err)
	}
	content := string(raw)
	return docstore.Document{Path: clean, Content: content, SHA: docstore.BlobSHA(content)}, nil
}

// Write stores one file, commits only that file and pushes it. When the
// commit succeeds but the push fails, the result carries the local commit
// and the error is a *PushError.
func (r *Repo) Write(ctx context.Context, token, name string, content []byte, message string) (WriteResult, error) {
	if err := requireToken("write", token); err != nil {
		return WriteResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireWorkingCopy("write"); err != nil {
		return WriteResult{}, err
	}
	clean, err := docstore.CleanPath(name)
	if err != nil {
		return WriteResult{}, err
	}
	return r.writeLocked(ctx, token, clean, content, message)
}

func (r *Repo) writeLocked(ctx context.Context, token, clean string, content []byte, message string) (WriteResult, error) {
	full := r.filePath(clean)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return WriteResult{}, docstore.Upstream("write", clean, fmt.Errorf("create dir: %w", err))
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return WriteResult{}, docstore.Upstream("write", clean, fmt.Errorf("write file: %w", err))
	}

	repo, worktree, err := r.open("write")
	if err != nil {
		return WriteResult{}, err
	}
	if _, err := worktree.Add(r.relPath(clean)); err != nil {
		return WriteResult{}, docstore.Upstream("write", clean, fmt.Errorf("git add: %w", err))
	}
	if strings.TrimSpace(message) == "" {
		message = docstore.DefaultMessage(clean)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{Author: r.signature()})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return r.pushPendingLocked(ctx, repo, token)
		}
		return WriteResult{}, docstore.Upstream("commit", clean, fmt.Errorf("commit: %w", err))
	}
	r.state = StateStale
	r.logger.Info("document committed", "path", clean, "commit", hash.String())

	result := WriteResult{Commit: hash.String()}
	if _, err := r.pushLocked(ctx, repo, token); err != nil {
		return result, &PushError{Commit: hash.String(), Err: err}
	}
	result.Pushed = true
	return result, nil
}

// pushPendingLocked handles a write that changed nothing. Earlier commits
// left unpushed by a failed push are pushed now.
func (r *Repo) pushPendingLocked(ctx context.Context, repo *git.Repository, token string) (WriteResult, error) {
	if r.state != StateStale {
		return WriteResult{}, nil
	}
	head, err := repo.Head()
	if err != nil {
		return WriteResult{}, docstore.Upstream("write", "", fmt.Errorf("resolve head: %w", err))
	}
	result := WriteResult{Commit: head.Hash().String()}
	if _, err := r.pushLocked(ctx, repo, token); err != nil {
		return result, &PushError{Commit: result.Commit, Err: err}
	}
	result.Pushed = true
	return result, nil
}

// Commit stages every pending change and commits it. A clean working copy
// is not an error: the result reports NothingToCommit and nothing is pushed.
func (r *Repo) Commit(_ context.Context, token, message string) (CommitResult, error) {
	if err := requireToken("commit", token); err != nil {
		return CommitResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireWorkingCopy("commit"); err != nil {
		return CommitResult{}, err
	}

	_, worktree, err := r.open("commit")
	if err != nil {
		return CommitResult{}, err
	}
	status, err := worktree.Status()
	if err != nil {
		return CommitResult{}, docstore.Upstream("commit", "", fmt.Errorf("git status: %w", err))
	}
	changed := 0
	for _, fileStatus := range status {
		if fileStatus.Staging != git.Unmodified || fileStatus.Worktree != git.Unmodified {
			changed++
		}
	}
	if changed == 0 {
		return CommitResult{Message: NothingToCommit}, nil
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return CommitResult{}, docstore.Upstream("commit", "", fmt.Errorf("git add: %w", err))
	}
	if strings.TrimSpace(message) == "" {
		message = "Update content"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{Author: r.signature()})
	if err != nil {
		return CommitResult{}, docstore.Upstream("commit", "", fmt.Errorf("commit: %w", err))
	}
	r.state = StateStale
	r.logger.Info("changes committed", "commit", hash.String(), "files", changed)
	return CommitResult{Message: message, FilesChanged: changed, Commit: hash.String()}, nil
}

// Push sends local commits of the tracked branch to the remote.
func (r *Repo) Push(ctx context.Context, token string) (PushResult, error) {
	if err := requireToken("push", token); err != nil {
		return PushResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireWorkingCopy("push"); err != nil {
		return PushResult{}, err
	}
	repo, _, err := r.open("push")
	if err != nil {
		return PushResult{}, err
	}
	result, err := r.pushLocked(ctx, repo, token)
	if err != nil {
		return PushResult{}, docstore.Upstream("push", "", err)
	}
	return result, nil
}

func (r *Repo) pushLocked(ctx context.Context, repo *git.Repository, token string) (PushResult, error) {
	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", r.cfg.Branch, r.cfg.Branch))
	err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		Auth:       r.auth(token),
		RefSpecs:   []config.RefSpec{refSpec},
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		r.state = StateSynced
		return PushResult{Message: AlreadyUpToDate}, nil
	}
	if err != nil {
		r.logger.Warn("push failed", "branch", r.cfg.Branch, "error", err)
		return PushResult{}, fmt.Errorf("push %s: %w", r.cfg.Branch, err)
	}
	r.state = StateSynced
	r.logger.Info("branch pushed", "branch", r.cfg.Branch)
	return PushResult{Message: ChangesPushed}, nil
}

func (r *Repo) open(op string) (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpen(r.cfg.Dir)
	if err != nil {
		return nil, nil, docstore.Upstream(op, "", fmt.Errorf("open working copy: %w", err))
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, nil, docstore.Upstream(op, "", fmt.Errorf("open worktree: %w", err))
	}
	return repo, worktree, nil
}

func (r *Repo) requireWorkingCopy(op string) error {
	if r.state == StateAbsent {
		return docstore.ClientError(op, "working copy is not synced, run sync first")
	}
	return nil
}

func (r *Repo) auth(token string) transport.AuthMethod {
	if strings.HasPrefix(r.cfg.RemoteURL, "https://") || strings.HasPrefix(r.cfg.RemoteURL, "http://") {
		return &githttp.BasicAuth{Username: "x-access-token", Password: token}
	}
	return nil
}

func (r *Repo) signature() *object.Signature {
	name := r.cfg.AuthorName
	if name == "" {
		name = "Vitrine Admin"
	}
	email := r.cfg.AuthorEmail
	if email == "" {
		email = "admin@vitrine.local"
	}
	return &object.Signature{Name: name, Email: email, When: time.Now()}
}

func (r *Repo) dataPath() string {
	return filepath.Join(r.cfg.Dir, filepath.FromSlash(strings.Trim(r.cfg.DataDir, "/")))
}

func (r *Repo) relPath(clean string) string {
	return path.Join(strings.Trim(r.cfg.DataDir, "/"), clean)
}

func (r *Repo) filePath(clean string) string {
	return filepath.Join(r.cfg.Dir, filepath.FromSlash(r.relPath(clean)))
}

func requireToken(op, token string) error {
	if strings.TrimSpace(token) == "" {
		return docstore.NewError(docstore.KindConfig, op, "", docstore.ErrMissingToken.Error(), docstore.ErrMissingToken)
	}
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
