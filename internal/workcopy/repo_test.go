package workcopy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"vitrine/api/internal/docstore"
)

const testToken = "ghp_local"

// newRemote creates a bare repository on branch main holding files.
func newRemote(t *testing.T, files map[string]string) string {
	t.Helper()
	mainRef := plumbing.NewBranchReferenceName("main")
	remoteDir := filepath.Join(t.TempDir(), "remote.git")
	if _, err := git.PlainInitWithOptions(remoteDir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: mainRef},
		Bare:        true,
	}); err != nil {
		t.Fatalf("init remote: %v", err)
	}

	seedDir := t.TempDir()
	seed, err := git.PlainInitWithOptions(seedDir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: mainRef},
	})
	if err != nil {
		t.Fatalf("init seed: %v", err)
	}
	worktree, err := seed.Worktree()
	if err != nil {
		t.Fatalf("seed worktree: %v", err)
	}
	for name, content := range files {
		full := filepath.Join(seedDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write seed file: %v", err)
		}
		if _, err := worktree.Add(name); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	sig := &object.Signature{Name: "Seed", Email: "seed@vitrine.local", When: time.Now()}
	if _, err := worktree.Commit("seed content", &git.CommitOptions{Author: sig}); err != nil {
		t.Fatalf("seed commit: %v", err)
	}
	if _, err := seed.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{remoteDir}}); err != nil {
		t.Fatalf("create remote: %v", err)
	}
	if err := seed.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{"refs/heads/main:refs/heads/main"},
	}); err != nil {
		t.Fatalf("seed push: %v", err)
	}
	return remoteDir
}

func remoteFile(t *testing.T, remoteDir, name string) string {
	t.Helper()
	commit := remoteHead(t, remoteDir)
	file, err := commit.File(name)
	if err != nil {
		t.Fatalf("remote file %s: %v", name, err)
	}
	contents, err := file.Contents()
	if err != nil {
		t.Fatalf("remote contents: %v", err)
	}
	return contents
}

func remoteHead(t *testing.T, remoteDir string) *object.Commit {
	t.Helper()
	repo, err := git.PlainOpen(remoteDir)
	if err != nil {
		t.Fatalf("open remote: %v", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		t.Fatalf("remote ref: %v", err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("remote commit: %v", err)
	}
	return commit
}

func newRepo(t *testing.T, remoteDir string) *Repo {
	t.Helper()
	return New(Config{
		Dir:         filepath.Join(t.TempDir(), "wc"),
		RemoteURL:   remoteDir,
		Branch:      "main",
		DataDir:     "data",
		AuthorName:  "Vitrine Admin",
		AuthorEmail: "admin@vitrine.local",
	}, nil)
}

func seedFiles() map[string]string {
	return map[string]string{
		"data/contact.json": `{"contactInfo":{"email":"a@b.com"}}`,
		"data/gallery.json": `{"images":[],"categories":[]}`,
		"data/notes.txt":    "not listed",
		"README.md":         "# site",
	}
}

func TestSyncClonesThenLists(t *testing.T) {
	remote := newRemote(t, seedFiles())
	repo := newRepo(t, remote)
	ctx := context.Background()

	if repo.State() != StateAbsent {
		t.Fatalf("state = %s, want absent", repo.State())
	}
	if err := repo.Sync(ctx, testToken); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if repo.State() != StateSynced {
		t.Fatalf("state = %s, want synced", repo.State())
	}

	names, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 2 || names[0] != "contact.json" || names[1] != "gallery.json" {
		t.Fatalf("unexpected names: %v", names)
	}

	data, err := repo.Read(ctx, "contact.json")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	info := data.(map[string]any)["contactInfo"].(map[string]any)
	if info["email"] != "a@b.com" {
		t.Fatalf("unexpected contact: %v", data)
	}
}

func TestNewDetectsExistingWorkingCopy(t *testing.T) {
	remote := newRemote(t, seedFiles())
	repo := newRepo(t, remote)
	if err := repo.Sync(context.Background(), testToken); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	again := New(repo.Config(), nil)
	if again.State() != StateCloned {
		t.Fatalf("state = %s, want cloned", again.State())
	}
}

func TestOperationsRequireToken(t *testing.T) {
	remote := newRemote(t, seedFiles())
	repo := newRepo(t, remote)
	ctx := context.Background()

	err := repo.Sync(ctx, "")
	if docstore.KindOf(err) != docstore.KindConfig || !errors.Is(err, docstore.ErrMissingToken) {
		t.Fatalf("Sync() error = %v, want missing token", err)
	}
	if _, err := repo.Push(ctx, " "); !errors.Is(err, docstore.ErrMissingToken) {
		t.Fatalf("Push() error = %v, want missing token", err)
	}
	if repo.State() != StateAbsent {
		t.Fatalf("state changed without token: %s", repo.State())
	}
}

func TestReadBeforeSyncIsClientError(t *testing.T) {
	repo := newRepo(t, newRemote(t, seedFiles()))
	_, err := repo.Read(context.Background(), "contact.json")
	if docstore.KindOf(err) != docstore.KindClient {
		t.Fatalf("Read() error = %v, want client error", err)
	}
}

func TestReadMissingFile(t *testing.T) {
	repo := newRepo(t, newRemote(t, seedFiles()))
	ctx := context.Background()
	if err := repo.Sync(ctx, testToken); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if _, err := repo.Read(ctx, "missing.json"); !docstore.IsNotFound(err) {
		t.Fatalf("Read() error = %v, want not found", err)
	}
}

func TestWriteCommitsAndPushes(t *testing.T) {
	remote := newRemote(t, seedFiles())
	repo := newRepo(t, remote)
	ctx := context.Background()
	if err := repo.Sync(ctx, testToken); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	content := "{\n  \"images\": [],\n  \"categories\": [\n    \"Mariage\"\n  ]\n}\n"
	result, err := repo.Write(ctx, testToken, "gallery.json", []byte(content), "Add category")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if result.Commit == "" || !result.Pushed {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := remoteFile(t, remote, "data/gallery.json"); got != content {
		t.Fatalf("remote content = %q", got)
	}
	head := remoteHead(t, remote)
	if head.Message != "Add category" || head.Hash.String() != result.Commit {
		t.Fatalf("unexpected remote head: %s %q", head.Hash, head.Message)
	}
	if head.Author.Email != "admin@vitrine.local" {
		t.Fatalf("author = %s", head.Author.Email)
	}
	if repo.State() != StateSynced {
		t.Fatalf("state = %s, want synced", repo.State())
	}
}

func TestWritePushFailureKeepsLocalCommit(t *testing.T) {
	remote := newRemote(t, seedFiles())
	repo := newRepo(t, remote)
	ctx := context.Background()
	if err := repo.Sync(ctx, testToken); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if err := os.RemoveAll(remote); err != nil {
		t.Fatalf("remove remote: %v", err)
	}

	result, err := repo.Write(ctx, testToken, "contact.json", []byte(`{"contactInfo":{}}`), "Clear contact")
	var pushErr *PushError
	if !errors.As(err, &pushErr) {
		t.Fatalf("Write() error = %v, want *PushError", err)
	}
	if pushErr.Commit == "" || pushErr.Commit != result.Commit {
		t.Fatalf("push error commit = %q, result commit = %q", pushErr.Commit, result.Commit)
	}
	if result.Pushed {
		t.Fatal("expected unpushed result")
	}
	if repo.State() != StateStale {
		t.Fatalf("state = %s, want stale", repo.State())
	}
}

func TestRewriteAfterPushFailurePushesPendingCommit(t *testing.T) {
	remote := newRemote(t, seedFiles())
	repo := newRepo(t, remote)
	ctx := context.Background()
	if err := repo.Sync(ctx, testToken); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	moved := remote + ".offline"
	if err := os.Rename(remote, moved); err != nil {
		t.Fatalf("move remote: %v", err)
	}

	content := []byte(`{"contactInfo":{"email":"late@b.com"}}`)
	_, err := repo.Write(ctx, testToken, "contact.json", content, "Update contact")
	var pushErr *PushError
	if !errors.As(err, &pushErr) {
		t.Fatalf("Write() error = %v, want *PushError", err)
	}

	if err := os.Rename(moved, remote); err != nil {
		t.Fatalf("restore remote: %v", err)
	}
	result, err := repo.Write(ctx, testToken, "contact.json", content, "Update contact")
	if err != nil {
		t.Fatalf("second Write() error = %v", err)
	}
	if !result.Pushed || result.Commit != pushErr.Commit {
		t.Fatalf("result = %+v, want pushed commit %s", result, pushErr.Commit)
	}
	if got := remoteHead(t, remote).Hash.String(); got != pushErr.Commit {
		t.Fatalf("remote head = %s, want %s", got, pushErr.Commit)
	}
	if repo.State() != StateSynced {
		t.Fatalf("state = %s, want synced", repo.State())
	}
}

func TestRewriteUnchangedWhileSyncedIsNoop(t *testing.T) {
	remote := newRemote(t, seedFiles())
	repo := newRepo(t, remote)
	ctx := context.Background()
	if err := repo.Sync(ctx, testToken); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	current, err := os.ReadFile(filepath.Join(repo.Config().Dir, "data", "contact.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	result, err := repo.Write(ctx, testToken, "contact.json", current, "")
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if result.Commit != "" || result.Pushed {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCommitWithoutChanges(t *testing.T) {
	remote := newRemote(t, seedFiles())
	repo := newRepo(t, remote)
	ctx := context.Background()
	if err := repo.Sync(ctx, testToken); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	before := remoteHead(t, remote).Hash

	result, err := repo.Commit(ctx, testToken, "Nothing")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if result.Message != "Aucun changement à commiter" || result.FilesChanged != 0 || result.Commit != "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if remoteHead(t, remote).Hash != before {
		t.Fatal("remote moved on empty commit")
	}
}

func TestCommitThenPush(t *testing.T) {
	remote := newRemote(t, seedFiles())
	repo := newRepo(t, remote)
	ctx := context.Background()
	if err := repo.Sync(ctx, testToken); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	dir := repo.Config().Dir
	if err := os.WriteFile(filepath.Join(dir, "data", "testimonials.json"), []byte(`{"testimonials":[]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	result, err := repo.Commit(ctx, testToken, "Add testimonials")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if result.FilesChanged != 1 || result.Commit == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if repo.State() != StateStale {
		t.Fatalf("state = %s, want stale", repo.State())
	}

	pushed, err := repo.Push(ctx, testToken)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if pushed.Message != ChangesPushed {
		t.Fatalf("push message = %q", pushed.Message)
	}
	if got := remoteFile(t, remote, "data/testimonials.json"); got != `{"testimonials":[]}` {
		t.Fatalf("remote content = %q", got)
	}

	again, err := repo.Push(ctx, testToken)
	if err != nil {
		t.Fatalf("second Push() error = %v", err)
	}
	if again.Message != AlreadyUpToDate {
		t.Fatalf("second push message = %q", again.Message)
	}
}

func TestSyncDiscardsLocalDivergence(t *testing.T) {
	remote := newRemote(t, seedFiles())
	first := newRepo(t, remote)
	second := newRepo(t, remote)
	ctx := context.Background()
	for _, repo := range []*Repo{first, second} {
		if err := repo.Sync(ctx, testToken); err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
	}

	if _, err := second.Write(ctx, testToken, "contact.json", []byte(`{"contactInfo":{"email":"new@b.com"}}`), "Update contact"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	dir := first.Config().Dir
	if err := os.WriteFile(filepath.Join(dir, "data", "contact.json"), []byte("local edit"), 0o644); err != nil {
		t.Fatalf("local edit: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data", "scratch.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("untracked file: %v", err)
	}

	if err := first.Sync(ctx, testToken); err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	doc, err := first.Store(testToken).Get(ctx, "contact.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Content != `{"contactInfo":{"email":"new@b.com"}}` {
		t.Fatalf("content after sync = %q", doc.Content)
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "scratch.json")); !os.IsNotExist(err) {
		t.Fatalf("untracked file survived sync: %v", err)
	}
}
