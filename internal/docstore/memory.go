package docstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. Version tokens are git blob hashes of
// the content, so identical content always has the same SHA.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string]Document
	commits []Commit
	pattern string

	// BeforeUpdate, when set, runs before every write and aborts it on error.
	BeforeUpdate func(req UpdateRequest) error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document), pattern: DefaultPattern}
}

// Put seeds or replaces a document without recording a commit.
func (m *MemoryStore) Put(path, content string) Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := Document{Path: path, Content: content, SHA: BlobSHA(content)}
	m.docs[path] = doc
	return doc
}

// Commits returns a copy of the commit log, oldest first.
func (m *MemoryStore) Commits() []Commit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Commit(nil), m.commits...)
}

func (m *MemoryStore) Get(_ context.Context, path string) (Document, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[clean]
	if !ok {
		return Document{}, NotFound("get", clean)
	}
	return doc, nil
}

func (m *MemoryStore) List(_ context.Context, dir string) ([]string, error) {
	prefix := ""
	if strings.Trim(strings.TrimSpace(dir), "/") != "" {
		clean, err := CleanPath(dir)
		if err != nil {
			return nil, err
		}
		prefix = clean + "/"
	}
	m.mu.Lock()
	names := make([]string, 0, len(m.docs))
	for path := range m.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		names = append(names, rest)
	}
	m.mu.Unlock()
	sort.Strings(names)
	return FilterNames(names, m.pattern), nil
}

func (m *MemoryStore) Update(_ context.Context, req UpdateRequest) (Commit, error) {
	clean, err := CleanPath(req.Path)
	if err != nil {
		return Commit{}, err
	}
	if m.BeforeUpdate != nil {
		if err := m.BeforeUpdate(req); err != nil {
			return Commit{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.docs[clean]
	if !ok {
		return Commit{}, NotFound("update", clean)
	}
	if req.ExpectedSHA != "" && req.ExpectedSHA != current.SHA {
		return Commit{}, Conflict("update", clean, req.ExpectedSHA, current.SHA)
	}

	message := req.Message
	if message == "" {
		message = DefaultMessage(clean)
	}
	additions, deletions := DiffStat(current.Content, req.Content)
	m.docs[clean] = Document{Path: clean, Content: req.Content, SHA: BlobSHA(req.Content)}

	parent := ""
	if len(m.commits) > 0 {
		parent = m.commits[len(m.commits)-1].SHA
	}
	sum := sha1.Sum([]byte(fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%d", parent, clean, message, req.Content, len(m.commits))))
	commit := Commit{
		SHA:       hex.EncodeToString(sum[:]),
		Path:      clean,
		Message:   message,
		Additions: additions,
		Deletions: deletions,
	}
	m.commits = append(m.commits, commit)
	return commit, nil
}

// BlobSHA returns the git object hash of content stored as a blob.
func BlobSHA(content string) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

var _ Store = (*MemoryStore)(nil)
