// Package ghfake serves an in-memory subset of the GitHub contents API for tests.
package ghfake

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"

	"vitrine/api/internal/docstore"
)

// Server is a fake GitHub API bound to one repository.
type Server struct {
	*httptest.Server

	Owner string
	Repo  string
	// Token, when set, is the only bearer credential accepted.
	Token string

	mu      sync.Mutex
	files   map[string]string
	commits []Commit

	// BeforeWrite runs before a PUT is checked against the current SHA,
	// letting tests slip in a concurrent change.
	BeforeWrite func(path string)
}

// Commit is a write accepted by the fake.
type Commit struct {
	SHA       string
	Path      string
	Message   string
	Branch    string
	Committer string
}

// New starts a fake server. Callers must Close it.
func New(owner, repo, token string) *Server {
	s := &Server{Owner: owner, Repo: repo, Token: token, files: make(map[string]string)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Put seeds a file at its full repository path.
func (s *Server) Put(fullPath, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[fullPath] = content
}

// Content returns the stored content of fullPath.
func (s *Server) Content(fullPath string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.files[fullPath]
	return c, ok
}

// Commits returns the accepted writes, oldest first.
func (s *Server) Commits() []Commit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Commit(nil), s.commits...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", "4999")

	if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
		writeMessage(w, http.StatusUnauthorized, "Bad credentials")
		return
	}

	prefix := fmt.Sprintf("/repos/%s/%s/contents", s.Owner, s.Repo)
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	p := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")

	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, p)
	case http.MethodPut:
		s.handlePut(w, r, p)
	default:
		writeMessage(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *Server) handleGet(w http.ResponseWriter, p string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if content, ok := s.files[p]; ok {
		writeJSON(w, http.StatusOK, fileJSON(p, content))
		return
	}

	prefix := ""
	if p != "" {
		prefix = p + "/"
	}
	seen := make(map[string]bool)
	var entries []map[string]any
	for full := range s.files {
		if !strings.HasPrefix(full, prefix) {
			continue
		}
		rest := strings.TrimPrefix(full, prefix)
		name, _, nested := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		if nested {
			entries = append(entries, map[string]any{"type": "dir", "name": name, "path": path.Join(p, name)})
			continue
		}
		entry := fileJSON(full, s.files[full])
		delete(entry, "content")
		delete(entry, "encoding")
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i]["name"].(string) < entries[j]["name"].(string) })
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, p string) {
	var body struct {
		Message   string `json:"message"`
		Content   []byte `json:"content"`
		SHA       string `json:"sha"`
		Branch    string `json:"branch"`
		Committer *struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"committer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Problems parsing JSON")
		return
	}

	if s.BeforeWrite != nil {
		s.BeforeWrite(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.files[p]
	if exists {
		if body.SHA == "" {
			writeMessage(w, http.StatusUnprocessableEntity, `Invalid request.\n\n"sha" wasn't supplied.`)
			return
		}
		if currentSHA := docstore.BlobSHA(current); body.SHA != currentSHA {
			writeMessage(w, http.StatusConflict, fmt.Sprintf("%s does not match %s", p, body.SHA))
			return
		}
	}

	s.files[p] = string(body.Content)
	sum := sha1.Sum([]byte(fmt.Sprintf("%d:%s:%s", len(s.commits), p, body.Content)))
	commit := Commit{SHA: hex.EncodeToString(sum[:]), Path: p, Message: body.Message, Branch: body.Branch}
	if body.Committer != nil {
		commit.Committer = body.Committer.Name + " <" + body.Committer.Email + ">"
	}
	s.commits = append(s.commits, commit)

	status := http.StatusOK
	if !exists {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"content": fileJSON(p, string(body.Content)),
		"commit":  map[string]any{"sha": commit.SHA, "message": commit.Message},
	})
}

func fileJSON(p, content string) map[string]any {
	return map[string]any{
		"type":     "file",
		"name":     path.Base(p),
		"path":     p,
		"sha":      docstore.BlobSHA(content),
		"size":     len(content),
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte(content)),
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
