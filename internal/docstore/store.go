// Package docstore defines the document store contract shared by every
// transport that reaches the content repository.
//
// A document is a UTF-8 blob (conventionally JSON) identified by a path
// relative to the data directory and versioned by an opaque SHA. Stores read
// and write documents in full; there is no field-level update.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern selects the documents returned by List.
const DefaultPattern = "*.json"

// Document is a remote document with the version token of its last read.
type Document struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

// Commit is the record produced by a successful write.
type Commit struct {
	SHA       string `json:"sha"`
	Path      string `json:"path"`
	Message   string `json:"message"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// UpdateRequest describes a full-document write.
//
// When ExpectedSHA is empty the store re-reads the current SHA right before
// writing and the last writer wins. When it is set, the write is refused with
// a Conflict error if the document moved since the caller read it.
type UpdateRequest struct {
	Path        string
	Content     string
	Message     string
	ExpectedSHA string
}

// Store is implemented by every document transport.
type Store interface {
	// Get fetches a document and its current version token.
	Get(ctx context.Context, path string) (Document, error)

	// List returns the names of the JSON documents directly under dir
	// (the data root when dir is empty).
	List(ctx context.Context, dir string) ([]string, error)

	// Update writes a new version of an existing document. It never creates
	// a document that does not exist yet.
	Update(ctx context.Context, req UpdateRequest) (Commit, error)
}

// Syncer is implemented by stores backed by a local working copy.
type Syncer interface {
	Sync(ctx context.Context) error
}

// DefaultMessage builds the commit message used when the caller gave none.
func DefaultMessage(path string) string {
	return "Update " + path
}

// EncodeJSON serializes a document the way it is stored: two-space
// indentation, a trailing newline and no HTML escaping of &, < and >.
func EncodeJSON(value any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FilterNames keeps the names matching pattern (DefaultPattern when empty).
// Invalid patterns match nothing.
func FilterNames(names []string, pattern string) []string {
	if pattern == "" {
		pattern = DefaultPattern
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		ok, err := doublestar.Match(pattern, name)
		if err != nil || !ok {
			continue
		}
		out = append(out, name)
	}
	return out
}

// CleanPath normalizes a caller supplied document path and rejects paths that
// escape the data directory.
func CleanPath(path string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return "", ClientError("path", "path is required")
	}
	for _, part := range strings.Split(trimmed, "/") {
		if part == ".." || part == "." || part == "" {
			return "", ClientError("path", "invalid path "+path)
		}
	}
	return trimmed, nil
}
