// Package collections owns the in-memory state of each editable site
// document and its mutations.
//
// A hook loads its document once, applies every mutation to local state
// immediately and then writes the whole document back. A failed write
// restores the state the hook had before the mutation.
package collections

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"vitrine/api/internal/contentclient"
	"vitrine/api/internal/docstore"
)

// ErrBusy is returned when a mutation starts while a write is in flight.
var ErrBusy = errors.New("a save is already in progress")

var now = time.Now

func timestamp() string {
	return now().UTC().Format(time.RFC3339)
}

// versionedFiles is implemented by content services that accept the version
// token the caller last read.
type versionedFiles interface {
	UpdateFileAt(ctx context.Context, path string, data any, message, sha string) contentclient.Result
}

// Hook holds one document of type T.
type Hook[T any] struct {
	files contentclient.Files
	path  string
	empty func() T

	// Strict sends the version token of the last read with each write, so a
	// document edited elsewhere is refused with a conflict instead of being
	// overwritten.
	Strict bool

	mu      sync.Mutex
	doc     T
	sha     string
	err     error
	loading bool
	saving  bool
}

// NewHook creates a hook for path; empty builds the default document shape.
func NewHook[T any](files contentclient.Files, path string, empty func() T) *Hook[T] {
	return &Hook[T]{files: files, path: path, empty: empty, doc: empty()}
}

// Load performs exactly one read. On failure the hook keeps the empty shape
// and records the error.
func (h *Hook[T]) Load(ctx context.Context) error {
	h.mu.Lock()
	h.loading = true
	h.mu.Unlock()

	result := h.files.GetFile(ctx, h.path)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.loading = false

	if !result.Success {
		h.doc = h.empty()
		h.sha = ""
		h.err = resultError("load", h.path, result)
		return h.err
	}
	doc := h.empty()
	if err := json.Unmarshal([]byte(result.Content), &doc); err != nil {
		h.doc = h.empty()
		h.sha = ""
		h.err = docstore.NewError(docstore.KindUpstream, "load", h.path, err.Error(), err)
		return h.err
	}
	h.doc = doc
	h.sha = result.SHA
	h.err = nil
	return nil
}

// Current returns a copy of the local document.
func (h *Hook[T]) Current() T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return clone(h.doc, h.empty)
}

// Err returns the error of the last load or write, if any.
func (h *Hook[T]) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Loading reports whether a read is in flight.
func (h *Hook[T]) Loading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading
}

// Saving reports whether a write is in flight.
func (h *Hook[T]) Saving() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saving
}

// Mutate applies fn to a copy of the local document, publishes the result
// immediately and writes it. If fn fails nothing changes. If the write
// fails, the previous document is restored and the error returned.
func (h *Hook[T]) Mutate(ctx context.Context, message string, fn func(doc T) (T, error)) error {
	h.mu.Lock()
	if h.saving {
		h.mu.Unlock()
		return ErrBusy
	}
	snapshot := h.doc
	next, err := fn(clone(h.doc, h.empty))
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.doc = next
	h.saving = true
	sha := h.sha
	h.mu.Unlock()

	var result contentclient.Result
	if versioned, ok := h.files.(versionedFiles); ok && h.Strict {
		result = versioned.UpdateFileAt(ctx, h.path, next, message, sha)
	} else {
		result = h.files.UpdateFile(ctx, h.path, next, message)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.saving = false
	if !result.Success {
		h.doc = snapshot
		h.err = resultError("update", h.path, result)
		return h.err
	}
	if content, err := contentclient.Marshal(next); err == nil {
		h.sha = docstore.BlobSHA(content)
	}
	h.err = nil
	return nil
}

func resultError(op, path string, result contentclient.Result) error {
	kind := result.Kind
	if kind == "" {
		kind = docstore.KindUpstream
	}
	return docstore.NewError(kind, op, path, result.Error, nil)
}

// clone deep-copies doc through its JSON form so snapshots never share
// slices with the published state.
func clone[T any](doc T, empty func() T) T {
	raw, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	out := empty()
	if err := json.Unmarshal(raw, &out); err != nil {
		return doc
	}
	return out
}
