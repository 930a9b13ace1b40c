package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"vitrine/api/internal/docstore"
)

type contentRequest struct {
	Action  string          `json:"action"`
	Path    string          `json:"path"`
	Content json.RawMessage `json:"content"`
	Message string          `json:"message"`
	SHA     string          `json:"sha"`
}

// handleContent is the API-based dispatcher. Every response carries the
// diagnostic block, on success and on failure.
func (s *HTTPServer) handleContent(w http.ResponseWriter, r *http.Request) {
	defer s.recoverPanic(w, r)

	diag := s.service.Diagnostics()
	if r.URL.Query().Get("debug") == "true" {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "debug": diag})
		return
	}

	fail := func(err error) {
		status, kind, message := mapError(err)
		writeFailure(w, status, kind, message, map[string]any{"debug": diag})
	}
	ok := func(payload map[string]any) {
		payload["success"] = true
		payload["debug"] = diag
		writeJSON(w, http.StatusOK, payload)
	}

	var body contentRequest
	if err := decodeBody(r, &body); err != nil {
		fail(err)
		return
	}
	path := strings.TrimSpace(body.Path)

	switch strings.TrimSpace(body.Action) {
	case "list":
		files, err := s.service.ListDocuments(r.Context(), path)
		if err != nil {
			fail(err)
			return
		}
		ok(map[string]any{"files": files})

	case "get":
		if path == "" {
			fail(missingParam("path"))
			return
		}
		doc, err := s.service.GetDocument(r.Context(), path)
		if err != nil {
			fail(err)
			return
		}
		ok(map[string]any{"content": doc.Content, "sha": doc.SHA})

	case "update":
		if path == "" {
			fail(missingParam("path"))
			return
		}
		content, present, err := documentContent(body.Content)
		if err != nil {
			fail(err)
			return
		}
		if !present {
			fail(missingParam("content"))
			return
		}
		commit, err := s.service.UpdateDocument(r.Context(), docstore.UpdateRequest{
			Path:        path,
			Content:     content,
			Message:     strings.TrimSpace(body.Message),
			ExpectedSHA: strings.TrimSpace(body.SHA),
		})
		if err != nil {
			fail(err)
			return
		}
		ok(map[string]any{"commit": commit})

	case "":
		fail(missingParam("action"))
	default:
		fail(badRequest(fmt.Sprintf("Unknown action: %s", body.Action)))
	}
}
