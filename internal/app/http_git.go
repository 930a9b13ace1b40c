package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"vitrine/api/internal/workcopy"
)

type gitRequest struct {
	Action        string          `json:"action"`
	Filename      string          `json:"filename"`
	Content       json.RawMessage `json:"content"`
	CommitMessage string          `json:"commitMessage"`
	Message       string          `json:"message"`
	Token         string          `json:"token"`
}

// handleGit is the working-copy dispatcher. The credential comes from the
// Authorization header, or from the body for older clients.
func (s *HTTPServer) handleGit(w http.ResponseWriter, r *http.Request) {
	defer s.recoverPanic(w, r)

	fail := func(err error) {
		status, kind, message := mapError(err)
		var extra map[string]any
		var pushErr *workcopy.PushError
		if errors.As(err, &pushErr) {
			extra = map[string]any{"commit": pushErr.Commit}
		}
		writeFailure(w, status, kind, message, extra)
	}
	ok := func(payload map[string]any) {
		payload["success"] = true
		writeJSON(w, http.StatusOK, payload)
	}

	var body gitRequest
	if err := decodeBody(r, &body); err != nil {
		fail(err)
		return
	}
	token := bearerToken(r)
	if token == "" {
		token = strings.TrimSpace(body.Token)
	}
	ctx := r.Context()

	switch strings.TrimSpace(body.Action) {
	case "sync":
		if err := s.service.SyncWorkCopy(ctx, token); err != nil {
			fail(err)
			return
		}
		ok(map[string]any{})

	case "list":
		files, err := s.service.ListWorkCopy(ctx)
		if err != nil {
			fail(err)
			return
		}
		ok(map[string]any{"files": files})

	case "read":
		filename := strings.TrimSpace(body.Filename)
		if filename == "" {
			fail(missingParam("filename"))
			return
		}
		data, err := s.service.ReadWorkCopy(ctx, filename)
		if err != nil {
			fail(err)
			return
		}
		ok(map[string]any{"data": data})

	case "write":
		filename := strings.TrimSpace(body.Filename)
		if filename == "" {
			fail(missingParam("filename"))
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
		result, err := s.service.WriteWorkCopy(ctx, token, filename, []byte(content), strings.TrimSpace(body.CommitMessage))
		if err != nil {
			fail(err)
			return
		}
		payload := map[string]any{}
		if result.Commit != "" {
			payload["commit"] = result.Commit
		}
		ok(payload)

	case "commit":
		message := strings.TrimSpace(body.Message)
		if message == "" {
			fail(missingParam("message"))
			return
		}
		result, err := s.service.CommitWorkCopy(ctx, token, message)
		if err != nil {
			fail(err)
			return
		}
		ok(map[string]any{"data": result})

	case "push":
		result, err := s.service.PushWorkCopy(ctx, token)
		if err != nil {
			fail(err)
			return
		}
		ok(map[string]any{"data": result})

	case "":
		fail(missingParam("action"))
	default:
		fail(badRequest(fmt.Sprintf("Unknown action: %s", body.Action)))
	}
}
