package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"vitrine/api/internal/docstore"
	"vitrine/api/internal/util"
)

const kindInternal docstore.Kind = "internal"

type HTTPServer struct {
	service        *Service
	corsOrigin     string
	adminTokenHash []byte
	logger         *slog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	server := &HTTPServer{service: service, corsOrigin: corsOrigin, logger: service.logger}
	if hash := strings.TrimSpace(service.cfg.AdminTokenHash); hash != "" {
		server.adminTokenHash = []byte(hash)
	}
	return server
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]any{}
		failures := s.service.Ready(ctx)
		for name := range s.service.checks {
			if err, failed := failures[name]; failed {
				checks[name] = map[string]any{"status": "error", "error": err.Error()}
				continue
			}
			checks[name] = map[string]any{"status": "ok"}
		}
		status, statusCode := "ready", http.StatusOK
		if len(failures) > 0 {
			status, statusCode = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     len(failures) == 0,
			"status": status,
			"checks": checks,
		})
		return
	}

	switch r.URL.Path {
	case "/api/content":
		if !s.requireMethod(w, r, http.MethodPost) || !s.requireAdmin(w, r) {
			return
		}
		s.handleContent(w, r)
	case "/api/git":
		if !s.requireMethod(w, r, http.MethodPost) || !s.requireAdmin(w, r) {
			return
		}
		s.handleGit(w, r)
	case "/api/history":
		if !s.requireMethod(w, r, http.MethodGet) || !s.requireAdmin(w, r) {
			return
		}
		s.handleHistory(w, r)
	default:
		writeFailure(w, http.StatusNotFound, docstore.KindNotFound, "Not found", nil)
	}
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.service.History(r.Context(), r.URL.Query().Get("path"), limit)
	if err != nil {
		status, kind, message := mapError(err)
		writeFailure(w, status, kind, message, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "entries": entries})
}

func (s *HTTPServer) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	writeFailure(w, http.StatusMethodNotAllowed, docstore.KindClient, fmt.Sprintf("Method %s not allowed", r.Method), nil)
	return false
}

// requireAdmin enforces the shared admin token when a bcrypt hash is
// configured. Without a hash the dispatchers are open.
func (s *HTTPServer) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if len(s.adminTokenHash) == 0 {
		return true
	}
	token := strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	if token == "" || bcrypt.CompareHashAndPassword(s.adminTokenHash, []byte(token)) != nil {
		writeFailure(w, http.StatusUnauthorized, docstore.KindUnauthorized, "Unauthorized", nil)
		return false
	}
	return true
}

// recoverPanic converts a panic in a dispatcher into a 500 carrying the
// message and the stack in the diagnostic block.
func (s *HTTPServer) recoverPanic(w http.ResponseWriter, r *http.Request) {
	recovered := recover()
	if recovered == nil {
		return
	}
	stack := string(debug.Stack())
	s.logger.Error("dispatcher panic", "request_id", requestIDFrom(r.Context()), "panic", recovered)
	diag := s.service.Diagnostics()
	diag.Stack = stack
	writeFailure(w, http.StatusInternalServerError, kindInternal, fmt.Sprint(recovered), map[string]any{"debug": diag})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.RequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Admin-Token")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeFailure writes {success:false, error, kind} plus any extra fields.
func writeFailure(w http.ResponseWriter, status int, kind docstore.Kind, message string, extra map[string]any) {
	response := map[string]any{
		"success": false,
		"error":   message,
		"kind":    kind,
	}
	for key, value := range extra {
		response[key] = value
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return badRequest("Invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// documentContent accepts either a JSON string (sent verbatim) or any other
// JSON value, which is stored with two-space indentation and a final newline.
func documentContent(raw json.RawMessage) (string, bool, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", false, nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", true, badRequest("Invalid content")
		}
		return text, true, nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", true, badRequest("Invalid content")
	}
	content, err := docstore.EncodeJSON(value)
	if err != nil {
		return "", true, badRequest("Invalid content")
	}
	return content, true, nil
}
