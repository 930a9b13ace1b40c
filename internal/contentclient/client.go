// Package contentclient is the caller-side content service. It never returns
// Go errors: every failure is folded into a Result with Success false.
package contentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vitrine/api/internal/docstore"
)

// Result mirrors the dispatcher response envelope.
type Result struct {
	Success bool             `json:"success"`
	Content string           `json:"content,omitempty"`
	SHA     string           `json:"sha,omitempty"`
	Data    any              `json:"data,omitempty"`
	Files   []string         `json:"files,omitempty"`
	Commit  *docstore.Commit `json:"-"`
	Error   string           `json:"error,omitempty"`
	Kind    docstore.Kind    `json:"kind,omitempty"`
	Debug   map[string]any   `json:"debug,omitempty"`

	// Entries is the raw commit history returned by History.
	Entries json.RawMessage `json:"entries,omitempty"`
}

// Decode unmarshals the document content of a successful GetFile into target.
func (r Result) Decode(target any) error {
	if !r.Success {
		return fmt.Errorf("%s", r.Error)
	}
	return json.Unmarshal([]byte(r.Content), target)
}

// Files is what domain hooks need from a content service.
type Files interface {
	GetFile(ctx context.Context, path string) Result
	UpdateFile(ctx context.Context, path string, data any, message string) Result
}

// Marshal serializes a document the way it is stored: two-space indentation
// and a trailing newline, so stored history stays diff-friendly.
func Marshal(data any) (string, error) {
	return docstore.EncodeJSON(data)
}

// withParsedContent attaches the parsed document when the content is JSON.
// A parse failure is not an error: the raw content is still returned.
func withParsedContent(result Result) Result {
	if !result.Success || result.Content == "" {
		return result
	}
	var parsed any
	if err := json.Unmarshal([]byte(result.Content), &parsed); err == nil {
		result.Data = parsed
	}
	return result
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error(), Kind: docstore.KindOf(err)}
}

// Client talks to the HTTP dispatchers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	adminToken string
	gitToken   string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithAdminToken sends the shared admin credential on every request.
func WithAdminToken(token string) Option {
	return func(c *Client) { c.adminToken = token }
}

// WithGitToken sets the bearer credential used by Git calls.
func WithGitToken(token string) Option {
	return func(c *Client) { c.gitToken = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListFiles(ctx context.Context) Result {
	return c.post(ctx, "/api/content", map[string]any{"action": "list"}, "")
}

// ListDir lists the JSON documents of a subdirectory of the data root.
func (c *Client) ListDir(ctx context.Context, dir string) Result {
	return c.post(ctx, "/api/content", map[string]any{"action": "list", "path": dir}, "")
}

func (c *Client) GetFile(ctx context.Context, path string) Result {
	return withParsedContent(c.post(ctx, "/api/content", map[string]any{"action": "get", "path": path}, ""))
}

func (c *Client) UpdateFile(ctx context.Context, path string, data any, message string) Result {
	return c.UpdateFileAt(ctx, path, data, message, "")
}

// UpdateFileAt is UpdateFile with the version token the caller last read.
// The write fails with a conflict if the document moved since.
func (c *Client) UpdateFileAt(ctx context.Context, path string, data any, message, sha string) Result {
	content, err := Marshal(data)
	if err != nil {
		return Result{Error: fmt.Sprintf("serialize %s: %v", path, err), Kind: docstore.KindClient}
	}
	body := map[string]any{"action": "update", "path": path, "content": content}
	if message != "" {
		body["message"] = message
	}
	if sha != "" {
		body["sha"] = sha
	}
	return c.post(ctx, "/api/content", body, "")
}

// Debug returns the content dispatcher diagnostics without touching the store.
func (c *Client) Debug(ctx context.Context) Result {
	return c.post(ctx, "/api/content?debug=true", map[string]any{}, "")
}

// Git calls the working-copy dispatcher with action and its parameters
// (filename, content, commitMessage, message).
func (c *Client) Git(ctx context.Context, action string, params map[string]any) Result {
	body := map[string]any{"action": action}
	for key, value := range params {
		body[key] = value
	}
	return c.post(ctx, "/api/git", body, c.gitToken)
}

// History returns the recorded writes, newest first, optionally for one path.
func (c *Client) History(ctx context.Context, path string, limit int) Result {
	query := url.Values{}
	if path != "" {
		query.Set("path", path)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	endpoint := c.baseURL + "/api/history"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Error: err.Error(), Kind: docstore.KindClient}
	}
	return c.send(req)
}

func (c *Client) post(ctx context.Context, endpoint string, body map[string]any, bearer string) Result {
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{Error: err.Error(), Kind: docstore.KindClient}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{Error: err.Error(), Kind: docstore.KindClient}
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.send(req)
}

func (c *Client) send(req *http.Request) Result {
	if c.adminToken != "" {
		req.Header.Set("X-Admin-Token", c.adminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Error: err.Error(), Kind: docstore.KindUpstream}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Error: err.Error(), Kind: docstore.KindUpstream}
	}

	var envelope struct {
		Result
		Commit json.RawMessage `json:"commit"`
	}
	decodeErr := json.Unmarshal(raw, &envelope)
	result := envelope.Result
	if len(envelope.Commit) > 0 {
		var commit docstore.Commit
		if err := json.Unmarshal(envelope.Commit, &commit); err == nil {
			result.Commit = &commit
		} else {
			var sha string
			if err := json.Unmarshal(envelope.Commit, &sha); err == nil {
				result.Commit = &docstore.Commit{SHA: sha}
			}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Success = false
		if result.Error == "" {
			result.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		if result.Kind == "" {
			result.Kind = docstore.KindUpstream
		}
		return result
	}
	if decodeErr != nil {
		return Result{Error: fmt.Sprintf("decode response: %v", decodeErr), Kind: docstore.KindUpstream}
	}
	return result
}
