package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"vitrine/api/internal/cache"
	"vitrine/api/internal/docstore"
	"vitrine/api/internal/workcopy"
)

// newCachedServer serves a cached content store next to a working copy of
// remoteDir. remote stands in for the contents API view of that repository.
func newCachedServer(t *testing.T, remoteDir string, remote *docstore.MemoryStore) *HTTPServer {
	t.Helper()
	redisServer := miniredis.RunT(t)
	client, err := cache.NewRedisClient("redis://" + redisServer.Addr())
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	cached := cache.New(remote, client, cache.Options{Prefix: "test:", TTL: time.Minute})
	repo := workcopy.New(workcopy.Config{
		Dir:       filepath.Join(t.TempDir(), "wc"),
		RemoteURL: remoteDir,
		Branch:    "main",
		DataDir:   "data",
	}, nil)
	return NewHTTPServer(New(testConfig(), cached, repo, nil), "*")
}

func TestGitWriteInvalidatesCachedReads(t *testing.T) {
	remoteDir := newBareRemote(t)
	remote := docstore.NewMemoryStore()
	remote.Put("contact.json", `{"contactInfo":{"email":"a@b.com"}}`)
	handler := newCachedServer(t, remoteDir, remote).Handler()

	if rr, payload := postJSON(t, handler, "/api/git", `{"action":"sync"}`, bearer(testGitToken)); rr.Code != 200 {
		t.Fatalf("sync failed: %d %v", rr.Code, payload)
	}
	_, first := postJSON(t, handler, "/api/content", `{"action":"get","path":"contact.json"}`, nil)

	updated := `{"contactInfo":{"email":"new@b.com"}}`
	pushed := remote.Put("contact.json", updated)
	body := `{"action":"write","filename":"contact.json","content":` + updated + `,"token":"` + testGitToken + `"}`
	if rr, payload := postJSON(t, handler, "/api/git", body, nil); rr.Code != 200 {
		t.Fatalf("write failed: %d %v", rr.Code, payload)
	}

	_, second := postJSON(t, handler, "/api/content", `{"action":"get","path":"contact.json"}`, nil)
	if second["sha"] == first["sha"] {
		t.Fatalf("get after write returned the cached sha %v", first["sha"])
	}
	if second["sha"] != pushed.SHA || second["content"] != updated {
		t.Fatalf("get after write = %v, want content %s sha %s", second, updated, pushed.SHA)
	}
}
