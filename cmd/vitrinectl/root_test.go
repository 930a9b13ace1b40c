package main

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitrine/api/internal/app"
	"vitrine/api/internal/config"
	"vitrine/api/internal/docstore"
)

func runCLI(t *testing.T, store docstore.Store, stdin string, args ...string) (string, error) {
	t.Helper()
	cfg := config.Config{GitHubOwner: "atelier", GitHubRepo: "site-content", GitHubBranch: "main", GitHubDataDir: "data"}
	server := httptest.NewServer(app.NewHTTPServer(app.New(cfg, store, nil, nil), "*").Handler())
	t.Cleanup(server.Close)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--url", server.URL}, args...))
	updateFile, updateMessage, updateSHA = "", "", ""
	err := rootCmd.Execute()
	return out.String(), err
}

func TestListGetUpdate(t *testing.T) {
	store := docstore.NewMemoryStore()
	store.Put("contact.json", `{"contactInfo":{"email":"a@b.com"}}`)
	store.Put("gallery.json", `{"images":[],"categories":[]}`)

	out, err := runCLI(t, store, "", "list")
	require.NoError(t, err)
	assert.Equal(t, "contact.json\ngallery.json\n", out)

	_, err = runCLI(t, store, `{"images":[],"categories":["Mariage"]}`, "update", "gallery.json", "-m", "Add category")
	require.NoError(t, err)
	commits := store.Commits()
	require.Len(t, commits, 1)
	assert.Equal(t, "Add category", commits[0].Message)

	out, err = runCLI(t, store, "", "get", "gallery.json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Mariage"`)
}

func TestUpdateRejectsInvalidJSON(t *testing.T) {
	store := docstore.NewMemoryStore()
	store.Put("contact.json", "{}")

	_, err := runCLI(t, store, "{not json", "update", "contact.json")
	require.Error(t, err)
	assert.Empty(t, store.Commits())
}

func TestGetMissingReportsKind(t *testing.T) {
	_, err := runCLI(t, docstore.NewMemoryStore(), "", "get", "missing.json")
	require.Error(t, err)
	assert.Equal(t, "missing.json not found (not_found)", err.Error())
}
