package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobSHAMatchesGit(t *testing.T) {
	// `git hash-object -t blob /dev/null`
	assert.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", BlobSHA(""))
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seeded := store.Put("contact.json", `{"contactInfo":{}}`)

	doc, err := store.Get(ctx, "contact.json")
	require.NoError(t, err)
	assert.Equal(t, seeded.SHA, doc.SHA)

	content := "{\n  \"contactInfo\": {\n    \"email\": \"a@b.com\"\n  }\n}\n"
	commit, err := store.Update(ctx, UpdateRequest{Path: "contact.json", Content: content})
	require.NoError(t, err)
	assert.NotEmpty(t, commit.SHA)
	assert.Equal(t, "Update contact.json", commit.Message)

	doc, err = store.Get(ctx, "contact.json")
	require.NoError(t, err)
	assert.Equal(t, content, doc.Content)
	assert.Equal(t, BlobSHA(content), doc.SHA)
}

func TestMemoryStoreUpdateMissingPath(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Update(context.Background(), UpdateRequest{Path: "missing.json", Content: "{}"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, err = store.Get(context.Background(), "missing.json")
	assert.True(t, IsNotFound(err), "update must not create the document")
}

func TestMemoryStoreSameContentTwice(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Put("gallery.json", "{}")
	content := "{\n  \"images\": []\n}\n"

	first, err := store.Update(ctx, UpdateRequest{Path: "gallery.json", Content: content})
	require.NoError(t, err)
	second, err := store.Update(ctx, UpdateRequest{Path: "gallery.json", Content: content})
	require.NoError(t, err)

	assert.NotEqual(t, first.SHA, second.SHA)
	assert.Len(t, store.Commits(), 2)
	doc, err := store.Get(ctx, "gallery.json")
	require.NoError(t, err)
	assert.Equal(t, content, doc.Content)
}

func TestMemoryStoreExpectedSHAConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	original := store.Put("testimonials.json", `{"testimonials":[]}`)

	_, err := store.Update(ctx, UpdateRequest{Path: "testimonials.json", Content: "a"})
	require.NoError(t, err)

	_, err = store.Update(ctx, UpdateRequest{Path: "testimonials.json", Content: "b", ExpectedSHA: original.SHA})
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, original.SHA, conflict.ExpectedSHA)

	doc, _ := store.Get(ctx, "testimonials.json")
	assert.Equal(t, "a", doc.Content)
}

func TestMemoryStoreListFiltersJSON(t *testing.T) {
	store := NewMemoryStore()
	store.Put("contact.json", "{}")
	store.Put("gallery.json", "{}")
	store.Put("README.md", "# data")
	store.Put("nested/inner.json", "{}")

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"contact.json", "gallery.json"}, names)

	names, err = store.List(context.Background(), "nested")
	require.NoError(t, err)
	assert.Equal(t, []string{"inner.json"}, names)
}

func TestMemoryStoreBeforeUpdate(t *testing.T) {
	store := NewMemoryStore()
	store.Put("contact.json", "{}")
	store.BeforeUpdate = func(UpdateRequest) error {
		return Upstream("update", "contact.json", errors.New("network down"))
	}

	_, err := store.Update(context.Background(), UpdateRequest{Path: "contact.json", Content: "x"})
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Equal(t, "network down", err.Error())
	assert.Empty(t, store.Commits())
}

func TestMemoryStoreListRejectsEscapingDir(t *testing.T) {
	store := NewMemoryStore()
	store.Put("contact.json", "{}")

	_, err := store.List(context.Background(), "../private")
	assert.Equal(t, KindClient, KindOf(err))

	names, err := store.List(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"contact.json"}, names)
}

func TestEncodeJSONKeepsHTMLCharacters(t *testing.T) {
	content, err := EncodeJSON(map[string]any{"categories": []string{"Mariage & Baptême", "<3"}})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"categories\": [\n    \"Mariage & Baptême\",\n    \"<3\"\n  ]\n}\n", content)
}
