package workcopy

import (
	"context"
	"testing"

	"vitrine/api/internal/docstore"
)

func syncedStore(t *testing.T, remote string) *Store {
	t.Helper()
	store := newRepo(t, remote).Store(testToken)
	if err := store.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	return store
}

func TestStoreUpdateRoundTrip(t *testing.T) {
	remote := newRemote(t, seedFiles())
	store := syncedStore(t, remote)
	ctx := context.Background()

	doc, err := store.Get(ctx, "gallery.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.SHA != docstore.BlobSHA(doc.Content) {
		t.Fatalf("sha = %s, want blob hash", doc.SHA)
	}

	content := "{\n  \"images\": [\n    \"a.jpg\"\n  ]\n}\n"
	commit, err := store.Update(ctx, docstore.UpdateRequest{Path: "gallery.json", Content: content, ExpectedSHA: doc.SHA})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if commit.SHA == "" || commit.Message != "Update gallery.json" || commit.Additions == 0 {
		t.Fatalf("unexpected commit: %+v", commit)
	}
	if got := remoteFile(t, remote, "data/gallery.json"); got != content {
		t.Fatalf("remote content = %q", got)
	}
}

func TestStoreUpdateStaleSHAConflicts(t *testing.T) {
	remote := newRemote(t, seedFiles())
	store := syncedStore(t, remote)

	_, err := store.Update(context.Background(), docstore.UpdateRequest{
		Path:        "contact.json",
		Content:     "{}",
		ExpectedSHA: docstore.BlobSHA("something else"),
	})
	if !docstore.IsConflict(err) {
		t.Fatalf("Update() error = %v, want conflict", err)
	}
	if got := remoteFile(t, remote, "data/contact.json"); got != seedFiles()["data/contact.json"] {
		t.Fatalf("remote changed: %q", got)
	}
}

func TestStoreUpdateMissingDocument(t *testing.T) {
	store := syncedStore(t, newRemote(t, seedFiles()))
	_, err := store.Update(context.Background(), docstore.UpdateRequest{Path: "new.json", Content: "{}"})
	if !docstore.IsNotFound(err) {
		t.Fatalf("Update() error = %v, want not found", err)
	}
}

func TestStoreListSubdirectory(t *testing.T) {
	files := seedFiles()
	files["data/archive/2023.json"] = "{}"
	store := syncedStore(t, newRemote(t, files))

	names, err := store.List(context.Background(), "archive")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 1 || names[0] != "2023.json" {
		t.Fatalf("unexpected names: %v", names)
	}
}

var (
	_ docstore.Store  = (*Store)(nil)
	_ docstore.Syncer = (*Store)(nil)
)
