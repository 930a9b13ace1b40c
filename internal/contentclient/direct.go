package contentclient

import (
	"context"
	"fmt"

	"vitrine/api/internal/docstore"
)

// Direct serves the same contract as Client over an in-process store.
type Direct struct {
	store docstore.Store
}

func NewDirect(store docstore.Store) *Direct {
	return &Direct{store: store}
}

func (d *Direct) ListFiles(ctx context.Context) Result {
	files, err := d.store.List(ctx, "")
	if err != nil {
		return failure(err)
	}
	return Result{Success: true, Files: files}
}

func (d *Direct) GetFile(ctx context.Context, path string) Result {
	doc, err := d.store.Get(ctx, path)
	if err != nil {
		return failure(err)
	}
	return withParsedContent(Result{Success: true, Content: doc.Content, SHA: doc.SHA})
}

func (d *Direct) UpdateFile(ctx context.Context, path string, data any, message string) Result {
	return d.UpdateFileAt(ctx, path, data, message, "")
}

func (d *Direct) UpdateFileAt(ctx context.Context, path string, data any, message, sha string) Result {
	content, err := Marshal(data)
	if err != nil {
		return Result{Error: fmt.Sprintf("serialize %s: %v", path, err), Kind: docstore.KindClient}
	}
	commit, err := d.store.Update(ctx, docstore.UpdateRequest{Path: path, Content: content, Message: message, ExpectedSHA: sha})
	if err != nil {
		return failure(err)
	}
	return Result{Success: true, Commit: &commit}
}

var (
	_ Files = (*Client)(nil)
	_ Files = (*Direct)(nil)
)
