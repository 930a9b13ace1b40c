package ghcontents

import (
	"errors"
	"net/http"

	gh "github.com/google/go-github/v80/github"

	"vitrine/api/internal/docstore"
)

// wrapError converts go-github errors to docstore errors, keeping GitHub's
// own message.
func wrapError(err error, op, path string) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return docstore.NewError(docstore.KindUpstream, op, path, rateLimitErr.Message, err)
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		message := ghErr.Message
		if message == "" {
			message = err.Error()
		}
		return docstore.NewError(kindForStatus(ghErr.Response.StatusCode), op, path, message, err)
	}

	return docstore.Upstream(op, path, err)
}

func kindForStatus(status int) docstore.Kind {
	switch status {
	case http.StatusNotFound:
		return docstore.KindNotFound
	case http.StatusConflict:
		return docstore.KindConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return docstore.KindUnauthorized
	default:
		return docstore.KindUpstream
	}
}
