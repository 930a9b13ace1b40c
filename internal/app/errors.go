package app

import (
	"errors"
	"fmt"
	"net/http"

	"vitrine/api/internal/docstore"
)

// DomainError is a failure raised by the dispatchers themselves, before any
// store is reached.
type DomainError struct {
	Status  int
	Kind    docstore.Kind
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func badRequest(message string) *DomainError {
	return &DomainError{Status: http.StatusBadRequest, Kind: docstore.KindClient, Message: message}
}

func missingParam(name string) *DomainError {
	return badRequest(fmt.Sprintf("Missing required parameter: %s", name))
}

// mapError converts any error into the HTTP status, error kind and message
// returned to callers. Upstream messages are passed through verbatim.
func mapError(err error) (status int, kind docstore.Kind, message string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Kind, domainErr.Message
	}

	kind = docstore.KindOf(err)
	switch kind {
	case docstore.KindClient:
		status = http.StatusBadRequest
	case docstore.KindConfig, docstore.KindUnauthorized:
		status = http.StatusUnauthorized
	case docstore.KindNotFound:
		status = http.StatusNotFound
	case docstore.KindConflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	return status, kind, err.Error()
}
