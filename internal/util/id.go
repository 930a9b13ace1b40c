package util

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewID returns a timestamp-derived identifier for new collection items:
// Unix milliseconds followed by a short random suffix. Uniqueness is
// probabilistic.
func NewID(prefix string) string {
	bytes := make([]byte, 2)
	_, _ = rand.Read(bytes)
	id := strconv.FormatInt(time.Now().UnixMilli(), 10) + hex.EncodeToString(bytes)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// RequestID identifies one HTTP request in logs and audit entries.
func RequestID() string {
	return uuid.NewString()
}
