package util

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewIDIsTimestampDerived(t *testing.T) {
	id := NewID("")
	if len(id) < 17 {
		t.Fatalf("unexpected id %q", id)
	}
	if !strings.HasPrefix(NewID("img"), "img_") {
		t.Fatal("expected prefix")
	}
}

func TestNewIDDiffersInQuickSuccession(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		seen[NewID("")] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected distinct ids, got %v", seen)
	}
}

func TestRequestIDIsUUID(t *testing.T) {
	if _, err := uuid.Parse(RequestID()); err != nil {
		t.Fatalf("RequestID() is not a uuid: %v", err)
	}
}
