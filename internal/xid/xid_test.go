package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewCarriesPrefixAndUUID(t *testing.T) {
	id := New("evt")
	if !strings.HasPrefix(id, "evt-") {
		t.Fatalf("expected evt- prefix, got %q", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "evt-")); err != nil {
		t.Fatalf("expected uuid suffix, got %q: %v", id, err)
	}
	if New("evt") == id {
		t.Fatalf("expected distinct ids")
	}
}
