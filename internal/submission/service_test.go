package submission

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestReferenceFor(t *testing.T) {
	id := uuid.MustParse("5a2f60d7-8f2a-4f6e-9f4d-2f8f4d1f0a11")
	got := referenceFor(id)
	if got != "5A2F60D7" {
		t.Fatalf("referenceFor = %q, want 5A2F60D7", got)
	}
	if len(got) != 8 || got != strings.ToUpper(got) {
		t.Fatalf("reference must be 8 uppercase hex digits: %q", got)
	}
	if referenceFor(id) != got {
		t.Fatalf("reference must be deterministic for a given id")
	}
}
