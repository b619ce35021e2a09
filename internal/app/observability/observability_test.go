package observability

import "testing"

func TestNormalizedPath(t *testing.T) {
	got := normalizedPath("/api/v1/submissions/5a2f60d7-8f2a-4f6e-9f4d-2f8f4d1f0a11/answers/q1")
	want := "/api/v1/submissions/{id}/answers/q1"
	if got != want {
		t.Fatalf("normalizedPath mismatch got=%s want=%s", got, want)
	}
}

func TestExtractSubmissionID(t *testing.T) {
	if id := extractSubmissionID("/api/v1/submissions/5a2f60d7-8f2a-4f6e-9f4d-2f8f4d1f0a11/submit"); id != "5a2f60d7-8f2a-4f6e-9f4d-2f8f4d1f0a11" {
		t.Fatalf("expected submission id, got %q", id)
	}
	if id := extractSubmissionID("/api/v1/collections/5a2f60d7-8f2a-4f6e-9f4d-2f8f4d1f0a11"); id != "" {
		t.Fatalf("expected empty for non-submission path, got %q", id)
	}
}
