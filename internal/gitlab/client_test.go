package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dlr-sc/gitlab2graph/internal/errors"
)

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

// newTestClient builds a client against a fake GitLab API. The mux
// must carry the project-scoped handlers, the current-user probe is
// wired here.
func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	mux.HandleFunc("/api/v4/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id": 1, "username": "jdoe"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), server.URL, "glpat-test", "42", WithRateLimit(1000))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClientRejectsMissingSettings(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		token   string
		project string
	}{
		{"no url", "", "glpat-test", "42"},
		{"no token", "https://gitlab.example.com", "", "42"},
		{"no project", "https://gitlab.example.com", "glpat-test", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(context.Background(), tt.url, tt.token, tt.project)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !errors.IsConfiguration(err) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}
}

func TestNewClientProbeFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/user", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, `{"message": "401 Unauthorized"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := NewClient(context.Background(), server.URL, "glpat-bad", "42", WithRateLimit(1000))
	if err == nil {
		t.Fatal("Expected error for rejected token")
	}
	if !errors.IsSourceUnavailable(err) {
		t.Errorf("Expected source error, got %v", err)
	}
}

func TestIssuesWalksAllPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/42/issues", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("X-Next-Page", "2")
			writeJSON(w, `[{"id": 1, "iid": 1, "title": "first"}]`)
		case "2":
			writeJSON(w, `[{"id": 2, "iid": 2, "title": "second"}]`)
		default:
			t.Errorf("Unexpected page %q", r.URL.Query().Get("page"))
			writeJSON(w, `[]`)
		}
	})
	client := newTestClient(t, mux)

	issues, err := client.Issues(context.Background())
	if err != nil {
		t.Fatalf("Issues failed: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("Expected 2 issues across pages, got %d", len(issues))
	}
	if issues[0].ID != 1 || issues[1].ID != 2 {
		t.Errorf("Issues out of order: %d, %d", issues[0].ID, issues[1].ID)
	}
}

func TestLabelsRequestCounts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/42/labels", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("with_counts") != "true" {
			t.Error("Expected with_counts=true on label listing")
		}
		writeJSON(w, `[{"id": 10, "name": "bug", "open_issues_count": 3}]`)
	})
	client := newTestClient(t, mux)

	labels, err := client.Labels(context.Background())
	if err != nil {
		t.Fatalf("Labels failed: %v", err)
	}
	if len(labels) != 1 || labels[0].Name != "bug" {
		t.Fatalf("Unexpected labels: %+v", labels)
	}
	if labels[0].OpenIssuesCount != 3 {
		t.Errorf("OpenIssuesCount = %d, want 3", labels[0].OpenIssuesCount)
	}
}

func TestChangesComposesRecordAndDiffs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/42/merge_requests/5", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id": 100, "iid": 5, "changes_count": "2", "merge_error": "conflict"}`)
	})
	mux.HandleFunc("/api/v4/projects/42/merge_requests/5/diffs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `[
			{"old_path": "a.go", "new_path": "a.go", "diff": "@@ -1 +1 @@"},
			{"old_path": "b.go", "new_path": "c.go", "renamed_file": true}
		]`)
	})
	client := newTestClient(t, mux)

	mergeRequest, diffs, err := client.Changes(context.Background(), 5)
	if err != nil {
		t.Fatalf("Changes failed: %v", err)
	}
	if mergeRequest.ChangesCount != "2" {
		t.Errorf("ChangesCount = %q, want 2", mergeRequest.ChangesCount)
	}
	if mergeRequest.MergeError != "conflict" {
		t.Errorf("MergeError = %q", mergeRequest.MergeError)
	}
	if len(diffs) != 2 {
		t.Fatalf("Expected 2 diffs, got %d", len(diffs))
	}
	if diffs[1].NewPath != "c.go" || !diffs[1].RenamedFile {
		t.Errorf("Unexpected diff record: %+v", diffs[1])
	}
}

func TestSourceErrorsCarryContext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/42/milestones", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, `{"message": "404 Project Not Found"}`)
	})
	client := newTestClient(t, mux)

	_, err := client.Milestones(context.Background())
	if err == nil {
		t.Fatal("Expected error for failing endpoint")
	}
	if !errors.IsSourceUnavailable(err) {
		t.Errorf("Expected source error, got %v", err)
	}
	if !errors.IsFatal(err) {
		t.Error("Source failures must be fatal")
	}
}
