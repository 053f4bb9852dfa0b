package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

var (
	_ Provider = (*TMDBClient)(nil)
	_ Provider = Static{}
	_ Provider = (*CachedProvider)(nil)
)

func TestTMDBSnapshotMovie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603" {
			t.Errorf("path = %q, want /movie/603", r.URL.Path)
		}
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("api_key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title":"The Matrix","poster_path":"/matrix.jpg","runtime":136}`))
	}))
	defer srv.Close()

	c := NewTMDB(srv.URL, "test-key")
	snap, err := c.Snapshot(context.Background(), "603", "movie")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Title != "The Matrix" {
		t.Fatalf("title = %q", snap.Title)
	}
	if snap.PosterPath != "/matrix.jpg" {
		t.Fatalf("poster_path = %q", snap.PosterPath)
	}
	if snap.RuntimeMinutes != 136 {
		t.Fatalf("runtime = %d", snap.RuntimeMinutes)
	}
}

func TestTMDBSnapshotTV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1396" {
			t.Errorf("path = %q, want /tv/1396", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Breaking Bad","poster_path":"/bb.jpg","episode_run_time":[47,49]}`))
	}))
	defer srv.Close()

	c := NewTMDB(srv.URL, "test-key")
	snap, err := c.Snapshot(context.Background(), "1396", "tv")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Title != "Breaking Bad" {
		t.Fatalf("title = %q, want series name", snap.Title)
	}
	if snap.RuntimeMinutes != 47 {
		t.Fatalf("runtime = %d, want first episode_run_time entry", snap.RuntimeMinutes)
	}
}

func TestTMDBSnapshotErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status_message":"The resource you requested could not be found."}`))
	}))
	defer srv.Close()

	c := NewTMDB(srv.URL, "test-key")
	if _, err := c.Snapshot(context.Background(), "0", "movie"); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestStaticMissingEntry(t *testing.T) {
	s := Static{Items: map[string]Snapshot{
		"movie:603": {Title: "The Matrix"},
	}}

	snap, err := s.Snapshot(context.Background(), "999", "movie")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap != (Snapshot{}) {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}
