package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestPushArchive_AuthenticatesAndUploads(t *testing.T) {
	var sawAuth bool
	var sawArchive bool

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		sawAuth = true
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("expected bearer token on upload request, got %q", r.Header.Get("Authorization"))
		}
		file, _, err := r.FormFile("archive")
		if err != nil {
			t.Fatalf("expected archive form file: %v", err)
		}
		defer file.Close()
		sawArchive = true
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "backup.zip")
	if err := os.WriteFile(archivePath, []byte("fake zip contents"), 0644); err != nil {
		t.Fatalf("seed archive: %v", err)
	}

	pusher := NewPusher(context.Background(), Settings{
		Endpoint:     srv.URL + "/upload",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     srv.URL + "/token",
	})

	if err := pusher.PushArchive(context.Background(), archivePath); err != nil {
		t.Fatalf("PushArchive: %v", err)
	}
	if !sawAuth {
		t.Error("expected token endpoint to be hit")
	}
	if !sawArchive {
		t.Error("expected upload endpoint to receive the archive")
	}
}

func TestPushArchive_RemoteRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"t","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "backup.zip")
	os.WriteFile(archivePath, []byte("x"), 0644)

	pusher := NewPusher(context.Background(), Settings{
		Endpoint: srv.URL + "/upload",
		TokenURL: srv.URL + "/token",
	})

	if err := pusher.PushArchive(context.Background(), archivePath); err == nil {
		t.Fatalf("expected error on remote rejection")
	}
}

func TestPushArchive_MissingFile(t *testing.T) {
	pusher := NewPusher(context.Background(), Settings{Endpoint: "http://example.invalid"})
	if err := pusher.PushArchive(context.Background(), "/nonexistent/archive.zip"); err == nil {
		t.Fatalf("expected error for missing archive file")
	}
}
