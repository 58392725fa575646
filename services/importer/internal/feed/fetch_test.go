package feed

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func zipped(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestFetchWritesXMLAndArchive(t *testing.T) {
	payload := `<pdv_liste></pdv_liste>`
	archive := zipped(t, map[string]string{"PrixCarburants_instantane.xml": payload})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(archive)
	}))
	defer srv.Close()

	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "actuel", "feed.xml")
	archiveDir := filepath.Join(dir, "historique")
	now := time.Date(2026, 10, 16, 5, 4, 3, 0, time.UTC)

	res, err := Fetch(context.Background(), srv.Client(), srv.URL, xmlPath, archiveDir, now)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := os.ReadFile(xmlPath)
	if err != nil || string(got) != payload {
		t.Fatalf("unexpected xml on disk: %q (%v)", got, err)
	}
	wantArchive := filepath.Join(archiveDir, "PrixCarburants_20261016_050403.xml")
	if res.ArchivePath != wantArchive {
		t.Fatalf("unexpected archive path %s", res.ArchivePath)
	}
	if _, err := os.Stat(wantArchive); err != nil {
		t.Fatalf("archive copy missing: %v", err)
	}
}

func TestFetchRejectsArchiveWithoutXML(t *testing.T) {
	archive := zipped(t, map[string]string{"readme.txt": "nothing"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.Client(), srv.URL, filepath.Join(t.TempDir(), "f.xml"), "", time.Now())
	if err == nil {
		t.Fatalf("expected error for archive without xml")
	}
}

func TestFetchRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.Client(), srv.URL, filepath.Join(t.TempDir(), "f.xml"), "", time.Now())
	if err == nil {
		t.Fatalf("expected error for 502")
	}
}
