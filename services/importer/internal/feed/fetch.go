package feed

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FetchResult describes where a downloaded feed was written.
type FetchResult struct {
	XMLPath     string
	ArchivePath string
	Bytes       int64
}

// Fetch downloads the zipped feed at url, writes its XML payload to xmlPath and
// keeps a timestamped copy under archiveDir.
func Fetch(ctx context.Context, client *http.Client, url, xmlPath, archiveDir string, now time.Time) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return FetchResult{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, fmt.Errorf("read feed: %w", err)
	}

	payload, err := extractXML(body)
	if err != nil {
		return FetchResult{}, err
	}

	if err := writeAtomic(xmlPath, payload); err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{XMLPath: xmlPath, Bytes: int64(len(payload))}
	if archiveDir != "" {
		name := fmt.Sprintf("PrixCarburants_%s.xml", now.UTC().Format("20060102_150405"))
		res.ArchivePath = filepath.Join(archiveDir, name)
		if err := writeAtomic(res.ArchivePath, payload); err != nil {
			return FetchResult{}, err
		}
	}
	return res, nil
}

func extractXML(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open feed archive: %w", err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, errors.New("feed archive contains no xml file")
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".feed-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
