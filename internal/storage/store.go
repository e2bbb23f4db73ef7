// Package storage persists feed snapshots as JSON files under the data dir.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/DeafMist/econ-news-radar/backend/internal/models"
)

// ErrPersist marks failures reading or writing the data directory.
var ErrPersist = errors.New("persistence failure")

const (
	LatestFile   = "feed-latest.json"
	TrendingFile = "trending.json"
	ArchiveDir   = "archive"
)

// Store reads and writes the feed files of one data directory.
type Store struct {
	dir string
	loc *time.Location
}

// New creates a store rooted at dir. Archive names use loc.
func New(dir string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{dir: dir, loc: loc}
}

func (s *Store) LatestPath() string   { return filepath.Join(s.dir, LatestFile) }
func (s *Store) TrendingPath() string { return filepath.Join(s.dir, TrendingFile) }

// ArchivePath returns the hourly archive file for t.
func (s *Store) ArchivePath(t time.Time) string {
	return filepath.Join(s.dir, ArchiveDir, ArchiveName(t, s.loc))
}

// ArchiveName formats feed-YYYYMMDD-HH.json for t in loc.
func ArchiveName(t time.Time, loc *time.Location) string {
	return "feed-" + t.In(loc).Format("20060102-15") + ".json"
}

// LoadSnapshot reads the latest snapshot. A missing file is an empty feed;
// an unreadable one is an error so a bad file is never silently replaced.
func (s *Store) LoadSnapshot() (models.FeedSnapshot, error) {
	var snap models.FeedSnapshot
	found, err := readJSON(s.LatestPath(), &snap)
	if err != nil || !found {
		return models.FeedSnapshot{}, err
	}
	return snap, nil
}

// LoadTrending reads the trending index. A missing file yields an empty index.
func (s *Store) LoadTrending() (models.TrendingIndex, error) {
	var idx models.TrendingIndex
	found, err := readJSON(s.TrendingPath(), &idx)
	if err != nil || !found {
		return models.TrendingIndex{TopItems: []string{}}, err
	}
	return idx, nil
}

// Save writes the snapshot, the trending index and the hourly archive copy
// of the snapshot. It returns the archive path.
func (s *Store) Save(snap models.FeedSnapshot, trending models.TrendingIndex, now time.Time) (string, error) {
	if snap.Items == nil {
		snap.Items = []models.FeedItem{}
	}
	if trending.TopItems == nil {
		trending.TopItems = []string{}
	}

	feed, err := encode(snap)
	if err != nil {
		return "", err
	}
	trend, err := encode(trending)
	if err != nil {
		return "", err
	}

	archive := s.ArchivePath(now)
	writes := []struct {
		path string
		data []byte
	}{
		{s.LatestPath(), feed},
		{s.TrendingPath(), trend},
		{archive, feed},
	}
	for _, w := range writes {
		if err := writeFileAtomic(w.path, w.data); err != nil {
			return "", fmt.Errorf("%w: write %s: %v", ErrPersist, w.path, err)
		}
	}
	return archive, nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %v", ErrPersist, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrPersist, path, err)
	}
	return true, nil
}

// encode renders indented JSON with non-ASCII text and markup characters
// left as is.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrPersist, err)
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over the destination, so readers see either the old or the new file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
