// Package photos manages the local photo root: latest-image resolution,
// gallery listing and bulk file operations. It never talks to the camera.
package photos

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mojo24x7/canon-eos-studio-remote/pkg/models"
)

// Image extensions considered for "latest" and the gallery (JPEG + RAW).
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true,
	".cr2": true, ".nef": true, ".dng": true,
}

// Store is the photo root on disk.
type Store struct {
	root string
}

// NewStore returns a photo store rooted at dir, creating it if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create photo root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the photo root path.
func (s *Store) Root() string {
	return s.root
}

// IsImage reports whether name has a known JPEG/RAW extension.
func IsImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// LatestPath returns the newest image below the root by mtime, or ""
// when no image exists. Mirrored camera files get their mtime bumped on
// arrival, so whatever arrived last wins.
func (s *Store) LatestPath() string {
	var newest string
	var newestMtime time.Time

	_ = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !IsImage(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(newestMtime) {
			newestMtime = info.ModTime()
			newest = path
		}
		return nil
	})

	return newest
}

// LatestName returns the base name of the newest image, or "".
func (s *Store) LatestName() string {
	if p := s.LatestPath(); p != "" {
		return filepath.Base(p)
	}
	return ""
}

// List returns all images directly under the root, newest first.
func (s *Store) List() []models.GalleryEntry {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		log.Error().Err(err).Str("root", s.root).Msg("Failed to read photo root")
		return nil
	}

	items := make([]models.GalleryEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, models.GalleryEntry{
			Name:       e.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].ModifiedAt.After(items[j].ModifiedAt)
	})

	return items
}

// SafePath resolves a user-supplied file name inside the root, refusing
// path traversal.
func (s *Store) SafePath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(s.root, name), nil
}

// SessionDir returns (and creates) the dated import subdirectory, e.g.
// <root>/session_20260823.
func (s *Store) SessionDir(now time.Time) (string, error) {
	dir := filepath.Join(s.root, "session_"+now.Format("20060102"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	return dir, nil
}

// CapturePattern returns a timestamped gphoto2 filename pattern under the
// root; %C expands to the camera-side extension.
func (s *Store) CapturePattern(now time.Time) string {
	return filepath.Join(s.root, now.Format("20060102-150405")+".%C")
}

// ResolveCapture finds the file a capture with the given timestamp
// produced (the camera decides the extension).
func (s *Store) ResolveCapture(now time.Time) string {
	matches, _ := filepath.Glob(filepath.Join(s.root, now.Format("20060102-150405")+".*"))
	var newest string
	var newestMtime time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMtime) || newest == "" {
			newestMtime = info.ModTime()
			newest = m
		}
	}
	if newest == "" {
		return ""
	}
	return filepath.Base(newest)
}

// BulkDelete removes the named files, returning how many were deleted.
func (s *Store) BulkDelete(names []string) (deleted int, firstErr error) {
	for _, name := range names {
		path, err := s.SafePath(name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := os.Remove(path); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}
	return deleted, firstErr
}

// BulkMove moves the named files into a subfolder of the root, creating
// it if needed.
func (s *Store) BulkMove(names []string, folder string) (moved int, firstErr error) {
	if folder == "" || strings.ContainsAny(folder, "/\\") || strings.Contains(folder, "..") {
		return 0, fmt.Errorf("invalid folder name %q", folder)
	}
	dest := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return 0, err
	}
	for _, name := range names {
		path, err := s.SafePath(name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := os.Rename(path, filepath.Join(dest, name)); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		moved++
	}
	return moved, firstErr
}

// Touch bumps a file's mtime so it becomes the newest image for the UI.
func (s *Store) Touch(path string) {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Failed to bump mtime")
	}
}
