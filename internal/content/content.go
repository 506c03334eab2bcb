// Package content implements the document body store: bodies live on
// the local filesystem under a two-character fan-out directory derived from the document id, and
// every write is atomic (write-to-temp then rename).
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrMissingBody is returned by Get when a document's row exists but its
// body file does not — a fatal integrity error, never a
// soft miss.
var ErrMissingBody = errors.New("content: body missing for existing document")

// Store reads and writes document bodies under a root directory.
type Store struct {
	root string
}

// New returns a Store rooted at dir, creating dir if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("content: create root %s: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

// pathFor returns <root>/<first-2-chars-of-id>/<id>.json. collectionID
// is accepted for API symmetry with Put and Delete but
// does not appear in the path: document ids are globally unique, so a
// flat fan-out directory suffices.
func (s *Store) pathFor(collectionID, documentID string) (dir, file string) {
	_ = collectionID
	fan := documentID
	if len(fan) > 2 {
		fan = fan[:2]
	}
	dir = filepath.Join(s.root, fan)
	file = filepath.Join(dir, documentID+".json")
	return dir, file
}

// Put writes body atomically and returns the SHA-256 hash of the exact
// bytes written, to be stored on the document row.
func (s *Store) Put(collectionID, documentID string, body []byte) (hash string, err error) {
	dir, file := s.pathFor(collectionID, documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("content: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("content: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("content: write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("content: sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("content: close temp file: %w", err)
	}
	if err = os.Rename(tmpName, file); err != nil {
		return "", fmt.Errorf("content: rename into place: %w", err)
	}

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// Get reads a document body. A missing file is reported as
// ErrMissingBody rather than a generic not-found — callers must already
// know the row exists before calling Get.
func (s *Store) Get(collectionID, documentID string) ([]byte, error) {
	_, file := s.pathFor(collectionID, documentID)
	body, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMissingBody
		}
		return nil, fmt.Errorf("content: read %s: %w", file, err)
	}
	return body, nil
}

// Exists reports whether a body file is present.
func (s *Store) Exists(collectionID, documentID string) (bool, error) {
	_, file := s.pathFor(collectionID, documentID)
	_, err := os.Stat(file)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("content: stat %s: %w", file, err)
}

// Delete removes a body file. Deleting an already-absent file is not an error.
func (s *Store) Delete(collectionID, documentID string) error {
	_, file := s.pathFor(collectionID, documentID)
	if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("content: delete %s: %w", file, err)
	}
	return nil
}

// Orphans walks the whole body tree and returns the ids of body files
// whose corresponding document id is not in knownIDs. A body with no
// row is garbage; a maintenance pass can collect what this reports.
func (s *Store) Orphans(knownIDs map[string]bool) ([]string, error) {
	var orphans []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		const suffix = ".json"
		if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			return nil
		}
		id := name[:len(name)-len(suffix)]
		if !knownIDs[id] {
			orphans = append(orphans, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("content: walk %s: %w", s.root, err)
	}
	return orphans, nil
}
