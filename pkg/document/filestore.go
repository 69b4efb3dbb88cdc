package document

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileStore persists each document as its own JSON snapshot under a root
// directory, written via write-to-temp-then-rename so a reader never
// observes a half-written file (spec.md §4.2's durability requirement).
// This replaces the teacher's pkg/database SQLite-as-primary-store
// design; SQLite is repurposed by pkg/audit as a secondary append-only
// log instead (see SPEC_FULL.md, DESIGN.md).
type FileStore struct {
	dir    string
	log    *zap.Logger
	mirror Mirror

	mu sync.Mutex // serializes directory-wide operations (IDs, Count)
}

// Mirror is an optional, best-effort secondary sink a FileStore pushes
// snapshots to after every successful local Save. A Mirror failure never
// fails the Save call; it is only logged.
type Mirror interface {
	Put(ctx context.Context, id string, data []byte) error
}

// NewFileStore creates a FileStore rooted at dir, creating it if absent.
func NewFileStore(dir string, log *zap.Logger, mirror Mirror) (*FileStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("document: create store dir: %w", err)
	}
	return &FileStore{dir: dir, log: log, mirror: mirror}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) Load(ctx context.Context, id string) (*Document, bool, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("document: read %s: %w", id, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("document: decode %s: %w", id, err)
	}
	// Presence never survives a reload; the hub repopulates it as peers
	// reconnect.
	doc.ActiveUsers = map[string]Presence{}
	return &doc, true, nil
}

func (s *FileStore) Save(ctx context.Context, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("document: encode %s: %w", doc.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, doc.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("document: create temp file for %s: %w", doc.ID, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("document: write temp file for %s: %w", doc.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("document: sync temp file for %s: %w", doc.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("document: close temp file for %s: %w", doc.ID, err)
	}
	if err := os.Rename(tmpName, s.path(doc.ID)); err != nil {
		return fmt.Errorf("document: rename into place for %s: %w", doc.ID, err)
	}

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, doc.ID, data); err != nil {
			s.log.Warn("document mirror put failed", zap.String("documentId", doc.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("document: delete %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) Count(ctx context.Context) (int, error) {
	ids, err := s.IDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *FileStore) IDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("document: list store dir: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

func (s *FileStore) Close() error {
	return nil
}
