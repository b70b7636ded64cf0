// Package dirsink is a Publisher that writes badges into a directory. Each
// upload gets a fresh file; Delete removes them again.
package dirsink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"weatherbadge/internal/state"
	"weatherbadge/pkg/logx"
)

type Sink struct {
	dir string
	log logx.Logger

	mu    sync.Mutex
	seq   int64
	files map[int64]string
}

func New(dir string, log logx.Logger) (*Sink, error) {
	if dir == "" {
		return nil, errors.New("dirsink: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dirsink: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sink{dir: dir, log: log, files: map[int64]string{}}, nil
}

func (s *Sink) Upload(ctx context.Context, png []byte) (state.AssetHandle, error) {
	if err := ctx.Err(); err != nil {
		return state.AssetHandle{}, err
	}
	name := uuid.NewString() + ".png"
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, png, 0o644); err != nil {
		return state.AssetHandle{}, fmt.Errorf("dirsink: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return state.AssetHandle{}, fmt.Errorf("dirsink: rename: %w", err)
	}

	s.mu.Lock()
	s.seq++
	id := s.seq
	s.files[id] = name
	s.mu.Unlock()

	s.log.Debug("badge written", logx.String("file", name), logx.Int("bytes", len(png)))
	return state.AssetHandle{ID: id, FileReference: []byte(name)}, nil
}

// Delete removes the files behind handles. Files already gone are ignored.
func (s *Sink) Delete(ctx context.Context, handles []state.AssetHandle) error {
	var errs []error
	for _, h := range handles {
		name := filepath.Base(string(h.FileReference))
		if name == "." || name == string(filepath.Separator) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		s.mu.Lock()
		delete(s.files, h.ID)
		s.mu.Unlock()
	}
	if len(errs) > 0 {
		return fmt.Errorf("dirsink: delete: %w", errors.Join(errs...))
	}
	s.log.Debug("badges deleted", logx.Int("count", len(handles)))
	return nil
}

func (s *Sink) Close() error { return nil }
