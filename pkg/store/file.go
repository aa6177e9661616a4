package store

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nemanja-m/diskmr/pkg/core"
)

// FileStore keeps each unit in its own file under root. Files are written
// under a temporary name and renamed on close, so a reader never observes a
// partially written unit.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Root() string {
	return s.root
}

// Path returns the file that holds addr.
func (s *FileStore) Path(addr Address) string {
	return filepath.Join(s.root, addr.String())
}

func (s *FileStore) Create(addr Address) (io.WriteCloser, error) {
	path := s.Path(addr)
	if _, err := os.Lstat(path); err == nil {
		return nil, storeError("create", addr, core.ErrArtifactExists)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, storeError("create", addr, core.ErrArtifactExists)
		}
		return nil, storeError("create", addr, err)
	}
	return &fileWriter{File: f, addr: addr, final: path}, nil
}

func (s *FileStore) Open(addr Address) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(addr))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storeError("open", addr, core.ErrArtifactMissing)
		}
		return nil, storeError("open", addr, err)
	}
	return f, nil
}

func (s *FileStore) Remove(addr Address) error {
	if err := os.Remove(s.Path(addr)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storeError("remove", addr, core.ErrArtifactMissing)
		}
		return storeError("remove", addr, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

type fileWriter struct {
	*os.File
	addr  Address
	final string
}

func (w *fileWriter) Close() error {
	if err := w.File.Close(); err != nil {
		os.Remove(w.Name())
		return err
	}
	if _, err := os.Lstat(w.final); err == nil {
		os.Remove(w.Name())
		return storeError("commit", w.addr, core.ErrArtifactExists)
	}
	return os.Rename(w.Name(), w.final)
}
