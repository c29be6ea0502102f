package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
)

// FileBackend keeps one file per account under basePath/accounts.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

func NewFileBackend(basePath string) (*FileBackend, error) {
	dir := filepath.Join(basePath, "accounts")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create accounts directory")
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(addr common.Address) string {
	return filepath.Join(f.dir, strings.ToLower(addr.Hex())+".acct")
}

func (f *FileBackend) Insert(_ context.Context, addr common.Address, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(addr)
	if _, err := os.Stat(path); err == nil {
		return ErrAccountExists
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to stat account file")
	}
	return writeFileAtomic(path, data)
}

func (f *FileBackend) Get(_ context.Context, addr common.Address) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(addr))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Wrap(err, "failed to read account file")
	}
	return data, nil
}

func (f *FileBackend) Put(_ context.Context, addr common.Address, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(addr)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrAccountNotFound
		}
		return errors.Wrap(err, "failed to stat account file")
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes to a temporary file first and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write temporary file")
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to rename temporary file")
	}
	return nil
}
