package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for document names that are not a single
// path element
var ErrInvalidName = errors.New("invalid document name")

// Storage keeps the original documents behind archived scans
type Storage interface {
	// Put stores data under name and returns the name to reference it by
	Put(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
	Remove(name string) error
}

// DirStorage stores each document as a file in one directory
type DirStorage struct {
	dir string
}

// NewDirStorage creates dir if needed
func NewDirStorage(dir string) (*DirStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &DirStorage{dir: dir}, nil
}

func (d *DirStorage) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.dir, name), nil
}

// Put writes through a temporary file so a crash never leaves a partial
// document behind
func (d *DirStorage) Put(name string, data []byte) (string, error) {
	path, err := d.path(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("storing file: %w", err)
	}
	return name, nil
}

// Read returns a stored document
func (d *DirStorage) Read(name string) ([]byte, error) {
	path, err := d.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Remove deletes a stored document
func (d *DirStorage) Remove(name string) error {
	path, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
