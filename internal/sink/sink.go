// Package sink delivers finished artifacts to files and remote stores.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact is one named output of a run.
type Artifact struct {
	Name        string
	RunID       string
	ContentType string
	Data        []byte
}

type Writer interface {
	Write(ctx context.Context, a Artifact) error
}

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Write(ctx context.Context, a Artifact) error {
	for _, w := range m.writers {
		if err := w.Write(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of underlying writers.
func (m *MultiWriter) Len() int { return len(m.writers) }

// Add appends a writer.
func (m *MultiWriter) Add(w Writer) { m.writers = append(m.writers, w) }

// FileWriter stores artifacts under a directory. Each write lands in a temp
// file first and is renamed into place.
type FileWriter struct {
	dir string
}

func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{dir: dir}, nil
}

// Path returns where an artifact with the given name is stored.
func (w *FileWriter) Path(name string) string { return filepath.Join(w.dir, name) }

func (w *FileWriter) Write(_ context.Context, a Artifact) error {
	return WriteAtomic(w.Path(a.Name), a.Data)
}

// WriteAtomic replaces path with data. Readers see either the old content or
// the complete new content.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Brokers splits a comma-separated bootstrap list.
func Brokers(bootstrap string) []string {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}

func objectKey(prefix, runID, name string) string {
	if runID != "" {
		name = runID + "/" + name
	}
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}
