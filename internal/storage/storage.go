// Package storage saves finished audio artifacts either to a local
// directory or to S3.
package storage

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Store persists a file under key and returns where it can be found.
type Store interface {
	Save(ctx context.Context, key, path, contentType string) (location string, err error)
}

// NewKey returns a sortable artifact key such as "audio/01J...7Q.mp3".
func NewKey(prefix, ext string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	key := id.String()
	if ext != "" {
		key += "." + strings.TrimPrefix(ext, ".")
	}
	if prefix != "" {
		key = strings.TrimSuffix(prefix, "/") + "/" + key
	}
	return key
}

// LocalStore copies artifacts into Dir.
type LocalStore struct {
	Dir string
}

func (s *LocalStore) Save(ctx context.Context, key, path, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create storage directory: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("move artifact into place: %w", err)
	}
	return dest, nil
}

// resolve keeps keys inside Dir.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.Dir, clean), nil
}
