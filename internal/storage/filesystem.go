// Package storage keeps uploaded and enhanced photos on local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Read for keys with no stored object.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidKey is returned for empty keys and keys leaving the root.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Photo kinds used as the second key segment.
const (
	KindOriginal = "original"
	KindEnhanced = "enhanced"
)

const anonymousOwner = "anonymous"

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// FileStore lays photos out as <root>/<owner>/<kind>/<uuid><ext>.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Root is the directory objects live under.
func (s *FileStore) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

// NewKey returns an unused key for a photo of the given kind and mime type.
func NewKey(owner, kind, mimeType string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		owner = anonymousOwner
	}
	return path.Join(owner, kind, uuid.NewString()+ExtensionFor(mimeType))
}

// ExtensionFor maps an image mime type to a file extension, ".bin" when unknown.
func ExtensionFor(mimeType string) string {
	if ext, ok := extensions[strings.ToLower(strings.TrimSpace(mimeType))]; ok {
		return ext
	}
	return ".bin"
}

// ContentType guesses the mime type of a stored key from its extension.
func ContentType(key string) string {
	if ext := path.Ext(key); ext != "" && ext != ".bin" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}

// Owns reports whether key sits under owner's prefix.
func Owns(owner, key string) bool {
	clean, err := cleanKey(key)
	if err != nil || strings.TrimSpace(owner) == "" {
		return false
	}
	return strings.HasPrefix(clean, owner+"/")
}

// Write stores data under key and returns the cleaned key. Readers never see
// a partly written object.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	full, clean, err := s.locate(ctx, key)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("storage: write %s: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", clean, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("storage: chmod %s: %w", clean, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("storage: commit %s: %w", clean, err)
	}
	return clean, nil
}

// Read returns the object at key.
func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	full, clean, err := s.locate(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("storage: read %s: %w", clean, err)
	}
	return data, nil
}

// Delete removes the objects at keys. Missing objects are skipped; the first
// other failure is returned after every key was tried.
func (s *FileStore) Delete(ctx context.Context, keys ...string) error {
	var first error
	for _, key := range keys {
		full, clean, err := s.locate(ctx, key)
		if err == nil {
			if err = os.Remove(full); errors.Is(err, fs.ErrNotExist) {
				err = nil
			} else if err != nil {
				err = fmt.Errorf("storage: delete %s: %w", clean, err)
			}
		}
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *FileStore) locate(ctx context.Context, key string) (full, clean string, err error) {
	if s == nil {
		return "", "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if clean, err = cleanKey(key); err != nil {
		return "", "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), clean, nil
}

// cleanKey turns key into a slash-separated path that stays inside the root.
func cleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	key = path.Clean(strings.TrimLeft(key, "/"))
	if !fs.ValidPath(key) || key == "." {
		return "", ErrInvalidKey
	}
	return key, nil
}
