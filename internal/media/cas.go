package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CAS writes blob bytes into a local content-addressed tree. The object path
// is derived purely from the digest, so concurrent writers of identical
// content converge on the same file.
type CAS struct {
	root string
}

// NewCAS creates a content-addressed store rooted at root.
func NewCAS(root string) (*CAS, error) {
	if root == "" {
		return nil, fmt.Errorf("cas root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve cas root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("create cas root: %w", err)
	}
	return &CAS{root: abs}, nil
}

// Key returns the storage key for a digest: sha256/<ab>/<cd>/<digest>.
func Key(digest string) string {
	return fmt.Sprintf("sha256/%s/%s/%s", digest[0:2], digest[2:4], digest)
}

// Write persists data under its digest-derived key. Writing an object that
// already exists is a no-op; the temp-file-then-rename dance means a failed
// write never leaves a referencable partial object.
func (c *CAS) Write(digest string, data []byte) (string, error) {
	key := Key(digest)
	dst := filepath.Join(c.root, filepath.FromSlash(key))

	if _, err := os.Stat(dst); err == nil {
		return key, nil
	}

	tmp, err := os.CreateTemp(filepath.Join(c.root, "tmp"), "blob-*")
	if err != nil {
		return "", fmt.Errorf("cas temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("cas write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("cas close: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("cas mkdir: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		// A concurrent writer with identical content may have won the rename.
		if _, statErr := os.Stat(dst); statErr == nil {
			os.Remove(tmpPath)
			return key, nil
		}
		os.Remove(tmpPath)
		return "", fmt.Errorf("cas rename: %w", err)
	}
	return key, nil
}

// Open returns a reader for a stored object key.
func (c *CAS) Open(key string) (io.ReadCloser, error) {
	path, err := c.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cas object %s: %w", key, os.ErrNotExist)
		}
		return nil, fmt.Errorf("cas open: %w", err)
	}
	return f, nil
}

func (c *CAS) pathFromKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." ||
		len(clean) >= 3 && clean[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(c.root, clean), nil
}
