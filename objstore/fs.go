package objstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// objectMeta is persisted next to every object in an FSBucket.
type objectMeta struct {
	Key         string    `json:"key"`
	ID          string    `json:"id"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// FSBucket stores objects on local disk.
// Directory structure:
//
//	{root}/{bucket}/
//	  objects/{key}        # object bytes
//	  meta/{key}.json      # objectMeta
type FSBucket struct {
	name string
	dir  string
	mu   sync.RWMutex
}

// NewFSBucket creates (if needed) the bucket directories under root.
func NewFSBucket(root, name string) (*FSBucket, error) {
	if err := validateBucketName(name); err != nil {
		return nil, err
	}
	dir := filepath.Join(root, name)
	for _, sub := range []string{"objects", "meta"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket dir: %w", err)
		}
	}
	return &FSBucket{name: name, dir: dir}, nil
}

func validateBucketName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid bucket name %q", name)
	}
	return nil
}

// validateKey rejects keys that would escape the bucket directory.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

// Name returns the bucket name.
func (b *FSBucket) Name() string { return b.name }

func (b *FSBucket) objectPath(key string) string {
	return filepath.Join(b.dir, "objects", filepath.FromSlash(key))
}

func (b *FSBucket) metaPath(key string) string {
	return filepath.Join(b.dir, "meta", filepath.FromSlash(key)+".json")
}

// List returns the objects directly under prefix. prefix must be "" or end with "/".
func (b *FSBucket) List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	metaDir := filepath.Join(b.dir, "meta", filepath.FromSlash(strings.TrimSuffix(prefix, "/")))
	files, err := os.ReadDir(metaDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("list %s/%s: %w", b.name, prefix, err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(metaDir, f.Name()))
		if err != nil {
			continue
		}
		var meta objectMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		name, ok := relativeName(meta.Key, prefix)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Name:      name,
			ID:        meta.ID,
			CreatedAt: meta.CreatedAt,
			Size:      meta.Size,
		})
	}
	return applyListOptions(entries, opts), nil
}

// Upload writes data and its metadata atomically (temp file + rename).
func (b *FSBucket) Upload(ctx context.Context, key string, data []byte, contentType string, upsert bool) (UploadResult, error) {
	if err := validateKey(key); err != nil {
		return UploadResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	meta := objectMeta{
		Key:         key,
		ID:          uuid.NewString(),
		Size:        int64(len(data)),
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}

	existing, err := b.readMeta(key)
	switch {
	case err == nil:
		if !upsert {
			return UploadResult{}, fmt.Errorf("upload %s: %w", key, ErrObjectExists)
		}
		meta.ID = existing.ID
		meta.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrObjectNotFound):
		return UploadResult{}, err
	}

	if err := atomicWriteFile(b.objectPath(key), data); err != nil {
		return UploadResult{}, fmt.Errorf("write object %s: %w", key, err)
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return UploadResult{}, fmt.Errorf("marshal meta %s: %w", key, err)
	}
	if err := atomicWriteFile(b.metaPath(key), metaData); err != nil {
		return UploadResult{}, fmt.Errorf("write meta %s: %w", key, err)
	}

	return UploadResult{ID: meta.ID, Path: key}, nil
}

func (b *FSBucket) readMeta(key string) (objectMeta, error) {
	data, err := os.ReadFile(b.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return objectMeta{}, ErrObjectNotFound
		}
		return objectMeta{}, fmt.Errorf("read meta %s: %w", key, err)
	}
	var meta objectMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return objectMeta{}, fmt.Errorf("parse meta %s: %w", key, err)
	}
	return meta, nil
}

// Download returns the object's bytes.
func (b *FSBucket) Download(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	data, err := os.ReadFile(b.objectPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("download %s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	return data, nil
}

// Remove deletes keys. Missing keys are ignored.
func (b *FSBucket) Remove(ctx context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return err
		}
		for _, p := range []string{b.objectPath(key), b.metaPath(key)} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", key, err)
			}
		}
	}
	return nil
}

// atomicWriteFile writes to a temp file, fsyncs, then renames over path.
func atomicWriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
