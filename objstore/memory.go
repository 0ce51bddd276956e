package objstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation names, used for fault injection and metrics labels.
const (
	OpList     = "list"
	OpUpload   = "upload"
	OpDownload = "download"
	OpRemove   = "remove"
)

type memObject struct {
	id          string
	data        []byte
	contentType string
	createdAt   time.Time
}

// MemoryBucket is an in-process Bucket. It backs the "memory" store mode and tests.
// Faults can be injected per operation, optionally for a single key.
type MemoryBucket struct {
	name        string
	objects     map[string]memObject
	faults      map[string]error // op or op+":"+key -> error
	lastCreated time.Time
	mu          sync.RWMutex
}

// NewMemoryBucket creates an empty in-memory bucket.
func NewMemoryBucket(name string) *MemoryBucket {
	return &MemoryBucket{
		name:    name,
		objects: make(map[string]memObject),
		faults:  make(map[string]error),
	}
}

// Name returns the bucket name.
func (b *MemoryBucket) Name() string { return b.name }

// SetFault makes every subsequent op fail with err. A nil err clears the fault.
func (b *MemoryBucket) SetFault(op string, err error) {
	b.setFault(op, err)
}

// SetKeyFault makes op fail with err for one key only.
func (b *MemoryBucket) SetKeyFault(op, key string, err error) {
	b.setFault(op+":"+key, err)
}

func (b *MemoryBucket) setFault(k string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.faults, k)
		return
	}
	b.faults[k] = err
}

func (b *MemoryBucket) fault(op, key string) error {
	if err, ok := b.faults[op]; ok {
		return err
	}
	if key != "" {
		if err, ok := b.faults[op+":"+key]; ok {
			return err
		}
	}
	return nil
}

// List returns the objects directly under prefix.
func (b *MemoryBucket) List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.fault(OpList, ""); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(b.objects))
	for key, obj := range b.objects {
		name, ok := relativeName(key, prefix)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Name:      name,
			ID:        obj.id,
			CreatedAt: obj.createdAt,
			Size:      int64(len(obj.data)),
		})
	}
	return applyListOptions(entries, opts), nil
}

// Upload stores data under key. Without upsert an existing key is an error.
func (b *MemoryBucket) Upload(ctx context.Context, key string, data []byte, contentType string, upsert bool) (UploadResult, error) {
	if key == "" {
		return UploadResult{}, ErrInvalidKey
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.fault(OpUpload, key); err != nil {
		return UploadResult{}, err
	}

	existing, exists := b.objects[key]
	if exists && !upsert {
		return UploadResult{}, fmt.Errorf("upload %s: %w", key, ErrObjectExists)
	}

	obj := memObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
	}
	if exists {
		obj.id = existing.id
		obj.createdAt = existing.createdAt
	} else {
		obj.id = uuid.NewString()
		obj.createdAt = b.nextCreated()
	}
	b.objects[key] = obj

	return UploadResult{ID: obj.id, Path: key}, nil
}

// nextCreated returns a strictly increasing creation time so listings order deterministically.
func (b *MemoryBucket) nextCreated() time.Time {
	now := time.Now().UTC()
	if !now.After(b.lastCreated) {
		now = b.lastCreated.Add(time.Microsecond)
	}
	b.lastCreated = now
	return now
}

// Download returns a copy of the object's bytes.
func (b *MemoryBucket) Download(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.fault(OpDownload, key); err != nil {
		return nil, err
	}

	obj, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("download %s: %w", key, ErrObjectNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

// Remove deletes keys. Missing keys are ignored.
func (b *MemoryBucket) Remove(ctx context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		if err := b.fault(OpRemove, key); err != nil {
			return err
		}
	}
	for _, key := range keys {
		delete(b.objects, key)
	}
	return nil
}

// Keys returns every stored key, for inspection in tests and admin tooling.
func (b *MemoryBucket) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	return keys
}
