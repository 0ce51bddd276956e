// Package objstore is the capability wrapper over the remote buckets that hold
// documents, metadata sidecars, user records and stat records.
package objstore

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"
)

// Entry is one listed object. Name is relative to the listed prefix.
type Entry struct {
	Name      string    `json:"name"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
}

// Sort columns understood by List.
const (
	SortByName      = "name"
	SortByCreatedAt = "created_at"
)

// ListOptions bounds and orders a listing.
type ListOptions struct {
	Limit  int    // 0 means no limit
	SortBy string // SortByName (default) or SortByCreatedAt
	Desc   bool
}

// UploadResult identifies a stored object.
type UploadResult struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Bucket is the list/upload/download/remove capability over one logical bucket.
// Listings are non-recursive: objects nested below prefix in a deeper folder are skipped.
type Bucket interface {
	Name() string
	List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error)
	Upload(ctx context.Context, key string, data []byte, contentType string, upsert bool) (UploadResult, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, keys []string) error
}

// relativeName strips prefix from key and reports whether key sits directly under prefix.
func relativeName(key, prefix string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(key, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// applyListOptions sorts and truncates entries in place.
func applyListOptions(entries []Entry, opts ListOptions) []Entry {
	less := func(i, j int) bool { return entries[i].Name < entries[j].Name }
	if opts.SortBy == SortByCreatedAt {
		less = func(i, j int) bool {
			if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
				return entries[i].Name < entries[j].Name
			}
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
	}
	if opts.Desc {
		asc := less
		less = func(i, j int) bool { return asc(j, i) }
	}
	sort.SliceStable(entries, less)

	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	return entries
}

// ContentTypeFor guesses a content type from the object extension.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".json":
		return "application/json"
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
