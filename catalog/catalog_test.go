package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchhub/mirror"
	"researchhub/models"
	"researchhub/objstore"
	"researchhub/stats"
)

var fixedNow = time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

type fixture struct {
	cat    *Catalog
	docs   *objstore.MemoryBucket
	stats  *objstore.MemoryBucket
	mirror *mirror.FileMirror
}

// newFixture builds a catalog over in-memory buckets, a temp mirror and a fixed clock.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	m, err := mirror.NewFileMirror(filepath.Join(t.TempDir(), "mirror.json"), 0, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	f := &fixture{
		docs:   objstore.NewMemoryBucket("research-papers"),
		stats:  objstore.NewMemoryBucket("RESEARCH-STATS"),
		mirror: m,
	}
	f.cat = New(f.docs, f.stats, m, Options{
		PublicBaseURL: "/files/",
		Now:           func() time.Time { return fixedNow },
	})
	return f
}

// newOfflineFixture has a mirror but no buckets.
func newOfflineFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.cat = New(nil, nil, f.mirror, Options{Now: func() time.Time { return fixedNow }})
	f.docs, f.stats = nil, nil
	return f
}

func (f *fixture) put(t *testing.T, key, content string) objstore.UploadResult {
	t.Helper()
	res, err := f.docs.Upload(context.Background(), key, []byte(content), objstore.ContentTypeFor(key), false)
	require.NoError(t, err)
	return res
}

func (f *fixture) mirroredPapers(t *testing.T) []models.Paper {
	t.Helper()
	var papers []models.Paper
	found, err := mirror.GetJSON(context.Background(), f.mirror, mirror.KeyPapers, &papers)
	require.NoError(t, err)
	require.True(t, found, "catalog should be mirrored")
	return papers
}

func sampleInput() PaperInput {
	return PaperInput{
		Title:    "Solar Dryers for Rural Farms",
		Authors:  []string{"Ana Cruz", "Ben Reyes"},
		Abstract: "We build a dryer.",
		Category: "SIP",
		Strand:   "STEM",
		Year:     "2024",
		Keywords: []string{"solar"},
	}
}

// Empty listing, then one admin-added paper without a file.
func TestCatalog_EmptyThenAddLocal(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	papers := f.cat.Load(ctx)
	assert.Empty(t, papers)
	assert.NotNil(t, papers)

	p, err := f.cat.AddLocal(ctx, sampleInput())
	require.NoError(t, err)

	assert.Equal(t, 1, f.cat.Len())
	assert.Equal(t, models.StatusApproved, p.Status)
	assert.Equal(t, models.LocalFileURL, p.FileURL)
	assert.False(t, p.HasFile())
	assert.Len(t, f.mirroredPapers(t), 1)
}

func TestCatalog_GetReturnsCopy(t *testing.T) {
	f := newFixture(t)
	p, err := f.cat.AddLocal(t.Context(), sampleInput())
	require.NoError(t, err)

	got, ok := f.cat.Get(p.ID)
	require.True(t, ok)
	got.Authors[0] = "Changed"

	again, _ := f.cat.Get(p.ID)
	assert.Equal(t, "Ana Cruz", again.Authors[0])

	_, ok = f.cat.Get("missing")
	assert.False(t, ok)
}

func TestCatalog_BumpAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	p, err := f.cat.AddLocal(ctx, sampleInput())
	require.NoError(t, err)

	rec, err := f.cat.Bump(ctx, p.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.StatRecord{PaperID: p.ID, Views: 1, Downloads: 2, LastUpdated: fixedNow}, rec)
	assert.Equal(t, 1, f.mirroredPapers(t)[0].Views, "bumps are mirrored synchronously")

	_, err = f.cat.Bump(ctx, "missing", 1, 0)
	assert.ErrorIs(t, err, models.ErrNotFound)

	records := f.cat.ResetCounters(ctx)
	require.Len(t, records, 1)
	assert.Zero(t, records[0].Views)
	got, _ := f.cat.Get(p.ID)
	assert.Zero(t, got.Views)
	assert.Zero(t, got.Downloads)
}

func TestCatalog_Download(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	local, err := f.cat.AddLocal(ctx, sampleInput())
	require.NoError(t, err)
	_, _, err = f.cat.Download(ctx, local.ID)
	assert.ErrorIs(t, err, models.ErrNotFound, "papers without a file cannot be downloaded")

	_, _, err = f.cat.Download(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	uploaded, err := f.cat.Upload(ctx, sampleInput(), "dryer.pdf", []byte("%PDF"))
	require.NoError(t, err)
	p, data, err := f.cat.Download(ctx, uploaded.ID)
	require.NoError(t, err)
	assert.Equal(t, uploaded.ID, p.ID)
	assert.Equal(t, []byte("%PDF"), data)
}

func TestCatalog_StatRecordsRemovedOnDelete(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	p, err := f.cat.Upload(ctx, sampleInput(), "dryer.pdf", []byte("%PDF"))
	require.NoError(t, err)
	_, err = f.stats.Upload(ctx, stats.RecordKey(p.ID), []byte(`{"paperId":"x"}`), "application/json", true)
	require.NoError(t, err)

	_, err = f.cat.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, f.docs.Keys(), "document and sidecar are removed")
	assert.Empty(t, f.stats.Keys())
	assert.Zero(t, f.cat.Len())
	assert.Empty(t, f.mirroredPapers(t))
}
