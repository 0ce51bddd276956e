package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"researchhub/models"
	"researchhub/objstore"
	"researchhub/stats"
)

// Load rebuilds the catalog from the documents bucket. It never fails: a listing error
// yields an empty catalog and the mirror is overwritten with it, so stale data is not served.
// Without a documents bucket it falls back to LoadLocal.
func (c *Catalog) Load(ctx context.Context) []models.Paper {
	if c.docs == nil {
		return c.LoadLocal(ctx)
	}

	entries, err := c.docs.List(ctx, "", objstore.ListOptions{
		Limit:  c.opts.ListLimit,
		SortBy: objstore.SortByCreatedAt,
		Desc:   true,
	})
	if err != nil {
		log.Error().Err(err).Str("bucket", c.docs.Name()).Msg("listing documents failed, clearing catalog")
		c.mu.Lock()
		c.replace(ctx, []models.Paper{})
		c.mu.Unlock()
		return []models.Paper{}
	}

	papers := c.buildPapers(ctx, entries)
	c.overlayStats(ctx, papers)

	c.mu.Lock()
	c.replace(ctx, papers)
	c.mu.Unlock()

	log.Info().Int("papers", len(papers)).Str("bucket", c.docs.Name()).Msg("loaded catalog from object store")
	return clonePapers(papers)
}

// buildPapers turns a listing into papers, one per pdf/docx object, in listing order.
func (c *Catalog) buildPapers(ctx context.Context, entries []objstore.Entry) []models.Paper {
	sidecars := make(map[string]bool)
	var documents []objstore.Entry
	for _, e := range entries {
		switch extension(e.Name) {
		case "json":
			sidecars[baseName(e.Name)] = true
		case "pdf", "docx":
			documents = append(documents, e)
		}
	}

	papers := make([]models.Paper, len(documents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.FetchWorkers)
	now := c.now()

	for i, doc := range documents {
		g.Go(func() error {
			var meta *models.PaperMetadata
			if base := baseName(doc.Name); sidecars[base] {
				m, err := c.fetchSidecar(gctx, base+".json")
				if err != nil {
					log.Warn().Err(err).Str("file", doc.Name).Msg("sidecar unusable, parsing filename")
				} else {
					meta = m
				}
			}
			papers[i] = c.paperFromEntry(doc, meta, now)
			return nil
		})
	}
	_ = g.Wait() // Per-file errors are logged, never returned

	return papers
}

func (c *Catalog) fetchSidecar(ctx context.Context, key string) (*models.PaperMetadata, error) {
	data, err := c.docs.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	return ParseSidecar(data)
}

// ParseSidecar reads sidecar JSON leniently: authors and keywords may be an array or a
// comma separated string, year and counters may be numbers or strings.
func ParseSidecar(data []byte) (*models.PaperMetadata, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", models.ErrParseFailure)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: sidecar is not an object", models.ErrParseFailure)
	}

	meta := &models.PaperMetadata{
		Title:     doc.Get("title").String(),
		Authors:   stringList(doc.Get("authors")),
		Abstract:  doc.Get("abstract").String(),
		Category:  doc.Get("category").String(),
		Strand:    doc.Get("strand").String(),
		Year:      doc.Get("year").String(),
		Adviser:   doc.Get("adviser").String(),
		Keywords:  stringList(doc.Get("keywords")),
		Views:     int(doc.Get("views").Int()),
		Downloads: int(doc.Get("downloads").Int()),
	}
	if t, err := time.Parse(time.RFC3339, doc.Get("uploadedAt").String()); err == nil {
		meta.UploadedAt = t
	}
	return meta, nil
}

func stringList(r gjson.Result) []string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	if r.IsArray() {
		var out []string
		for _, v := range r.Array() {
			out = append(out, v.String())
		}
		return out
	}
	return SplitList(r.String())
}

// paperFromEntry builds a paper from a listed document and its sidecar, if any.
// Sidecar metadata always wins over what the filename encodes.
func (c *Catalog) paperFromEntry(doc objstore.Entry, meta *models.PaperMetadata, now time.Time) models.Paper {
	p := models.Paper{
		ID:        doc.ID,
		Name:      doc.Name,
		FileURL:   c.fileURL(doc.Name),
		FileName:  doc.Name,
		Format:    extension(doc.Name),
		Size:      doc.Size,
		CreatedAt: doc.CreatedAt.UTC(),
	}

	if meta != nil {
		p.MetadataSource = models.MetadataSourceJSON
		p.Title = meta.Title
		p.Authors = meta.Authors
		p.Abstract = meta.Abstract
		p.Category = meta.Category
		p.Strand = meta.Strand
		p.Year = meta.Year
		p.Adviser = meta.Adviser
		p.Keywords = meta.Keywords
		p.Views = meta.Views
		p.Downloads = meta.Downloads
	} else {
		p.MetadataSource = models.MetadataSourceFilename
		if fm, ok := ParseFilenameMetadata(doc.Name); ok {
			p.Title = fm.Title
			p.Authors = fm.Authors
			p.Category = fm.Category
			p.Strand = fm.Strand
			p.Year = fm.Year
		}
	}

	if strings.TrimSpace(p.Title) == "" {
		p.Title = titleFromFilename(doc.Name)
	}
	normalize(&p, now)
	return p
}

// overlayStats replaces counters with the stats bucket's records where present.
func (c *Catalog) overlayStats(ctx context.Context, papers []models.Paper) {
	if c.stats == nil || len(papers) == 0 {
		return
	}
	records, err := stats.LoadRecords(ctx, c.stats, c.opts.StatsListLimit)
	if err != nil {
		log.Warn().Err(err).Msg("stat overlay skipped")
		return
	}
	for i := range papers {
		if rec, ok := records[papers[i].ID]; ok {
			papers[i].Views = max(rec.Views, 0)
			papers[i].Downloads = max(rec.Downloads, 0)
		}
	}
}
