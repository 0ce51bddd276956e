package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"researchhub/models"
	"researchhub/objstore"
	"researchhub/stats"
)

// PaperInput is the metadata submitted with an upload or an admin add.
type PaperInput struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Abstract string   `json:"abstract"`
	Category string   `json:"category"`
	Strand   string   `json:"strand"`
	Year     string   `json:"year"`
	Adviser  string   `json:"adviser"`
	Keywords []string `json:"keywords"`
}

// Validate checks the required fields.
func (in PaperInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if len(SplitList(strings.Join(in.Authors, ","))) == 0 {
		missing = append(missing, "authors")
	}
	if strings.TrimSpace(in.Abstract) == "" {
		missing = append(missing, "abstract")
	}
	if strings.TrimSpace(in.Category) == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(in.Strand) == "" {
		missing = append(missing, "strand")
	}
	if strings.TrimSpace(in.Year) == "" {
		missing = append(missing, "year")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", models.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// PaperPatch is an admin edit. Nil fields are left unchanged.
type PaperPatch struct {
	Title    *string   `json:"title"`
	Authors  *[]string `json:"authors"`
	Abstract *string   `json:"abstract"`
	Category *string   `json:"category"`
	Strand   *string   `json:"strand"`
	Year     *string   `json:"year"`
	Adviser  *string   `json:"adviser"`
	Keywords *[]string `json:"keywords"`
}

func sidecarOf(p models.Paper) models.PaperMetadata {
	return models.PaperMetadata{
		Title:      p.Title,
		Authors:    p.Authors,
		Abstract:   p.Abstract,
		Category:   p.Category,
		Strand:     p.Strand,
		Year:       p.Year,
		Adviser:    p.Adviser,
		Keywords:   p.Keywords,
		Views:      p.Views,
		Downloads:  p.Downloads,
		UploadedAt: p.CreatedAt,
	}
}

// uploadSidecar writes the metadata JSON next to a document. Failures are only logged.
func (c *Catalog) uploadSidecar(ctx context.Context, base string, meta models.PaperMetadata, upsert bool) {
	data, err := json.Marshal(meta)
	if err != nil {
		log.Error().Err(err).Str("file", base).Msg("failed to encode sidecar")
		return
	}
	if _, err := c.docs.Upload(ctx, base+".json", data, "application/json", upsert); err != nil {
		log.Error().Err(err).Str("file", base+".json").Msg("failed to save sidecar")
	}
}

// Upload stores a document and its sidecar and prepends the new paper.
// Only a failure to store the document itself is returned.
func (c *Catalog) Upload(ctx context.Context, in PaperInput, fileName string, data []byte) (models.Paper, error) {
	if c.docs == nil {
		return models.Paper{}, models.ErrStoreUnavailable
	}
	if err := in.Validate(); err != nil {
		return models.Paper{}, err
	}
	ext := extension(fileName)
	if ext != "pdf" && ext != "docx" {
		return models.Paper{}, fmt.Errorf("%w: only pdf and docx files are accepted", models.ErrValidation)
	}
	if len(data) == 0 {
		return models.Paper{}, fmt.Errorf("%w: file is empty", models.ErrValidation)
	}
	if int64(len(data)) > c.opts.MaxUploadSize {
		return models.Paper{}, fmt.Errorf("%w: file exceeds %d bytes", models.ErrValidation, c.opts.MaxUploadSize)
	}

	now := c.now()
	base := EncodeBaseName(in, now)
	key := base + "." + ext

	res, err := c.docs.Upload(ctx, key, data, objstore.ContentTypeFor(key), false)
	if err != nil {
		return models.Paper{}, fmt.Errorf("%w: %s: %v", models.ErrUploadFailure, key, err)
	}

	p := models.Paper{
		ID:             res.ID,
		Name:           key,
		Title:          in.Title,
		Authors:        in.Authors,
		Abstract:       in.Abstract,
		Category:       in.Category,
		Strand:         in.Strand,
		Year:           in.Year,
		Adviser:        in.Adviser,
		Keywords:       in.Keywords,
		FileURL:        c.fileURL(key),
		FileName:       key,
		Format:         ext,
		Size:           int64(len(data)),
		MetadataSource: models.MetadataSourceJSON,
		CreatedAt:      now,
	}
	if p.ID == "" {
		p.ID = localID(now)
	}
	normalize(&p, now)

	c.uploadSidecar(ctx, base, sidecarOf(p), false)

	c.mu.Lock()
	c.replace(ctx, append([]models.Paper{p}, c.papers...))
	c.mu.Unlock()

	log.Info().Str("paper_id", p.ID).Str("file", key).Msg("uploaded paper")
	return clonePaper(p), nil
}

// AddLocal adds a paper without a file. The sidecar is still written when a store is configured.
func (c *Catalog) AddLocal(ctx context.Context, in PaperInput) (models.Paper, error) {
	if err := in.Validate(); err != nil {
		return models.Paper{}, err
	}

	now := c.now()
	base := EncodeBaseName(in, now)

	p := models.Paper{
		Name:      base + ".pdf",
		Title:     in.Title,
		Authors:   in.Authors,
		Abstract:  in.Abstract,
		Category:  in.Category,
		Strand:    in.Strand,
		Year:      in.Year,
		Adviser:   in.Adviser,
		Keywords:  in.Keywords,
		FileURL:   models.LocalFileURL,
		FileName:  base + ".pdf",
		Format:    "pdf",
		CreatedAt: now,
	}
	normalize(&p, now)

	if c.docs != nil {
		c.uploadSidecar(ctx, base, sidecarOf(p), false)
	}

	c.mu.Lock()
	p.ID = c.uniqueLocalID(now)
	c.replace(ctx, append([]models.Paper{p}, c.papers...))
	c.mu.Unlock()

	log.Info().Str("paper_id", p.ID).Msg("added paper without file")
	return clonePaper(p), nil
}

func localID(now time.Time) string {
	return "paper_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// uniqueLocalID returns paper_<unixMillis>, stepping forward past IDs already taken.
// Must be called with mu held.
func (c *Catalog) uniqueLocalID(now time.Time) string {
	ms := now.UnixMilli()
	for {
		id := "paper_" + strconv.FormatInt(ms, 10)
		if c.indexOf(id) < 0 {
			return id
		}
		ms++
	}
}

// Delete removes a paper everywhere: document, sidecar, stat record, catalog and mirror.
// Remote failures are logged; the paper is dropped locally regardless.
func (c *Catalog) Delete(ctx context.Context, id string) (models.Paper, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return models.Paper{}, fmt.Errorf("paper %s: %w", id, models.ErrNotFound)
	}
	p := c.papers[i]

	if c.docs != nil && p.Name != "" {
		keys := []string{baseName(p.Name) + ".json"}
		if p.HasFile() {
			keys = append(keys, p.FileName)
		}
		if err := c.docs.Remove(ctx, keys); err != nil {
			log.Error().Err(err).Str("paper_id", id).Msg("failed to remove paper files")
		}
	}
	if c.stats != nil {
		if err := c.stats.Remove(ctx, []string{stats.RecordKey(id)}); err != nil {
			log.Error().Err(err).Str("paper_id", id).Msg("failed to remove stat record")
		}
	}

	papers := make([]models.Paper, 0, len(c.papers)-1)
	papers = append(papers, c.papers[:i]...)
	papers = append(papers, c.papers[i+1:]...)
	c.replace(ctx, papers)

	log.Info().Str("paper_id", id).Msg("deleted paper")
	return p, nil
}

// Update applies an admin edit and rewrites the sidecar when the paper lives in the store.
func (c *Catalog) Update(ctx context.Context, id string, patch PaperPatch) (models.Paper, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return models.Paper{}, fmt.Errorf("paper %s: %w", id, models.ErrNotFound)
	}
	p := clonePaper(c.papers[i])

	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return models.Paper{}, fmt.Errorf("%w: title cannot be empty", models.ErrValidation)
		}
		p.Title = *patch.Title
	}
	if patch.Authors != nil {
		p.Authors = *patch.Authors
	}
	if patch.Abstract != nil {
		p.Abstract = *patch.Abstract
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Strand != nil {
		p.Strand = *patch.Strand
	}
	if patch.Year != nil {
		p.Year = *patch.Year
	}
	if patch.Adviser != nil {
		p.Adviser = *patch.Adviser
	}
	if patch.Keywords != nil {
		p.Keywords = *patch.Keywords
	}
	normalize(&p, c.now())

	if c.docs != nil && p.Name != "" {
		c.uploadSidecar(ctx, baseName(p.Name), sidecarOf(p), true)
		if p.HasFile() {
			p.MetadataSource = models.MetadataSourceJSON
		}
	}

	c.papers[i] = p
	c.persist(ctx)

	log.Info().Str("paper_id", id).Msg("updated paper")
	return clonePaper(p), nil
}
