package catalog

import (
	"strconv"
	"strings"
	"time"

	"researchhub/models"
)

// NormalizeAuthors drops blank and "undefined" entries and trims the rest.
// An empty result becomes the single unknown author placeholder.
func NormalizeAuthors(authors []string) []string {
	out := make([]string, 0, len(authors))
	for _, a := range authors {
		a = strings.TrimSpace(a)
		if a == "" || a == "undefined" {
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return []string{models.UnknownAuthor}
	}
	return out
}

// NormalizeAbstract replaces a blank abstract with the placeholder text.
func NormalizeAbstract(abstract string) string {
	if strings.TrimSpace(abstract) == "" {
		return models.NoAbstract
	}
	return abstract
}

// SplitList splits a comma separated form value, trimming entries and dropping blanks.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func currentYear(now time.Time) string {
	return strconv.Itoa(now.Year())
}

// normalize applies every default to a paper in place.
func normalize(p *models.Paper, now time.Time) {
	if strings.TrimSpace(p.Title) == "" && p.FileName != "" {
		p.Title = titleFromFilename(p.FileName)
	}
	p.Authors = NormalizeAuthors(p.Authors)
	p.Abstract = NormalizeAbstract(p.Abstract)
	p.Category = orDefault(p.Category, models.DefaultCategory)
	p.Strand = orDefault(p.Strand, models.DefaultStrand)
	p.Year = orDefault(p.Year, currentYear(now))
	if p.Keywords == nil {
		p.Keywords = []string{}
	}
	if p.Views < 0 {
		p.Views = 0
	}
	if p.Downloads < 0 {
		p.Downloads = 0
	}
	p.Status = models.StatusApproved
}
