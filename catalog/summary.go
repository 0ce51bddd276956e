package catalog

import (
	"sort"
	"strings"

	"researchhub/models"
)

const topPapersCount = 5

// CategoryFacet is one category filter option.
type CategoryFacet struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Badge string `json:"badge"`
	Count int    `json:"count"`
}

// Facets lists the filter values present in the catalog.
type Facets struct {
	Categories []CategoryFacet `json:"categories"` // Sorted by code
	Strands    []string        `json:"strands"`    // Sorted ascending
	Years      []string        `json:"years"`      // Sorted descending
}

// Summary is the dashboard view of the catalog.
type Summary struct {
	TotalPapers    int            `json:"totalPapers"`
	TotalViews     int            `json:"totalViews"`
	TotalDownloads int            `json:"totalDownloads"`
	TotalAuthors   int            `json:"totalAuthors"` // Distinct author names
	ByCategory     map[string]int `json:"byCategory"`
	ByStrand       map[string]int `json:"byStrand"`
	ByYear         map[string]int `json:"byYear"`
	TopPapers      []models.Paper `json:"topPapers"` // Most viewed first
}

// Facets collects the distinct non-blank categories, strands and years.
func (c *Catalog) Facets() Facets {
	papers := c.Papers()

	categories := make(map[string]int)
	strands := make(map[string]struct{})
	years := make(map[string]struct{})
	for _, p := range papers {
		if strings.TrimSpace(p.Category) != "" {
			categories[p.Category]++
		}
		if strings.TrimSpace(p.Strand) != "" {
			strands[p.Strand] = struct{}{}
		}
		if strings.TrimSpace(p.Year) != "" {
			years[p.Year] = struct{}{}
		}
	}

	f := Facets{
		Categories: make([]CategoryFacet, 0, len(categories)),
		Strands:    sortedKeys(strands),
		Years:      sortedKeys(years),
	}
	for code, n := range categories {
		cat := models.ParseCategory(code)
		f.Categories = append(f.Categories, CategoryFacet{
			Code:  code,
			Label: models.CategoryLabel(code),
			Badge: cat.Badge(),
			Count: n,
		})
	}
	sort.Slice(f.Categories, func(i, j int) bool { return f.Categories[i].Code < f.Categories[j].Code })
	sort.Sort(sort.Reverse(sort.StringSlice(f.Years)))
	return f
}

// Summary computes catalog totals, breakdowns and the most viewed papers.
func (c *Catalog) Summary() Summary {
	papers := c.Papers()

	s := Summary{
		TotalPapers: len(papers),
		ByCategory:  make(map[string]int),
		ByStrand:    make(map[string]int),
		ByYear:      make(map[string]int),
	}
	authors := make(map[string]struct{})
	for _, p := range papers {
		s.TotalViews += p.Views
		s.TotalDownloads += p.Downloads
		for _, a := range p.Authors {
			authors[a] = struct{}{}
		}
		s.ByCategory[p.Category]++
		s.ByStrand[p.Strand]++
		s.ByYear[p.Year]++
	}
	s.TotalAuthors = len(authors)

	top := append([]models.Paper(nil), papers...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Views > top[j].Views })
	if len(top) > topPapersCount {
		top = top[:topPapersCount]
	}
	s.TopPapers = top
	if s.TopPapers == nil {
		s.TopPapers = []models.Paper{}
	}
	return s
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
