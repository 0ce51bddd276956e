package catalog

import (
	"fmt"
	"sort"
	"strings"

	"researchhub/models"
)

// QueryParams holds all parameters for querying papers.
type QueryParams struct {
	Category string // Empty or "all" matches any
	Strand   string
	Year     string
	Search   string // Case-insensitive substring over the searchable text
	SortBy   string // "created" (default), "views", "downloads", "title", "year"
	Order    string // "asc", "desc" (default)
	Page     int    // 1-based page number
	Limit    int    // Max items per page (max 100)
}

// Query filters, sorts and paginates the catalog. It returns the page and the total match count.
func (c *Catalog) Query(params QueryParams) ([]models.Paper, int, error) {
	all := c.Papers()

	filtered := make([]models.Paper, 0, len(all))
	search := strings.ToLower(strings.TrimSpace(params.Search))
	for _, p := range all {
		if !matchesFacet(params.Category, p.Category) ||
			!matchesFacet(params.Strand, p.Strand) ||
			!matchesFacet(params.Year, p.Year) {
			continue
		}
		if search != "" && !strings.Contains(searchableText(p), search) {
			continue
		}
		filtered = append(filtered, p)
	}

	total := len(filtered)

	if err := sortPapers(filtered, params.SortBy, params.Order); err != nil {
		return nil, 0, err
	}

	return paginatePapers(filtered, params.Page, params.Limit), total, nil
}

func matchesFacet(want, have string) bool {
	return want == "" || strings.EqualFold(want, "all") || want == have
}

// searchableText joins title, abstract, authors, category, strand and keywords in lower case.
func searchableText(p models.Paper) string {
	parts := make([]string, 0, 4+len(p.Authors)+len(p.Keywords))
	parts = append(parts, p.Title, p.Abstract)
	parts = append(parts, p.Authors...)
	parts = append(parts, p.Category, p.Strand)
	parts = append(parts, p.Keywords...)
	return strings.ToLower(strings.Join(parts, " "))
}

// --- Sorting Helper ---
func sortPapers(papers []models.Paper, sortBy, order string) error {
	var less func(i, j int) bool
	switch strings.ToLower(sortBy) {
	case "created", "":
		less = func(i, j int) bool { return papers[i].CreatedAt.Before(papers[j].CreatedAt) }
	case "views":
		less = func(i, j int) bool { return papers[i].Views < papers[j].Views }
	case "downloads":
		less = func(i, j int) bool { return papers[i].Downloads < papers[j].Downloads }
	case "title":
		less = func(i, j int) bool { return strings.ToLower(papers[i].Title) < strings.ToLower(papers[j].Title) }
	case "year":
		less = func(i, j int) bool { return papers[i].Year < papers[j].Year }
	default:
		return fmt.Errorf("%w: invalid sort_by value '%s', expected 'created', 'views', 'downloads', 'title' or 'year'", models.ErrValidation, sortBy)
	}

	switch strings.ToLower(order) {
	case "desc", "":
		asc := less
		less = func(i, j int) bool { return asc(j, i) }
	case "asc":
	default:
		return fmt.Errorf("%w: invalid order value '%s', expected 'asc' or 'desc'", models.ErrValidation, order)
	}

	sort.SliceStable(papers, less)
	return nil
}

// --- Pagination Helper ---
const (
	defaultPageSize = 9
	maxPageSize     = 100
)

func paginatePapers(papers []models.Paper, page, limit int) []models.Paper {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	start := (page - 1) * limit
	if start >= len(papers) {
		return []models.Paper{} // Page is out of bounds
	}
	end := min(start+limit, len(papers))
	return papers[start:end]
}
