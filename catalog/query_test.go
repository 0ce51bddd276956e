package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchhub/models"
)

// seedCatalog adds five local papers with distinct facets and view counts.
func seedCatalog(t *testing.T, f *fixture) []models.Paper {
	t.Helper()
	ctx := t.Context()
	inputs := []PaperInput{
		{Title: "Banana Fiber Paper", Authors: []string{"Ana Cruz"}, Abstract: "Fiber", Category: "SIP", Strand: "STEM", Year: "2022", Keywords: []string{"recycling"}},
		{Title: "apple Vinegar", Authors: []string{"Ben Reyes"}, Abstract: "Vinegar", Category: "SIP", Strand: "STEM", Year: "2023"},
		{Title: "Cafeteria Waste", Authors: []string{"Ana Cruz", "Li Wei"}, Abstract: "Waste audit", Category: "Capstone", Strand: "ABM", Year: "2023"},
		{Title: "Study Habits", Authors: []string{"Jo Santos"}, Abstract: "Habits", Category: "Action Research", Strand: "HUMSS", Year: "2024"},
		{Title: "Drone Mapping", Authors: []string{"Kai Lim"}, Abstract: "Maps", Category: "Field Study", Strand: "ICT", Year: "2021"},
	}
	var papers []models.Paper
	for i, in := range inputs {
		p, err := f.cat.AddLocal(ctx, in)
		require.NoError(t, err)
		_, err = f.cat.Bump(ctx, p.ID, i*2, i)
		require.NoError(t, err)
		papers = append(papers, p)
	}
	return papers
}

func titles(papers []models.Paper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.Title
	}
	return out
}

func TestQuery_Filters(t *testing.T) {
	f := newFixture(t)
	seedCatalog(t, f)

	testCases := []struct {
		name      string
		params    QueryParams
		wantTotal int
	}{
		{"All", QueryParams{}, 5},
		{"AllKeyword", QueryParams{Category: "all", Strand: "ALL"}, 5},
		{"Category", QueryParams{Category: "SIP"}, 2},
		{"CategoryAndYear", QueryParams{Category: "SIP", Year: "2023"}, 1},
		{"Strand", QueryParams{Strand: "HUMSS"}, 1},
		{"SearchTitleCaseInsensitive", QueryParams{Search: "VINEGAR"}, 1},
		{"SearchAuthor", QueryParams{Search: "ana cruz"}, 2},
		{"SearchKeyword", QueryParams{Search: "recycl"}, 1},
		{"SearchCategory", QueryParams{Search: "capstone"}, 1},
		{"NoMatch", QueryParams{Search: "quantum"}, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, total, err := f.cat.Query(tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTotal, total)
			assert.Len(t, page, tc.wantTotal)
		})
	}
}

func TestQuery_SortAndPaginate(t *testing.T) {
	f := newFixture(t)
	seedCatalog(t, f)

	page, _, err := f.cat.Query(QueryParams{SortBy: "title", Order: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"apple Vinegar", "Banana Fiber Paper", "Cafeteria Waste", "Drone Mapping", "Study Habits"}, titles(page))

	page, _, err = f.cat.Query(QueryParams{SortBy: "views"})
	require.NoError(t, err)
	assert.Equal(t, "Drone Mapping", page[0].Title, "most viewed first by default")

	page, _, err = f.cat.Query(QueryParams{SortBy: "year", Order: "asc", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Drone Mapping", "Banana Fiber Paper"}, titles(page))

	page, total, err := f.cat.Query(QueryParams{SortBy: "downloads", Order: "asc", Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []string{"Drone Mapping"}, titles(page))

	page, total, err = f.cat.Query(QueryParams{Page: 9})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, page)
	assert.NotNil(t, page)

	_, _, err = f.cat.Query(QueryParams{SortBy: "rating"})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, _, err = f.cat.Query(QueryParams{Order: "up"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestPaginatePapers_Bounds(t *testing.T) {
	papers := make([]models.Paper, 120)
	for i := range papers {
		papers[i].ID = fmt.Sprint(i)
	}
	assert.Len(t, paginatePapers(papers, 0, 0), defaultPageSize)
	assert.Len(t, paginatePapers(papers, 1, 500), maxPageSize)
	assert.Len(t, paginatePapers(papers, 2, 100), 20)
}

func TestFacets(t *testing.T) {
	f := newFixture(t)
	seedCatalog(t, f)

	facets := f.cat.Facets()
	require.Len(t, facets.Categories, 4)
	assert.Equal(t, CategoryFacet{Code: "Action Research", Label: "Action Research", Badge: "badge-action", Count: 1}, facets.Categories[0])
	assert.Equal(t, CategoryFacet{Code: "Capstone", Label: "Capstone Project", Badge: "badge-capstone", Count: 1}, facets.Categories[1])
	assert.Equal(t, CategoryFacet{Code: "Field Study", Label: "Field Study", Badge: "badge-default", Count: 1}, facets.Categories[2])
	assert.Equal(t, CategoryFacet{Code: "SIP", Label: "Science Investigatory Project", Badge: "badge-sip", Count: 2}, facets.Categories[3])
	assert.Equal(t, []string{"ABM", "HUMSS", "ICT", "STEM"}, facets.Strands)
	assert.Equal(t, []string{"2024", "2023", "2022", "2021"}, facets.Years)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)

	empty := f.cat.Summary()
	assert.Zero(t, empty.TotalPapers)
	assert.NotNil(t, empty.TopPapers)

	seedCatalog(t, f)
	s := f.cat.Summary()
	assert.Equal(t, 5, s.TotalPapers)
	assert.Equal(t, 0+2+4+6+8, s.TotalViews)
	assert.Equal(t, 0+1+2+3+4, s.TotalDownloads)
	assert.Equal(t, 5, s.TotalAuthors, "Ana Cruz is counted once")
	assert.Equal(t, 2, s.ByCategory["SIP"])
	assert.Equal(t, 2, s.ByStrand["STEM"])
	assert.Equal(t, 2, s.ByYear["2023"])
	require.Len(t, s.TopPapers, topPapersCount)
	assert.Equal(t, "Drone Mapping", s.TopPapers[0].Title)
	assert.Equal(t, "Banana Fiber Paper", s.TopPapers[4].Title)
}
