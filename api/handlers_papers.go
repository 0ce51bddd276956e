package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"researchhub/catalog"
	"researchhub/hub"
	"researchhub/models"
	"researchhub/objstore"
	"researchhub/utils"
)

// respondError maps store and application errors to a JSON error response.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, objstore.ErrObjectNotFound):
		utils.GinNotFound(c, "File not available")
		return
	case errors.Is(err, objstore.ErrInvalidKey):
		utils.GinBadRequest(c, err.Error())
		return
	}
	utils.GinFromError(c, err)
}

// --- List Papers ---

// GetPapersResponse is one page of papers.
type GetPapersResponse struct {
	Data  []models.Paper `json:"data"`
	Total int            `json:"total"` // Matches before pagination
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// GetPapersHandler filters, searches, sorts and paginates the catalog.
// @Summary      List Papers
// @Description  Returns one page of papers. `category`, `strand` and `year` filter by exact value ("all" or empty matches any).
// @Description  `q` is a case-insensitive search over title, abstract, authors, category, strand and keywords.
// @Tags         Papers
// @Produce      json
// @Param        category  query  string  false  "Category filter"
// @Param        strand    query  string  false  "Strand filter"
// @Param        year      query  string  false  "Year filter"
// @Param        q         query  string  false  "Search text"
// @Param        sort_by   query  string  false  "created, views, downloads, title or year" default(created)
// @Param        order     query  string  false  "asc or desc" default(desc)
// @Param        page      query  int     false  "Page number" minimum(1) default(1)
// @Param        limit     query  int     false  "Papers per page" minimum(1) maximum(100) default(9)
// @Success      200  {object}  GetPapersResponse
// @Failure      400  {object}  utils.APIError "Invalid sort, order, page or limit"
// @Router       /papers [get]
func GetPapersHandler(c *gin.Context, h *hub.Hub) {
	page, errPage := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, errLimit := strconv.Atoi(c.DefaultQuery("limit", "9"))
	if errPage != nil || errLimit != nil || page < 1 || limit < 1 {
		utils.GinBadRequest(c, "Invalid 'page' or 'limit' query parameter. Must be positive integers.")
		return
	}

	params := catalog.QueryParams{
		Category: c.Query("category"),
		Strand:   c.Query("strand"),
		Year:     c.Query("year"),
		Search:   c.Query("q"),
		SortBy:   c.Query("sort_by"),
		Order:    c.Query("order"),
		Page:     page,
		Limit:    limit,
	}
	papers, total, err := h.Catalog.Query(params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GetPapersResponse{
		Data:  papers,
		Total: total,
		Page:  page,
		Limit: min(limit, 100),
	})
}

// --- Get Paper ---

// GetPaperHandler returns one paper and counts a view, once per session.
// @Summary      Get Paper
// @Description  Opening a paper counts one view the first time a session opens it.
// @Tags         Papers
// @Produce      json
// @Param        id   path  string  true  "Paper ID"
// @Success      200  {object}  models.Paper
// @Failure      404  {object}  utils.APIError "Paper not found"
// @Router       /papers/{id} [get]
func GetPaperHandler(c *gin.Context, h *hub.Hub) {
	id := c.Param("id")
	sess, ok := currentSession(c)
	if !ok {
		utils.GinInternalServerError(c, "Session not found in context.")
		return
	}

	if _, _, err := h.Stats.RecordView(c.Request.Context(), sess, id); err != nil {
		respondError(c, err)
		return
	}

	p, found := h.Catalog.Get(id)
	if !found {
		utils.GinNotFound(c, fmt.Sprintf("Paper '%s' not found", id))
		return
	}
	c.JSON(http.StatusOK, p)
}

// --- Download Paper ---

// DownloadPaperHandler counts a download and streams the document.
// @Summary      Download Paper
// @Description  Every request counts one download, including papers that have no file attached.
// @Tags         Papers
// @Produce      application/pdf
// @Param        id   path  string  true  "Paper ID"
// @Success      200  {file}    binary
// @Failure      404  {object}  utils.APIError "Paper or file not found"
// @Failure      503  {object}  utils.APIError "No object store configured"
// @Router       /papers/{id}/download [get]
func DownloadPaperHandler(c *gin.Context, h *hub.Hub) {
	id := c.Param("id")
	ctx := c.Request.Context()

	if _, err := h.Stats.RecordDownload(ctx, id); err != nil {
		respondError(c, err)
		return
	}

	p, data, err := h.Catalog.Download(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.FileName))
	c.Data(http.StatusOK, objstore.ContentTypeFor(p.FileName), data)
}

// --- Upload Paper ---

// UploadPaperHandler stores a PDF or DOCX with its metadata.
// @Summary      Upload Paper
// @Description  Multipart form: `file` plus `title`, `authors` (comma separated), `abstract`, `category`, `strand`, `year`, and optional `adviser` and `keywords`.
// @Tags         Papers
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  models.Paper
// @Failure      400  {object}  utils.APIError "Missing fields or unsupported file"
// @Failure      401  {object}  utils.APIError "Sign in required"
// @Failure      502  {object}  utils.APIError "Object store rejected the upload"
// @Failure      503  {object}  utils.APIError "No object store configured"
// @Router       /papers [post]
func UploadPaperHandler(c *gin.Context, h *hub.Hub) {
	fh, err := c.FormFile("file")
	if err != nil {
		utils.GinBadRequest(c, "A 'file' form field is required.")
		return
	}
	if fh.Size > h.Config.MaxUploadSize {
		utils.GinBadRequest(c, fmt.Sprintf("File exceeds the %d byte limit.", h.Config.MaxUploadSize))
		return
	}

	f, err := fh.Open()
	if err != nil {
		utils.GinBadRequest(c, "Could not read the uploaded file.")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.Config.MaxUploadSize+1))
	if err != nil {
		utils.GinBadRequest(c, "Could not read the uploaded file.")
		return
	}

	in := catalog.PaperInput{
		Title:    c.PostForm("title"),
		Authors:  catalog.SplitList(c.PostForm("authors")),
		Abstract: c.PostForm("abstract"),
		Category: c.PostForm("category"),
		Strand:   c.PostForm("strand"),
		Year:     c.PostForm("year"),
		Adviser:  c.PostForm("adviser"),
		Keywords: catalog.SplitList(c.PostForm("keywords")),
	}

	p, err := h.Catalog.Upload(c.Request.Context(), in, fh.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Info().Str("paper_id", p.ID).Str("by", c.GetString(utils.CtxEmail)).Msg("paper upload accepted")
	c.JSON(http.StatusCreated, p)
}

// --- Public Files ---

// GetFileHandler serves an object from the documents bucket at its public URL.
// @Summary      Get File
// @Tags         Files
// @Param        bucket  path  string  true  "Bucket name"
// @Param        name    path  string  true  "Object name"
// @Success      200  {file}    binary
// @Failure      404  {object}  utils.APIError "Unknown bucket or object"
// @Failure      503  {object}  utils.APIError "No object store configured"
// @Router       /files/{bucket}/{name} [get]
func GetFileHandler(c *gin.Context, h *hub.Hub) {
	if !h.Online() {
		respondError(c, models.ErrStoreUnavailable)
		return
	}
	docs := h.Buckets.Documents
	if c.Param("bucket") != docs.Name() {
		utils.GinNotFound(c, "Unknown bucket")
		return
	}

	name := c.Param("name")
	data, err := docs.Download(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, objstore.ContentTypeFor(name), data)
}
