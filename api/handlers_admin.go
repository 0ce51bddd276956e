package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"researchhub/catalog"
	"researchhub/hub"
	"researchhub/models"
	"researchhub/session"
	"researchhub/users"
	"researchhub/utils"
)

// --- Papers ---

// AddPaperHandler adds a paper without a file.
// @Summary      Add Paper Without File
// @Description  The paper gets a `paper_<unixMillis>` ID and `fileUrl` "#". A metadata sidecar is still written when a store is configured.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        paper body catalog.PaperInput true "Paper metadata"
// @Success      201  {object}  models.Paper
// @Failure      400  {object}  utils.APIError "Missing required fields"
// @Failure      403  {object}  utils.APIError "Administrator access required"
// @Router       /admin/papers [post]
func AddPaperHandler(c *gin.Context, h *hub.Hub) {
	var in catalog.PaperInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.GinBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	p, err := h.Catalog.AddLocal(c.Request.Context(), in)
	if err != nil {
		utils.GinFromError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// UpdatePaperHandler edits paper metadata. Omitted fields are left unchanged.
// @Summary      Edit Paper
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path  string              true  "Paper ID"
// @Param        patch  body  catalog.PaperPatch  true  "Fields to change"
// @Success      200  {object}  models.Paper
// @Failure      400  {object}  utils.APIError "Invalid body or empty title"
// @Failure      404  {object}  utils.APIError "Paper not found"
// @Router       /admin/papers/{id} [patch]
func UpdatePaperHandler(c *gin.Context, h *hub.Hub) {
	var patch catalog.PaperPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.GinBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	p, err := h.Catalog.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		utils.GinFromError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeletePaperHandler removes a paper, its file, its sidecar and its stat record.
// @Summary      Delete Paper
// @Tags         Admin
// @Security     BearerAuth
// @Param        id   path  string  true  "Paper ID"
// @Success      204  "Paper deleted"
// @Failure      404  {object}  utils.APIError "Paper not found"
// @Router       /admin/papers/{id} [delete]
func DeletePaperHandler(c *gin.Context, h *hub.Hub) {
	if _, err := h.Catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.GinFromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Maintenance ---

// CountResponse reports how many items an operation touched.
type CountResponse struct {
	Count int `json:"count"`
}

// ResetStatsHandler zeroes every view and download counter.
// @Summary      Reset Statistics
// @Description  Counters are zeroed locally at once; the zeroed records are pushed to the stats bucket in the background.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  CountResponse
// @Router       /admin/stats/reset [post]
func ResetStatsHandler(c *gin.Context, h *hub.Hub) {
	n := h.Stats.ResetAll(c.Request.Context())
	c.JSON(http.StatusOK, CountResponse{Count: n})
}

// ReloadHandler rebuilds the catalog from the object store.
// @Summary      Reload Catalog
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  CountResponse
// @Router       /admin/reload [post]
func ReloadHandler(c *gin.Context, h *hub.Hub) {
	papers := h.Reload(c.Request.Context())
	log.Info().Int("papers", len(papers)).Str("by", c.GetString(utils.CtxEmail)).Msg("catalog reloaded on request")
	c.JSON(http.StatusOK, CountResponse{Count: len(papers)})
}

// --- Users ---

// GetUsersResponse is the user directory with dashboard counts.
type GetUsersResponse struct {
	Data         []models.User `json:"data"`
	Total        int           `json:"total"`
	Pending      int           `json:"pending"`
	LastSignedIn *models.User  `json:"lastSignedIn,omitempty"` // Most recent sign-in remembered by the mirror
}

// GetUsersHandler lists the merged user directory. Passwords are never returned.
// @Summary      List Users
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  GetUsersResponse
// @Router       /admin/users [get]
func GetUsersHandler(c *gin.Context, h *hub.Hub) {
	list := h.Users.List(c.Request.Context())
	total, pending := users.Counts(list)

	data := make([]models.User, len(list))
	for i, u := range list {
		data[i] = u.Public()
	}
	resp := GetUsersResponse{Data: data, Total: total, Pending: pending}
	if last, ok := session.Restore(c.Request.Context(), h.Mirror); ok {
		resp.LastSignedIn = &last
	}
	c.JSON(http.StatusOK, resp)
}

// ApproveUserHandler lets a pending user sign in.
// @Summary      Approve User
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "User ID"
// @Success      200  {object}  models.User
// @Failure      404  {object}  utils.APIError "User not found"
// @Router       /admin/users/{id}/approve [post]
func ApproveUserHandler(c *gin.Context, h *hub.Hub) {
	u, err := h.Users.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.GinFromError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DeleteUserHandler removes a user from the credentials bucket and the mirror.
// @Summary      Delete User
// @Tags         Admin
// @Security     BearerAuth
// @Param        id   path  string  true  "User ID"
// @Success      204  "User deleted"
// @Failure      404  {object}  utils.APIError "User not found"
// @Router       /admin/users/{id} [delete]
func DeleteUserHandler(c *gin.Context, h *hub.Hub) {
	if _, err := h.Users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.GinFromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
