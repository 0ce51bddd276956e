package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"researchhub/hub"
	"researchhub/models"
	"researchhub/session"
	"researchhub/users"
	"researchhub/utils"
)

// TokenResponse carries a session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// --- Start Session ---

// CreateSessionHandler starts an anonymous session.
// @Summary      Start Session
// @Description  Returns a token for an anonymous session. Views are counted once per session.
// @Tags         Auth
// @Produce      json
// @Success      201  {object}  TokenResponse
// @Router       /sessions [post]
func CreateSessionHandler(c *gin.Context, h *hub.Hub) {
	sess := h.Sessions.Create()
	token, err := utils.GenerateJWT(sess.ID, "", false, h.Config)
	if err != nil {
		h.Sessions.Remove(sess.ID)
		utils.GinInternalServerError(c, "Failed to start session")
		return
	}
	c.JSON(http.StatusCreated, TokenResponse{Token: token})
}

// --- Signup ---

// SignupHandler registers a user pending administrator approval.
// @Summary      Register User
// @Description  The account is created with status `pending` and cannot sign in until approved.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        user body users.SignupRequest true "Registration form"
// @Success      201  {object}  models.User
// @Failure      400  {object}  utils.APIError "Missing fields, mismatched passwords or email already registered"
// @Router       /auth/signup [post]
func SignupHandler(c *gin.Context, h *hub.Hub) {
	var req users.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	u, err := h.Users.Signup(c.Request.Context(), req)
	if err != nil {
		utils.GinFromError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// --- Login ---

// LoginRequest defines the body for signing in.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the signed-in token and user.
type LoginResponse struct {
	Token   string      `json:"token"`
	User    models.User `json:"user"`
	IsAdmin bool        `json:"isAdmin"`
}

// LoginHandler signs a user in. The current session, if any, keeps its viewed set.
// @Summary      Sign In
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        credentials body LoginRequest true "Email and password"
// @Success      200  {object}  LoginResponse
// @Failure      400  {object}  utils.APIError "Missing email or password"
// @Failure      401  {object}  utils.APIError "Invalid email or password"
// @Failure      403  {object}  utils.APIError "Account pending approval"
// @Router       /auth/login [post]
func LoginHandler(c *gin.Context, h *hub.Hub) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, "Email and password are required.")
		return
	}

	u, admin, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.GinFromError(c, err)
		return
	}

	sess, ok := currentSession(c)
	if !ok {
		sess = h.Sessions.Create()
	}
	sess.Login(u, admin)

	token, err := utils.GenerateJWT(sess.ID, u.Email, admin, h.Config)
	if err != nil {
		sess.Logout()
		utils.GinInternalServerError(c, "Failed to generate token")
		return
	}
	h.Sessions.Renew(sess)
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: u, IsAdmin: admin})
}

// --- Logout ---

// LogoutHandler signs the user out. The session continues anonymously.
// @Summary      Sign Out
// @Description  Returns an anonymous token for the same session; the old token stops working.
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  TokenResponse
// @Failure      401  {object}  utils.APIError "Not signed in"
// @Router       /auth/logout [post]
func LogoutHandler(c *gin.Context, h *hub.Hub) {
	sess, ok := currentSession(c)
	if !ok {
		utils.GinInternalServerError(c, "Session not found in context.")
		return
	}
	sess.Logout()
	if err := session.Forget(c.Request.Context(), h.Mirror); err != nil {
		log.Error().Err(err).Msg("failed to clear persisted session")
	}

	token, err := utils.GenerateJWT(sess.ID, "", false, h.Config)
	if err != nil {
		utils.GinInternalServerError(c, "Failed to generate token")
		return
	}
	h.Sessions.Renew(sess)
	c.JSON(http.StatusOK, TokenResponse{Token: token})
}

// --- Current User ---

// MeResponse describes the caller.
type MeResponse struct {
	User    models.User `json:"user"`
	IsAdmin bool        `json:"isAdmin"`
}

// GetMeHandler returns the signed-in user.
// @Summary      Current User
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  MeResponse
// @Failure      401  {object}  utils.APIError "Not signed in"
// @Router       /auth/me [get]
func GetMeHandler(c *gin.Context, h *hub.Hub) {
	sess, ok := currentSession(c)
	if !ok {
		utils.GinInternalServerError(c, "Session not found in context.")
		return
	}
	u, signedIn := sess.User()
	if !signedIn {
		utils.GinUnauthorized(c, "Sign in required")
		return
	}
	c.JSON(http.StatusOK, MeResponse{User: u, IsAdmin: sess.IsAdmin()})
}
