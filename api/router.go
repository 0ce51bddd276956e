package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"     // swagger embed files
	ginSwagger "github.com/swaggo/gin-swagger" // gin-swagger middleware

	"researchhub/docs"
	"researchhub/hub"
	"researchhub/utils"
)

// SetupRouter builds the HTTP routes over h.
func SetupRouter(h *hub.Hub) *gin.Engine {
	cfg := h.Config

	router := gin.New()
	router.Use(gin.Logger())
	// Recovery middleware recovers from any panics and writes a 500 if there was one.
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.MaxUploadSize

	// wrap adapts a handler taking the hub to a gin.HandlerFunc.
	wrap := func(fn func(*gin.Context, *hub.Hub)) gin.HandlerFunc {
		return func(c *gin.Context) { fn(c, h) }
	}

	optional := []gin.HandlerFunc{utils.OptionalAuth(cfg), SessionMiddleware(h)}
	required := []gin.HandlerFunc{utils.AuthMiddleware(cfg), SessionMiddleware(h)}

	// --- Public Routes ---
	router.GET("/status", wrap(GetStatusHandler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/facets", wrap(GetFacetsHandler))
	router.GET("/stats/summary", wrap(GetSummaryHandler))
	router.GET("/files/:bucket/:name", wrap(GetFileHandler))
	router.POST("/sessions", wrap(CreateSessionHandler))

	authGroup := router.Group("/auth")
	{
		// POST /auth/signup
		authGroup.POST("/signup", wrap(SignupHandler))
		// POST /auth/login
		authGroup.POST("/login", utils.OptionalAuth(cfg), LenientSessionMiddleware(h), wrap(LoginHandler))
		// POST /auth/logout
		authGroup.POST("/logout", append(required, wrap(LogoutHandler))...)
		// GET /auth/me
		authGroup.GET("/me", append(required, wrap(GetMeHandler))...)
	}

	// --- Paper Routes ---
	paperGroup := router.Group("/papers")
	{
		paperGroup.GET("", wrap(GetPapersHandler))
		paperGroup.GET("/:id", append(optional, wrap(GetPaperHandler))...)
		paperGroup.GET("/:id/download", wrap(DownloadPaperHandler))
		paperGroup.POST("", append(required, wrap(UploadPaperHandler))...)
	}

	// --- Admin Routes ---
	adminGroup := router.Group("/admin")
	adminGroup.Use(required...)
	adminGroup.Use(utils.AdminOnly())
	{
		adminGroup.POST("/papers", wrap(AddPaperHandler))
		adminGroup.PATCH("/papers/:id", wrap(UpdatePaperHandler))
		adminGroup.DELETE("/papers/:id", wrap(DeletePaperHandler))
		adminGroup.POST("/stats/reset", wrap(ResetStatsHandler))
		adminGroup.POST("/reload", wrap(ReloadHandler))
		adminGroup.GET("/users", wrap(GetUsersHandler))
		adminGroup.POST("/users/:id/approve", wrap(ApproveUserHandler))
		adminGroup.DELETE("/users/:id", wrap(DeleteUserHandler))
	}

	// --- Swagger Route ---
	// The UI at /swagger/ loads the document served from /docs.
	router.StaticFS("/docs", http.FS(docs.FS))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.json")))

	return router
}
