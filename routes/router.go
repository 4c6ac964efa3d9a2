package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/keyshelf/keyshelf/config"
	"github.com/keyshelf/keyshelf/controllers"
	"github.com/keyshelf/keyshelf/middleware"
	"github.com/keyshelf/keyshelf/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	r.Use(middleware.RequestID())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Admin-Key", "X-Visitor-Key", "X-Device-ID", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	visitorController := controllers.NewVisitorController(db)
	categoryController := controllers.NewCategoryController(db)
	linkController := controllers.NewLinkController(db)
	previewController := controllers.NewPreviewController()
	adminController := controllers.NewAdminController(db)

	api := r.Group("/api")

	api.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	visitorGroup := api.Group("/visitor")
	visitorGroup.POST("/verify", middleware.RateLimitMiddleware(), visitorController.Verify)
	visitorGroup.GET("/me", visitorController.Me)
	visitorGroup.GET("/preview", middleware.RateLimitMiddleware(), previewController.GetPreview)

	// Content reads also register the calling device after the response.
	content := visitorGroup.Group("")
	content.Use(middleware.StoreVisitorDevice(db))
	content.GET("/categories", categoryController.GetCategories)
	content.GET("/categories/:id", categoryController.GetCategoryByID)
	content.GET("/links/category/:categoryId", linkController.GetLinksByCategory)
	content.POST("/links/:id/view", linkController.IncrementView)
	content.POST("/links/:id/like", linkController.IncrementLike)
	content.POST("/links/:id/reply", linkController.IncrementReply)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth(cfg.AdminAPIKey), middleware.StoreAdminDevice(db))

	admin.GET("/categories", adminController.GetCategories)
	admin.GET("/categories/:id", adminController.GetCategoryByID)
	admin.POST("/categories", adminController.CreateCategory)
	admin.PUT("/categories/:id", adminController.UpdateCategory)
	admin.DELETE("/categories/:id", adminController.DeleteCategory)

	admin.GET("/links", adminController.GetLinks)
	admin.GET("/links/category/:categoryId", adminController.GetLinksByCategory)
	admin.GET("/links/:id", adminController.GetLinkByID)
	admin.POST("/links", adminController.CreateLink)
	admin.PUT("/links/:id", adminController.UpdateLink)
	admin.DELETE("/links/:id", adminController.DeleteLink)

	admin.GET("/visitors", adminController.GetVisitors)
	admin.GET("/visitors/:id", adminController.GetVisitorByID)
	admin.POST("/visitors", adminController.CreateVisitor)
	admin.PUT("/visitors/:id", adminController.UpdateVisitor)
	admin.DELETE("/visitors/:id", adminController.DeleteVisitor)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Fail(ctx, http.StatusNotFound, "route not found")
	})

	return r
}
