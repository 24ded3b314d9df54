package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weiwangfds/datashare/config"
	"github.com/weiwangfds/datashare/internal/handler"
	"github.com/weiwangfds/datashare/internal/middleware"
	"github.com/weiwangfds/datashare/internal/service/dataset"
	"github.com/weiwangfds/datashare/internal/service/intake"
	"github.com/weiwangfds/datashare/internal/service/stats"
	"gorm.io/gorm"
)

// Dependencies process-wide handles built once in main
type Dependencies struct {
	DB       *gorm.DB
	Datasets *dataset.Service
	Stats    *stats.Service
	Stager   *intake.Stager
	Users    middleware.UserLookup
}

// Router route configuration
type Router struct {
	engine *gin.Engine
}

// NewRouter wires middleware and routes
func NewRouter(deps Dependencies, cfg *config.Config) *Router {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestLogger(middleware.DefaultRequestLoggerConfig(cfg.Server.Environment)))
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Metrics())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept-Language", middleware.TraceHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", middleware.TraceHeader},
		MaxAge:        24 * time.Hour,
	}))

	auth := middleware.NewAuth(cfg.Auth.JWTSecret, deps.Users)
	datasetHandler := handler.NewDatasetHandler(deps.Datasets, deps.Stats, deps.Stager, intake.DatasetPolicy(cfg.Upload.MaxDatasetSize))
	healthHandler := handler.NewHealthHandler(deps.DB, cfg.Server.Environment)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		datasets := api.Group("/datasets")
		{
			// public so download links work without a session
			datasets.GET("/:id/download", datasetHandler.DownloadDataset)

			protected := datasets.Group("", auth.Protect())
			protected.POST("", datasetHandler.CreateDataset)
			protected.GET("", datasetHandler.ListDatasets)
			protected.GET("/user/:userId", datasetHandler.ListUserDatasets)
			protected.GET("/:id", datasetHandler.GetDataset)
			protected.PUT("/:id", datasetHandler.UpdateDataset)

			admin := protected.Group("", auth.AdminOnly())
			admin.GET("/stats", datasetHandler.GetStats)
			admin.GET("/downloads/history", datasetHandler.GetDownloadHistory)
			admin.GET("/downloads/stats", datasetHandler.GetDownloadReport)
			admin.DELETE("/:id", datasetHandler.DeleteDataset)
		}
	}

	return &Router{engine: engine}
}

// GetEngine returns the gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
