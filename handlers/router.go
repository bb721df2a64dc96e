package handlers

import (
	"net/http"
	"strings"
	"time"

	"cropguard-web/config"
	"cropguard-web/middleware"
	"cropguard-web/services"
	"cropguard-web/version"
	"cropguard-web/views"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the middleware chain, the page handlers and the
// operational endpoints
func NewRouter(cfg *config.Config, api services.InferenceAPI, sessions *services.SessionStore, info version.Info) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedExtensions([]string{".png"})))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	router.SetHTMLTemplate(views.MustTemplates())

	nav := NewNavigator(api, cfg, info.Short())
	analyticsHandler := NewAnalyticsHandler(services.NewAnalyticsLoader(api), services.NewChartRenderer(640, 320))
	historyHandler := NewHistoryHandler(nav, services.NewHistoryManager(api, cfg.HistoryPageSize))
	detectHandler := NewDetectHandler(nav, services.NewDetector(api), cfg)
	contactHandler := NewContactHandler(nav, services.NewContactSender(api))
	healthHandler := NewHealthHandler(sessions, info)

	nav.Register(PageAnalytics, analyticsHandler.Load)
	nav.Register(PageHistory, historyHandler.Load)
	nav.Register(PageResearch, analyticsHandler.LoadResearch)

	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/version", healthHandler.Version)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pages := router.Group("/")
	pages.Use(middleware.Session(sessions))
	{
		pages.GET("/", nav.Home)
		for _, name := range []string{PageDetect, PageAnalytics, PageHistory, PageResearch, PageContact} {
			pages.GET("/"+name, nav.Show(name))
		}
		pages.GET("/history/export.csv", historyHandler.Export)
		pages.GET("/analytics/charts/:name", analyticsHandler.Chart)
		pages.POST("/detect/remove", detectHandler.Remove)

		// Calls that reach the inference API or carry an upload
		limited := pages.Group("/")
		limited.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
		{
			limited.POST("/detect/upload", detectHandler.Upload)
			limited.POST("/detect/analyze", detectHandler.Analyze)
			limited.POST("/detect/feedback", detectHandler.Feedback)
			limited.POST("/contact", contactHandler.Submit)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && strings.TrimSpace(origins[0]) == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
