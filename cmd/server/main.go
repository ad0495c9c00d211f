package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clipforge-backend/internal/config"
	"clipforge-backend/internal/database"
	"clipforge-backend/internal/export"
	"clipforge-backend/internal/handlers"
	"clipforge-backend/internal/media"
	"clipforge-backend/internal/middleware"
	"clipforge-backend/internal/preview"
	"clipforge-backend/internal/services"
	"clipforge-backend/internal/supabase"
	"clipforge-backend/internal/youtube"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Supabase clients
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}

	realtimeClient := supabase.NewRealtimeClient(supabaseClient.Supabase)

	// Direct database connection for video records and migrations
	dbURL := cfg.DatabaseURL
	if dbURL == "" {
		log.Println("Warning: DATABASE_URL not set. Migrations will be skipped.")
	}

	var dbClient *supabase.DatabaseClient
	if dbURL != "" {
		dbClient, err = supabase.NewDatabaseClient(dbURL)
		if err != nil {
			log.Printf("Warning: Failed to initialize database client: %v", err)
		} else {
			defer dbClient.Close()

			migrator, err := database.NewMigrator(dbURL)
			if err != nil {
				log.Printf("Warning: Failed to initialize migrator: %v", err)
			} else {
				defer migrator.Close()
				if err := migrator.Run(); err != nil {
					log.Printf("Warning: Migration failed: %v", err)
				} else {
					log.Println("Migrations completed successfully")
				}
			}
		}
	}

	// Render pipeline
	runner := media.NewExecRunner()
	prober := media.NewProber(runner, cfg.FFprobePath)
	renderer := export.NewRenderer(runner, prober, cfg.FFmpegPath, cfg.ExportDir, cfg.TempDir)
	coordinator := export.NewCoordinator(renderer)

	// Edit sessions
	sessionManager := preview.NewManager(prober, storageClient)

	uploader := youtube.New(cfg)
	if !cfg.YouTubeConfigured() {
		log.Println("Warning: YouTube credentials not set. Publish endpoint will be disabled.")
	}

	// Typed nil must not leak into the interfaces; handlers guard on nil
	var videoStore services.VideoStore
	var videoFinder handlers.VideoFinder
	if dbClient != nil {
		videoStore = dbClient
		videoFinder = dbClient
	}

	exportService := services.NewExportService(coordinator, renderer, videoStore, realtimeClient, uploader)

	exportHandler := handlers.NewExportHandler(exportService, videoFinder)
	editHandler := handlers.NewEditHandler(sessionManager, exportService, videoFinder)

	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Health and metrics (no auth)
	router.GET("/health", handlers.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Exported artifacts
	router.Static("/exports", cfg.ExportDir)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// Export pipeline
	api.POST("/videos/:video_id/export", exportHandler.Export)
	api.GET("/videos/:video_id/status", exportHandler.GetStatus)
	api.POST("/videos/:video_id/publish", exportHandler.Publish)

	// Edit sessions
	api.POST("/videos/:video_id/edit", editHandler.Open)
	api.POST("/videos/:video_id/edit/images/:index", editHandler.StageImage)
	api.GET("/videos/:video_id/edit/images/:index", editHandler.GetStagedImage)
	api.DELETE("/videos/:video_id/edit/images/:index", editHandler.RemoveImage)
	api.POST("/videos/:video_id/edit/audio", editHandler.StageAudio)
	api.GET("/videos/:video_id/edit/frame/:frame", editHandler.GetFrame)
	api.POST("/videos/:video_id/edit/save", editHandler.Save)
	api.DELETE("/videos/:video_id/edit", editHandler.Close)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
