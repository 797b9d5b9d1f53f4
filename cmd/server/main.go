package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DF-FIDELITY/internal"
	"DF-FIDELITY/internal/ai"
	"DF-FIDELITY/internal/authoring"
	"DF-FIDELITY/internal/config"
	"DF-FIDELITY/internal/generator"
	"DF-FIDELITY/internal/handlers"
	"DF-FIDELITY/internal/render"
	"DF-FIDELITY/internal/services"
	"DF-FIDELITY/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg, err := config.Load()
	if err != nil {
		klog.Fatalf("failed to load configuration: %v", err)
	}

	db, err := internal.InitDB(cfg)
	if err != nil {
		klog.Fatalf("failed to initialize database: %v", err)
	}
	defer internal.CloseDB(db)

	ctx := context.Background()
	gcs, err := storage.NewGCSClient(ctx, cfg.GCS.BucketName, cfg.GCS.CredentialsPath)
	if err != nil {
		klog.Fatalf("failed to initialize object storage: %v", err)
	}
	defer gcs.Close()

	aiClient := ai.NewClient(cfg.AI.BaseURL, cfg.AI.Timeout, ai.WithMaxPayload(int(cfg.AI.MaxPayload)))
	renderer := render.NewRenderer()

	pdfService, err := services.NewPDFService(cfg.Gotenberg.URL, cfg.Gotenberg.Timeout)
	if err != nil {
		klog.Fatalf("failed to initialize PDF service: %v", err)
	}
	defer pdfService.Close()

	templateService := services.NewTemplateService(db, gcs)
	bulkService := services.NewBulkService(db, gcs, templateService, renderer)
	activityLogService := services.NewActivityLogService(db)

	manager := authoring.NewManager(aiClient)
	mappingAssistant := generator.NewMappingAssistant(aiClient)

	authoringHandler := handlers.NewAuthoringHandler(manager, templateService, renderer)
	templatesHandler := handlers.NewTemplatesHandler(templateService)
	generateHandler := handlers.NewGenerateHandler(templateService, renderer, aiClient, pdfService)
	bulkHandler := handlers.NewBulkHandler(bulkService, templateService, mappingAssistant)
	logsHandler := handlers.NewLogsHandler(activityLogService)

	cleanupService := handlers.NewSessionCleanupService(manager, 2*time.Hour)
	cleanupService.Start()
	defer cleanupService.Stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Workspace-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(activityLogService.LoggingMiddleware())

	v1 := r.Group("/api/v1")
	{
		// Template authoring sessions
		v1.POST("/authoring/sessions", authoringHandler.CreateSession)
		v1.GET("/authoring/sessions/:sessionId", authoringHandler.GetSession)
		v1.DELETE("/authoring/sessions/:sessionId", authoringHandler.CancelSession)
		v1.POST("/authoring/sessions/:sessionId/source", authoringHandler.UploadSource)
		v1.POST("/authoring/sessions/:sessionId/pages", authoringHandler.AddPages)
		v1.PUT("/authoring/sessions/:sessionId/page", authoringHandler.SelectPage)
		v1.POST("/authoring/sessions/:sessionId/analyze", authoringHandler.Analyze)
		v1.POST("/authoring/sessions/:sessionId/refine", authoringHandler.BeginRefine)
		v1.POST("/authoring/sessions/:sessionId/fields", authoringHandler.AddField)
		v1.PUT("/authoring/sessions/:sessionId/fields/:fieldId", authoringHandler.UpdateField)
		v1.DELETE("/authoring/sessions/:sessionId/fields/:fieldId", authoringHandler.RemoveField)
		v1.PUT("/authoring/sessions/:sessionId/name", authoringHandler.SetName)
		v1.GET("/authoring/sessions/:sessionId/preview", authoringHandler.Preview)
		v1.POST("/authoring/sessions/:sessionId/save", authoringHandler.Save)

		// Template library
		v1.GET("/templates", templatesHandler.List)
		v1.GET("/templates/:templateId", templatesHandler.Get)
		v1.PUT("/templates/:templateId", templatesHandler.Update)
		v1.DELETE("/templates/:templateId", templatesHandler.Delete)
		v1.PUT("/templates/:templateId/favorite", templatesHandler.SetFavorite)
		v1.GET("/templates/:templateId/master", templatesHandler.MasterImage)
		v1.GET("/categories", templatesHandler.Categories)
		v1.DELETE("/categories/:category/:subCategory", templatesHandler.RemoveSubCategory)

		// Single document generation
		v1.POST("/templates/:templateId/preview", generateHandler.Preview)
		v1.POST("/templates/:templateId/ai-fill", generateHandler.AIFill)
		v1.POST("/templates/:templateId/export", generateHandler.Export)

		// Bulk generation
		v1.POST("/bulk/parse", bulkHandler.ParseDataset)
		v1.POST("/templates/:templateId/bulk/mapping", bulkHandler.SuggestMapping)
		v1.POST("/templates/:templateId/bulk", bulkHandler.StartJob)
		v1.GET("/bulk/jobs", bulkHandler.ListJobs)
		v1.GET("/bulk/jobs/:jobId", bulkHandler.GetJob)
		v1.GET("/bulk/jobs/:jobId/download", bulkHandler.DownloadArchive)

		// Activity logs
		v1.GET("/logs", logsHandler.GetAllLogs)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		klog.Infof("starting server on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	klog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		klog.Errorf("forced shutdown: %v", err)
	}
}
