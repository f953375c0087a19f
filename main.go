package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/config"
	"github.com/Daniromero1410/Sistema-Positiva/handler"
	"github.com/Daniromero1410/Sistema-Positiva/middleware"
	"github.com/Daniromero1410/Sistema-Positiva/pkg/logger"
	"github.com/Daniromero1410/Sistema-Positiva/scheduler"
	"github.com/Daniromero1410/Sistema-Positiva/service"
	"github.com/Daniromero1410/Sistema-Positiva/websocket"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := "config.yaml"
	if v := os.Getenv("CONSOLIDADOR_CONFIG"); v != "" {
		configPath = v
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.Info("configuration loaded", "path", configPath, "backend", cfg.API.BaseURL)

	// Background work (watches, websocket hub, scheduled runs) stops with ctx
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := service.NewClient(&cfg.API)
	retryPolicy := service.NewRetryPolicy(cfg.API.Retry)
	store := service.NewRunStore(&cfg.Store)
	watcher := service.NewWatcher(client, cfg.Watcher.PollInterval(), cfg.Watcher.MaxAttempts)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	tracker := service.NewRunTracker(ctx, store, watcher, hub)

	// The master archive is optional: without it uploads are only forwarded
	var archive service.MasterArchive
	if cfg.Minio.Enabled() {
		minioSvc, err := service.NewMinioService(&cfg.Minio)
		if err != nil {
			slog.Error("failed to initialize MINIO service", "error", err)
			os.Exit(1)
		}
		if err := minioSvc.EnsureBucket(ctx); err != nil {
			slog.Error("failed to ensure MINIO bucket", "error", err)
			os.Exit(1)
		}
		archive = minioSvc
	} else {
		slog.Info("no MINIO endpoint configured, master files will not be archived")
	}

	sched := scheduler.New(cfg.Schedule, client, tracker, archive, retryPolicy)
	if err := sched.Start(ctx); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	consolidadorHandler := handler.NewConsolidadorHandler(client, tracker, archive, hub, retryPolicy)
	catalogHandler := handler.NewCatalogHandler(client)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.NoStore())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"runs":      store.Count(),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
		api.GET("/health", catalogHandler.Health)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		consolidador := protected.Group("/consolidador")
		consolidador.POST("/upload-maestra", consolidadorHandler.UploadMaster)
		consolidador.POST("/iniciar", consolidadorHandler.Start)
		consolidador.POST("/ejecutar", consolidadorHandler.Execute)
		consolidador.GET("/progreso/:id", consolidadorHandler.Progress)
		consolidador.POST("/cancelar/:id", consolidadorHandler.Cancel)
		consolidador.GET("/resultados/:id", consolidadorHandler.Results)
		consolidador.GET("/ejecuciones", consolidadorHandler.ListRuns)
		consolidador.GET("/ejecuciones/:id", consolidadorHandler.GetRun)
		consolidador.DELETE("/ejecuciones/:id", consolidadorHandler.DeleteRun)
		consolidador.GET("/ejecuciones/:id/maestra", consolidadorHandler.MasterDownload)
		consolidador.GET("/ws", consolidadorHandler.Events)

		dashboard := protected.Group("/dashboard")
		dashboard.GET("/resumen", catalogHandler.DashboardSummary)
		dashboard.GET("/stats", catalogHandler.Proxy("/api/dashboard/stats"))
		dashboard.GET("/ejecuciones-recientes", catalogHandler.Proxy("/api/dashboard/ejecuciones-recientes"))
		dashboard.GET("/servicios-por-mes", catalogHandler.Proxy("/api/dashboard/servicios-por-mes"))
		dashboard.GET("/contratos-por-departamento", catalogHandler.Proxy("/api/dashboard/contratos-por-departamento"))

		ftp := protected.Group("/ftp")
		ftp.GET("/status", catalogHandler.Proxy("/api/ftp/status"))
		ftp.GET("/browse", catalogHandler.Proxy("/api/ftp/browse"))
		ftp.GET("/preview", catalogHandler.Proxy("/api/ftp/preview"))
		ftp.POST("/download", catalogHandler.FTPDownload)

		consulta := protected.Group("/consulta")
		consulta.GET("/search", catalogHandler.Search)
		consulta.GET("/sugerencias", catalogHandler.Proxy("/api/consulta/sugerencias"))
		consulta.GET("/detalle/:id", catalogHandler.ServiceDetail)
		consulta.GET("/filtros", catalogHandler.Proxy("/api/consulta/filtros"))

		mapa := protected.Group("/mapa")
		mapa.GET("/datos", catalogHandler.Proxy("/api/mapa/datos"))
		mapa.GET("/top-ciudades", catalogHandler.Proxy("/api/mapa/top-ciudades"))
		mapa.GET("/departamentos", catalogHandler.Proxy("/api/mapa/departamentos"))

		archivos := protected.Group("/archivos")
		archivos.GET("/list", catalogHandler.Proxy("/api/archivos/list"))
		archivos.GET("/download/:id/:tipo", consolidadorHandler.Download)
		archivos.GET("/download/file/:filename", consolidadorHandler.DownloadFile)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.API.Timeout() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	sched.Stop()
	cancel()
	tracker.Wait()

	slog.Info("server exited gracefully", "tracked_runs", store.Count())
}
