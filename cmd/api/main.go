// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/opsuite/opsuite-backend/internal/api/handlers"
	"github.com/opsuite/opsuite-backend/internal/api/middleware"
	"github.com/opsuite/opsuite-backend/internal/config"
	"github.com/opsuite/opsuite-backend/internal/cron"
	"github.com/opsuite/opsuite-backend/internal/db"
	"github.com/opsuite/opsuite-backend/internal/notification"
	"github.com/opsuite/opsuite-backend/internal/repository"
	"github.com/opsuite/opsuite-backend/internal/seed"
	"github.com/opsuite/opsuite-backend/internal/service"
	"github.com/opsuite/opsuite-backend/internal/socket"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Run database migrations first
	// ============================================
	log.Println("🔄 Running database migrations...")
	if err := db.RunMigrations(cfg.DatabaseURL, "./internal/db/migrations"); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	// ============================================
	// Initialize PostgreSQL
	// ============================================
	pg, err := db.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to PostgreSQL: %v", err)
	}
	defer pg.Close()

	repos := repository.NewRepositories(pg.Pool)
	log.Println("📦 Repositories initialized")

	// ============================================
	// Initialize Redis (optional)
	// ============================================
	var redisDB *db.RedisDB
	if cfg.RedisURL != "" {
		redisDB, err = db.NewRedisDB(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (continuing without cache)", err)
			redisDB = nil
		} else {
			defer redisDB.Close()
			log.Println("⚡ Permission cache enabled")
		}
	}

	// ============================================
	// Seed Data (for development)
	// ============================================
	if cfg.Environment != "production" {
		seed.SeedData(repos)
	}

	// ============================================
	// Initialize WebSocket Hub
	// ============================================
	hub := socket.NewHub()
	go hub.Run()
	broadcaster := socket.NewBroadcaster(hub)
	wsHandler := socket.NewHandler(hub, cfg.JWTSecret)
	log.Println("🔌 WebSocket hub initialized")

	// ============================================
	// Initialize Notification Fan-out
	// ============================================
	dispatcher := notification.NewDispatcher(cfg.FanoutWorkers, cfg.FanoutQueueSize)
	notifier := notification.NewService(repos.NotificationRepo, repos.ChannelRepo, broadcaster, dispatcher)

	// ============================================
	// Initialize Services & Handlers
	// ============================================
	services := service.NewServices(&service.ServiceDeps{
		Config:   cfg,
		Repos:    repos,
		Redis:    redisDB,
		Notifier: notifier,
	})
	h := handlers.NewHandlers(services)
	log.Println("✨ All services initialized")

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	cronScheduler := cron.NewScheduler(repos.ChannelRepo)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	// ============================================
	// Create Gin Router
	// ============================================
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL, "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"timestamp":  time.Now(),
			"database":   "connected",
			"cache":      cacheStatus(redisDB),
			"websocket":  "active",
			"ws_clients": hub.GetConnectedClientsCount(),
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Public routes (no auth required)
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
		}

		// WebSocket route (authenticates itself via query token)
		api.GET("/ws", wsHandler.HandleWebSocket)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(cfg.JWTSecret, redisDB))
		{
			protected.GET("/auth/me", h.Auth.Me)

			channels := protected.Group("/channels")
			{
				channels.GET("", h.Channel.List)
				channels.POST("", h.Channel.Create)
				channels.POST("/direct", h.Channel.GetOrCreateDirect)
				channels.GET("/:id", h.Channel.Get)
				channels.DELETE("/:id", h.Channel.Delete)
				channels.POST("/:id/archive", h.Channel.Archive)

				channels.GET("/:id/members", h.Channel.ListMembers)
				channels.POST("/:id/members", h.Channel.AddMembers)
				channels.PUT("/:id/members/:userId/role", h.Channel.UpdateMemberRole)
				channels.DELETE("/:id/members/:userId", h.Channel.RemoveMember)

				channels.GET("/:id/messages", h.Message.List)
				channels.POST("/:id/messages", h.Message.Post)
			}

			messages := protected.Group("/messages")
			{
				messages.POST("/forward", h.Message.Forward)
				messages.POST("/:id/hide", h.Message.Hide)
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.List)
				notifications.GET("/unread-count", h.Notification.UnreadCount)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
			}
		}
	}

	// ============================================
	// Start server with graceful shutdown
	// ============================================
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Drain in-flight fan-out tasks before exiting
	dispatcher.Stop()

	log.Println("Server exited")
}

func cacheStatus(redisDB *db.RedisDB) string {
	if redisDB != nil {
		return "connected"
	}
	return "disabled"
}
