package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"mailsentry/internal/config"
	"mailsentry/internal/handlers"
	"mailsentry/internal/middleware"
	"mailsentry/internal/models"
	"mailsentry/internal/phishing"
	"mailsentry/internal/services"
	"mailsentry/internal/utils"
	"mailsentry/pkg/database"
)

func main() {
	root := &cobra.Command{
		Use:   "mailsentry",
		Short: "Per-user anti-phishing email aggregator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServe() error {
	log.Println("Starting MailSentry...")

	cfg := config.Load()
	log.Printf("Environment: %s", cfg.NodeEnv)

	db := database.Init(cfg.DataDir)

	if err := db.AutoMigrate(
		&models.User{},
		&models.EmailAccount{},
		&models.Folder{},
		&models.Message{},
		&models.Body{},
		&models.Recipient{},
		&models.FolderMessage{},
		&models.SenderWhitelistRule{},
		&models.URLWhitelistRule{},
		&models.SystemSettings{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Create additional indexes
	db.Exec("CREATE INDEX IF NOT EXISTS idx_folder_messages_list ON folder_messages(internal_date DESC, id DESC)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(phishing_status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_folders_account ON folders(account_id)")

	encryptor, err := utils.NewPasswordEncryptor(cfg.MasterKey, cfg.PBKDF2Iterations)
	if err != nil {
		log.Fatal("Failed to initialize credential vault:", err)
	}

	// Services
	authService := services.NewAuthService()
	settingsService := services.NewSystemSettingsService()
	senderWhitelist := services.NewSenderWhitelistService()
	urlWhitelist := services.NewURLWhitelistService()
	eventService := services.NewPhishingEventService(cfg.SSEQueueCapacity)
	jobRunner := services.NewJobRunner()

	// Detection pipeline: ML + long-URL behind the settings toggle.
	mapper := phishing.NewScoreLevelMapper(cfg.ScoreSuspicious, cfg.ScoreHighRisk)
	mlClassifier := phishing.NewMLClassifier(cfg.MLModelPath, mapper)
	longURLDetector := phishing.NewLongURLDetector(cfg.URLLengthHighRisk, cfg.URLLengthSuspicious, mapper)
	dynamicDetector := phishing.NewDynamicDetector(mlClassifier, longURLDetector, settingsService)

	detectionService := services.NewPhishingDetectionService(
		dynamicDetector, eventService, senderWhitelist, urlWhitelist, jobRunner,
	)
	accountService := services.NewEmailAccountService(
		encryptor, detectionService, cfg.SyncChunkSize, cfg.InitialSyncLookback,
	)
	emailService := services.NewEmailService(encryptor)

	if err := authService.EnsureAdminExists(); err != nil {
		log.Fatal("Failed to ensure admin exists:", err)
	}

	// Warm the matcher caches; an empty table is fine.
	if err := senderWhitelist.Refresh(); err != nil {
		log.Printf("[Whitelist] initial sender cache load failed: %v", err)
	}
	if err := urlWhitelist.Refresh(); err != nil {
		log.Printf("[Whitelist] initial url cache load failed: %v", err)
	}

	if cfg.NodeEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	api := r.Group("/api")

	// Health check (public)
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Auth routes (public)
	authHandler := handlers.NewAuthHandler(authService)
	authHandler.RegisterRoutes(api.Group("/auth"))

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(authService))

	authHandler.RegisterProtectedRoutes(protected.Group("/auth"))

	accountHandler := handlers.NewAccountHandler(accountService)
	accountHandler.RegisterRoutes(protected.Group("/accounts"))

	emailHandler := handlers.NewEmailHandler(emailService)
	emailHandler.RegisterRoutes(protected.Group("/emails"))

	eventsHandler := handlers.NewEventsHandler(eventService, cfg.SSEKeepaliveSeconds)
	eventsHandler.RegisterRoutes(protected.Group("/events"))

	// Admin routes
	admin := protected.Group("/admin")
	admin.Use(middleware.AdminMiddleware())

	whitelistHandler := handlers.NewWhitelistHandler(senderWhitelist, urlWhitelist)
	whitelistHandler.RegisterRoutes(admin.Group("/whitelists"))

	adminHandler := handlers.NewAdminHandler(detectionService, settingsService)
	adminHandler.RegisterRoutes(admin)

	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Printf("🚀 MailSentry API running on port %s", cfg.Port)
		log.Println("📬 IMAP sync ready")
		log.Println("🛡️ Phishing detection pipeline ready")
		log.Println("🔐 Auth system enabled")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Let running detection batches finish; queued work is dropped and the
	// affected messages stay PENDING until re-detection.
	jobRunner.Shutdown(ctx)
	log.Println("Bye.")
	return nil
}
