package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/getpublora/publora/configs"
	"github.com/getpublora/publora/internal/api/handlers"
	"github.com/getpublora/publora/internal/api/middleware"
	job "github.com/getpublora/publora/internal/jobs"
	"github.com/getpublora/publora/internal/models"
	"github.com/getpublora/publora/internal/platform"
	"github.com/getpublora/publora/internal/queue"
	"github.com/getpublora/publora/internal/repository"
	"github.com/getpublora/publora/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	contentItemRepo := repository.NewContentItemRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)
	sendLedgerRepo := repository.NewSendLedgerRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)

	registry := platform.NewRegistry()
	registry.Register(models.PlatformFacebook, platform.NewFacebookPublisher(http.DefaultClient))
	registry.Register(models.PlatformInstagram, platform.NewInstagramPublisher(http.DefaultClient))
	registry.Register(models.PlatformTiktok, platform.NewTiktokPublisher(http.DefaultClient))
	registry.Register(models.PlatformYoutube, platform.NewYoutubePublisher(http.DefaultClient))

	authService := service.NewAuthService(*cfg, userRepo)
	r2Service := service.NewR2Service(*cfg)
	contentService := service.NewContentService(contentItemRepo, mediaAssetRepo, *r2Service)
	connectionService := service.NewConnectionService(*cfg, connectionRepo)
	publishService := service.NewPublishService(*cfg, sendLedgerRepo, contentItemRepo, registry)
	dispatchService := service.NewDispatchService(*cfg, contentItemRepo, connectionRepo, publishService)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallback)
	app.Get("/logout", auth.Logout)

	connection := handlers.NewConnectionHandler(*cfg, connectionService)
	app.Get("/connect/:platform", connection.Connect)
	app.Get("/connect/:platform/callback", connection.Callback)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	api.Get("/connections", connection.List)
	api.Post("/connections/remove", connection.Remove)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.Create)
	api.Get("/api_key/list", apiKeys.List)
	api.Post("/api_key/remove", apiKeys.Remove)

	content := handlers.NewContentHandler(contentService)
	api.Post("/content/create", content.Create)
	api.Get("/content", content.List)
	api.Post("/content/remove", content.Remove)
	api.Post("/content/media", content.UploadMedia)

	publish := handlers.NewPublishHandler(dispatchService, publishService)
	api.Post("/publish/check", publish.Check)
	api.Post("/publish", publish.Publish)
	api.Get("/publish/history", publish.History)

	// cron jobs
	dispatchJob := job.NewDispatchJob(dispatchService, client)
	refreshTokenJob := job.NewTokenRefreshJob(connectionRepo, connectionService)

	// queue
	queueW := queue.NewQueue(dispatchService)

	c := cron.New()
	c.AddFunc(cfg.PollInterval, dispatchJob.Run)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishContent, queueW.HandlePublishContentTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
