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
	"github.com/go-redis/redis/v8"

	"github.com/tresora/backend/internal/config"
	"github.com/tresora/backend/internal/database"
	"github.com/tresora/backend/internal/handlers"
	"github.com/tresora/backend/internal/jobs"
	"github.com/tresora/backend/internal/middleware"
	"github.com/tresora/backend/internal/queue"
	"github.com/tresora/backend/internal/routes"
	"github.com/tresora/backend/internal/services/loyalty"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	redisQueue := queue.NewRedisQueue(redisClient)

	// Loyalty services
	settingsService := loyalty.NewSettingsService(db)
	ledgerService := loyalty.NewLedgerService(db)
	engine := loyalty.NewEngine(ledgerService, settingsService)
	queryService := loyalty.NewQueryService(db, ledgerService, settingsService)

	// Job handlers
	eventJob := jobs.RegisterLoyaltyEventJobHandlers(redisQueue, engine)

	// Workers and the recurring referral sweep
	processor := queue.NewProcessor(redisQueue, 10)
	sweepJob := jobs.NewReferralSweepJob(db, engine, settingsService)
	if err := sweepJob.Schedule(processor.Scheduler()); err != nil {
		log.Fatalf("Failed to schedule referral sweep: %v", err)
	}
	processor.Start()

	// HTTP surface
	rateLimiter := middleware.NewRateLimiter(20, 40)

	loyaltyHandler := handlers.NewLoyaltyHandler(engine, queryService, ledgerService, settingsService)
	adminHandler := handlers.NewAdminLoyaltyHandler(engine, ledgerService, settingsService)
	eventHandler := handlers.NewEventHandler(eventJob, cfg.Webhook)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Webhook-Signature"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRoutes(router, loyaltyHandler, adminHandler, eventHandler, rateLimiter)

	srv := startServer(router, cfg.Server)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	processor.Stop()
	rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// startServer starts the HTTP server in a goroutine
func startServer(router *gin.Engine, cfg config.ServerConfig) *http.Server {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	return srv
}
