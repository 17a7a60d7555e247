package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/wondough/bank/internal/captcha"
	"github.com/wondough/bank/internal/config"
	"github.com/wondough/bank/internal/database"
	mW "github.com/wondough/bank/internal/middleware"
	"github.com/wondough/bank/internal/selftest"
	"github.com/wondough/bank/internal/services"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("pbkdf2.iterations", "PBKDF2_ITERATIONS")
	viper.BindEnv("pbkdf2.key_size", "PBKDF2_KEY_SIZE")
	viper.BindEnv("pbkdf2.salt_length", "PBKDF2_SALT_LENGTH")
	viper.BindEnv("token.length", "TOKEN_LENGTH")
	viper.BindEnv("captcha.secret", "CAPTCHA_SECRET")
	viper.BindEnv("auth.trusted_redirect", "AUTH_TRUSTED_REDIRECT")
	viper.BindEnv("selftest.enabled", "SELFTEST_ENABLED")

	viper.SetDefault("auth.trusted_redirect", "http://localhost:8080/oauth")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	policy := config.LoadSecurityPolicy()
	captchaVerifier := captcha.NewVerifier(viper.GetString("captcha.secret"), "")

	userService := services.NewUserService(db)
	tokenService := services.NewTokenService(db, redisClient, policy)
	ledgerService := services.NewLedgerService(db)
	authService := services.NewAuthService(userService, tokenService, policy, captchaVerifier)
	transactionService := services.NewTransactionService(ledgerService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Static file server for the authorization page assets
	r.Handle("/static/*", http.StripPrefix("/static/",
		mW.StaticFileServer("./static")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Get("/auth/app", authService.GetApp)
		r.Post("/oauth/exchange", authService.Exchange)

		// Protected endpoints (access token required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AccessTokenAuth(tokenService))

			r.Get("/transactions", transactionService.ListTransactions)
			r.Post("/transactions", transactionService.CreateTransfer)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if viper.GetBool("selftest.enabled") {
		go func() {
			// Give the listener a moment to come up.
			time.Sleep(time.Second)
			runner := selftest.NewRunner("http://localhost:" + port)
			if err := runner.Run(context.Background()); err != nil {
				log.Printf("[SELFTEST] %v", err)
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
