// backend/cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"chat-funnel/internal/analytics"
	"chat-funnel/internal/auth"
	"chat-funnel/internal/chat"
	"chat-funnel/internal/dashboard"
	"chat-funnel/internal/funnel"
	"chat-funnel/internal/models"
	"chat-funnel/internal/orderset"
	"chat-funnel/internal/session"
	"chat-funnel/pkg/apierr"
	"chat-funnel/pkg/config"
	"chat-funnel/pkg/database"
	"chat-funnel/pkg/logger"
	"chat-funnel/pkg/stream"
)

func main() {
	cfg, envLoaded := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if !envLoaded {
		log.Warn(".env file not found, using process environment")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// Initialize database
	db, err := database.NewDB(&database.Config{
		URL:      cfg.DatabaseURL,
		Type:     cfg.DBType,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
		Path:     cfg.DBPath,
	})
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(db, models.All()...); err != nil {
			log.Fatal("failed to migrate database", "error", err)
		}
	}
	schema := database.ProbeSchema(db)
	log.Info("database ready", "type", cfg.DBType, "session_schema", schema.String())

	ctx := context.Background()

	// Order set catalog
	orderSets := orderset.NewRegistry(db)
	if err := orderSets.Seed(ctx, orderset.Defaults()); err != nil {
		log.Fatal("failed to seed order sets", "error", err)
	}

	// Event mirror
	publisher := stream.New(stream.Options{
		Type:         cfg.StreamType,
		RedisAddr:    cfg.RedisAddr,
		RedisStream:  cfg.RedisStream,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
	}, log)
	defer publisher.Close()

	// Initialize services
	sessions := session.NewStore(db, schema, log)
	authService := auth.NewService(auth.NewRepository(db), cfg.JWTSecret, log)
	if err := authService.EnsureOperator(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatal("failed to seed operator", "error", err)
	}
	analyticsService := analytics.NewService(analytics.NewRepository(db), sessions, orderSets, publisher, log)
	chatService := chat.NewService(sessions, log)
	aggregator := funnel.NewAggregator(funnel.NewRepository(db), orderSets)
	dashboardService := dashboard.NewService(aggregator, db, log)

	// Initialize handlers
	verbose := cfg.Verbose()
	authHandler := auth.NewHandler(authService, log, verbose)
	analyticsHandler := analytics.NewHandler(analyticsService, log, verbose)
	chatHandler := chat.NewHandler(chatService, log, verbose)
	orderSetHandler := orderset.NewHandler(orderSets, log, verbose)
	dashboardHandler := dashboard.NewHandler(dashboardService, log, verbose)

	// Setup router
	router := mux.NewRouter()
	router.Use(requestLogger(log))

	router.HandleFunc("/health", health).Methods("GET")
	router.HandleFunc("/", index).Methods("GET")

	// Public routes
	router.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/analytics/event", analyticsHandler.TrackEvent).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/analytics/batch", analyticsHandler.TrackBatch).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/order-sets", orderSetHandler.List).Methods("GET")
	router.HandleFunc("/api/chat/submit", chatHandler.Submit).Methods("POST", "OPTIONS")

	// Operator routes - JWT required
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.JWTMiddleware(cfg.JWTSecret))

	apiRouter.HandleFunc("/auth/operators", authHandler.Register).Methods("POST")
	apiRouter.HandleFunc("/chat/{sessionId}", chatHandler.Get).Methods("GET")
	apiRouter.HandleFunc("/dashboard/stats", dashboardHandler.Stats).Methods("GET")
	apiRouter.HandleFunc("/dashboard/order-sets", dashboardHandler.OrderSets).Methods("GET")
	apiRouter.HandleFunc("/dashboard/dropoffs", dashboardHandler.Dropoffs).Methods("GET")
	apiRouter.HandleFunc("/dashboard/questions", dashboardHandler.Questions).Methods("GET")
	apiRouter.HandleFunc("/dashboard/completion-rates", dashboardHandler.CompletionRates).Methods("GET")
	apiRouter.HandleFunc("/dashboard/report", dashboardHandler.Report).Methods("GET")
	apiRouter.HandleFunc("/dashboard/clear-data", dashboardHandler.ClearData).Methods("DELETE")

	// CORS middleware configuration
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsMiddleware.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	// Graceful shutdown setup
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	log.Info("server shutdown gracefully")
}

func health(w http.ResponseWriter, r *http.Request) {
	apierr.JSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func index(w http.ResponseWriter, r *http.Request) {
	apierr.JSON(w, http.StatusOK, map[string]interface{}{
		"service": "chat-funnel analytics",
		"endpoints": []string{
			"POST /api/analytics/event",
			"POST /api/analytics/batch",
			"GET /api/order-sets",
			"POST /api/chat/submit",
			"GET /api/chat/{sessionId}",
			"POST /api/auth/login",
			"GET /api/dashboard/stats",
			"GET /api/dashboard/order-sets",
			"GET /api/dashboard/dropoffs",
			"GET /api/dashboard/questions",
			"GET /api/dashboard/completion-rates",
			"GET /api/dashboard/report",
			"DELETE /api/dashboard/clear-data",
			"GET /health",
		},
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
