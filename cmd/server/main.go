package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib"

	"session-service/internal/api"
	"session-service/internal/events"
	"session-service/internal/identity"
	"session-service/internal/repository"
	"session-service/internal/service"
	"session-service/internal/tracing"
	_ "session-service/migrations"
)

func main() {
	if err := godotenv.Load(".env.dev"); err != nil {
		fmt.Println("No .env.dev file found, reading from environment variables provided by Docker")
	}

	api.SetupGlobalHandler("session-service")

	shutdownTracer, err := tracing.InitTracerProvider("session-service")
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		handleMigrations()
		return
	}

	db := connectDB()
	defer db.Close()

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}
	eventPublisher, err := events.NewNatsPublisher(natsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	log.Println("Successfully connected to NATS.")

	identityURL := os.Getenv("IDENTITY_SERVICE_URL")
	if identityURL == "" {
		identityURL = "http://identity-service:8001"
	}
	identityClient := identity.NewHTTPClient(identityURL, os.Getenv("INTERNAL_SHARED_SECRET"))

	sessionRepo := repository.NewPostgresSessionRepository(db)
	reservationRepo := repository.NewPostgresReservationRepository(db)

	sessionService := service.NewSessionService(sessionRepo, eventPublisher, identityClient)
	reservationService := service.NewReservationService(reservationRepo, sessionRepo, eventPublisher)

	_, err = events.NewBillingSubscriber(natsURL, reservationRepo)
	if err != nil {
		log.Printf("WARNING: Failed to start billing subscriber: %v", err)
		// Continue running even if subscriber fails, NATS may not be ready
	}

	sessionHandler := api.NewSessionHandler(sessionService)
	reservationHandler := api.NewReservationHandler(reservationService)

	app := fiber.New()
	app.Use(otelfiber.Middleware())
	app.Use(api.PrometheusMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "session-service"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")

	sessionsRoutes := v1.Group("/sessions")
	sessionsRoutes.Use(api.AuthMiddleware())
	sessionsRoutes.Get("/", sessionHandler.ListSessions)
	sessionsRoutes.Post("/", sessionHandler.CreateSession)
	sessionsRoutes.Get("/:id", sessionHandler.GetSession)
	sessionsRoutes.Patch("/:id", sessionHandler.UpdateSession)
	sessionsRoutes.Delete("/:id", sessionHandler.DeleteSession)
	sessionsRoutes.Post("/:id/reserve", reservationHandler.CreateReservation)
	sessionsRoutes.Get("/:id/reservations", reservationHandler.ListSessionReservations)

	internalRoutes := v1.Group("/internal")
	internalRoutes.Use(api.InternalAuthMiddleware())
	internalRoutes.Post("/users/:id/reservations/cancel", reservationHandler.CancelAllUserReservations)

	reservationsRoutes := v1.Group("/reservations")
	reservationsRoutes.Use(api.AuthMiddleware())
	reservationsRoutes.Get("/", reservationHandler.ListMyReservations)
	reservationsRoutes.Get("/:id", reservationHandler.GetReservation)
	reservationsRoutes.Post("/:id/cancel", reservationHandler.CancelReservation)

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8002"
	}

	log.Printf("Listening session-service on port %s", port)
	log.Fatal(app.Listen(":" + port))
}

func connectDB() *sqlx.DB {
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)

	db, err := sqlx.Connect("pgx", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Successfully connected to the database.")
	return db
}

func handleMigrations() {
	fmt.Println("Running database migrations...")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to database for migration: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set goose dialect: %v", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		log.Fatalf("goose: failed to run migrations: %v", err)
	}

	fmt.Println("Migrations applied successfully!")
}
