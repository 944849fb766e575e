package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/metrics"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/auth"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/catalog"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/ingest"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/ledger"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/override"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/roster"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("no .env file, using environment as-is")
	}

	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Successfully connected to the database!")

	secret := []byte(os.Getenv("JWT_SECRET"))
	if len(secret) == 0 {
		log.Fatal("JWT_SECRET is required")
	}

	metrics.Register()

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	// ── Public surface: liveness, metrics, login ────────────
	router.Get("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.Handle("/metrics", promhttp.Handler())

	rosterRepo := roster.NewPostgresRepository(db)
	authService := auth.NewService(rosterRepo, secret)
	auth.NewHandler(authService).RegisterRoutes(router)

	// ── Authenticated surface ───────────────────────────────
	authMiddleware := auth.NewMiddleware(secret)
	router.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handler)

		rosterService := roster.NewService(rosterRepo)
		roster.NewHandler(rosterService).RegisterRoutes(r)

		catalogRepo := catalog.NewPostgresRepository(db)
		catalogService := catalog.NewService(catalogRepo)
		catalog.NewHandler(catalogService).RegisterRoutes(r)

		ledgerPoster := ledger.NewPostgresPoster()
		ingestRepo := ingest.NewPostgresRepository(db, ledgerPoster)
		ingestService := ingest.NewService(ingestRepo)
		ingest.NewHandler(ingestService).RegisterRoutes(r)

		overrideRepo := override.NewPostgresRepository(db)
		overrideService := override.NewService(rosterRepo, overrideRepo)
		override.NewHandler(overrideService).RegisterRoutes(r)
	})

	// ── Start Server ─────────────────────────────────────────
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("Yardbooks API server starting on :%s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}
