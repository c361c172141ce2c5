package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/aerialworks/dronearchive/archive"
	"github.com/aerialworks/dronearchive/config"
	"github.com/aerialworks/dronearchive/database"
	"github.com/aerialworks/dronearchive/handlers"
	"github.com/aerialworks/dronearchive/realtime"
	"github.com/aerialworks/dronearchive/repository"
	"github.com/aerialworks/dronearchive/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.ImagesPath, cfg.MetadataPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize journal database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate journal database: %v", err)
	}

	store, err := archive.NewStore(cfg.ImagesPath, cfg.MetadataPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize archive store: %v", err)
	}
	index := archive.NewIndex(store)
	defer index.Close()
	writer := archive.NewWriter(store, index.Invalidate)
	ingestor := archive.NewIngestor(archive.NewAllocator(), writer)

	hub := realtime.NewHub()
	go hub.Run()

	uploadLogRepo := repository.NewUploadLogRepository(db)
	recorder := workers.NewActivityRecorder(uploadLogRepo, hub, cfg.ActivityQueueSize, cfg.NumActivityWorkers)
	defer recorder.Stop()

	log.Printf("Archiving images under: %s", cfg.ImagesPath)
	log.Printf("Archiving metadata under: %s", cfg.MetadataPath)
	log.Printf("Journal database: %s", cfg.DatabasePath)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	uploadHandler := &handlers.UploadHandler{
		Ingestor:         ingestor,
		Recorder:         recorder,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		BatchConcurrency: cfg.BatchConcurrency,
	}
	archiveHandler := &handlers.ArchiveHandler{Store: store, Index: index}
	activityHandler := &handlers.ActivityHandler{Repo: uploadLogRepo}

	r.Get("/health", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", uploadHandler.Upload)
		r.Post("/upload/batch", uploadHandler.UploadBatch)

		r.Get("/images", archiveHandler.ListImages)
		r.Get("/images/{date}/{flight_folder}/{filename}", archiveHandler.GetImage)
		r.Get("/metadata/{date}/{flight_folder}/{filename}", archiveHandler.GetMetadata)

		r.Get("/flights", archiveHandler.ListFlights)
		r.Get("/stats", archiveHandler.GetStats)
		r.Get("/activity", activityHandler.ListActivity)
	})

	r.Get("/ws/events", hub.ServeWS)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
