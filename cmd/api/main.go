package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"greetbox/api/internal/app"
	"greetbox/api/internal/config"
	"greetbox/api/internal/email"
	"greetbox/api/internal/grants"
	"greetbox/api/internal/media"
	"greetbox/api/internal/search"
	"greetbox/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
		searchService.ReindexAllFromPG(ctx)
	}

	var mediaStore *media.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		mediaStore, err = media.New(media.Config{
			Endpoint:     cfg.MinioEndpoint,
			AccessKey:    cfg.MinioAccessKey,
			SecretKey:    cfg.MinioSecretKey,
			UseSSL:       cfg.MinioUseSSL,
			ImagesBucket: cfg.ImagesBucket,
			VideosBucket: cfg.VideosBucket,
			BaseURL:      cfg.MediaBaseURL,
		})
		if err != nil {
			log.Fatalf("media store init failed: %v", err)
		}
		if err := mediaStore.EnsureBuckets(ctx); err != nil {
			log.Fatalf("media buckets failed: %v", err)
		}
	} else {
		log.Printf("media storage not configured, uploads disabled")
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for view grant storage")
		redisStore, err := grants.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		if mediaStore != nil {
			service = app.New(cfg, dataStore, redisStore, mediaStore, mailer, searchService)
		} else {
			service = app.New(cfg, dataStore, redisStore, nil, mailer, searchService)
		}
	} else {
		log.Printf("Using PostgreSQL for view grant storage")
		if mediaStore != nil {
			service = app.New(cfg, dataStore, dataStore, mediaStore, mailer, searchService)
		} else {
			service = app.New(cfg, dataStore, dataStore, nil, mailer, searchService)
		}
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Greetbox API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
