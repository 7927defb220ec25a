package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"essay-grader/internal/auth"
	"essay-grader/internal/config"
	"essay-grader/internal/db"
	httpSrv "essay-grader/internal/http"
	"essay-grader/internal/llm"
	"essay-grader/internal/migrations"
	"essay-grader/internal/storage"
	"essay-grader/internal/themes"
)

func main() {
	cfg := config.Load()
	cfg.SetupLogger()

	// Run embedded migrations (idempotent)
	migrations.Run(cfg.DatabaseURL)

	dbase := db.MustOpen(cfg.DatabaseURL)
	photos, err := storage.New(context.Background(), cfg.S3)
	if err != nil {
		log.Fatal(err)
	}
	asq := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})

	provider := llm.New(cfg.LLM)
	retry := llm.RetryPolicy{MaxAttempts: cfg.LLM.MaxAttempts, Wait: cfg.LLM.RetryWait}

	srv := httpSrv.NewServer(cfg.HTTPAddr, &httpSrv.Server{
		Store:   db.NewStore(dbase),
		Photos:  photos,
		Asynq:   asq,
		Tokens:  auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Themes:  themes.NewSuggester(provider, retry),
		Healthy: dbase.Ping,
	})
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
