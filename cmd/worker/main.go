package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"essay-grader/internal/config"
	"essay-grader/internal/db"
	"essay-grader/internal/grading"
	"essay-grader/internal/llm"
	"essay-grader/internal/storage"
	"essay-grader/internal/vision"
	"essay-grader/internal/worker"
)

func main() {
	cfg := config.Load()
	cfg.SetupLogger()

	dbase := db.MustOpen(cfg.DatabaseURL)
	photos, err := storage.New(context.Background(), cfg.S3)
	if err != nil {
		log.Fatal(err)
	}
	asq := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})

	provider := llm.New(cfg.LLM)
	retry := llm.RetryPolicy{MaxAttempts: cfg.LLM.MaxAttempts, Wait: cfg.LLM.RetryWait}

	p := &worker.Processor{
		Store:  db.NewStore(dbase),
		Engine: grading.NewConsensus(grading.NewEssayGrader(provider, retry)),
		Photos: photos,
		OCR:    vision.NewTranscriber(provider, retry),
		Asynq:  asq,
	}
	if err := worker.Run(cfg.RedisAddr, p); err != nil {
		log.Fatal(err)
	}
}
