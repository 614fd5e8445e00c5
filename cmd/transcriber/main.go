// The transcriber service consumes audio chunks, transcribes them through
// the configured speech-to-text provider, and drives job completion.
package main

import (
	"context"
	"os"

	"github.com/polygraf/audio-backend/internal/app"
	"github.com/polygraf/audio-backend/internal/component"
	"github.com/polygraf/audio-backend/internal/job"
	"github.com/polygraf/audio-backend/internal/logger"
	"github.com/polygraf/audio-backend/internal/pipeline"
	"github.com/polygraf/audio-backend/internal/redis"
	"github.com/polygraf/audio-backend/internal/storage"
	"github.com/polygraf/audio-backend/internal/transcription"
	"github.com/polygraf/audio-backend/internal/transcription/whisper"

	_ "github.com/polygraf/audio-backend/internal/storage/local"
	_ "github.com/polygraf/audio-backend/internal/storage/s3"
)

func main() {
	a, err := app.New("transcriber")
	if err != nil {
		logger.NewDefault("transcriber").Fatal("startup failed", logger.ErrorFields("init", err))
	}

	redisComp, err := redis.NewComponent(a.Config.Redis, a.Logger)
	if err != nil {
		a.Logger.Fatal("redis init failed", logger.ErrorFields("redis", err))
	}
	artifacts, err := storage.New(a.Config.Storage, a.Logger)
	if err != nil {
		a.Logger.Fatal("storage init failed", logger.ErrorFields("storage", err))
	}

	registry := transcription.NewRegistry()
	registry.RegisterFactory(whisper.ProviderName, whisper.Factory())
	prov, err := registry.Create(whisper.ProviderName, map[string]any{
		"url":      a.Config.Whisper.URL,
		"model":    a.Config.Whisper.Model,
		"language": a.Config.Whisper.Language,
		"timeout":  a.Config.Whisper.Timeout,
	})
	if err != nil {
		a.Logger.Fatal("transcription provider init failed", logger.ErrorFields("provider", err))
	}

	store := job.NewStore(redisComp.Client(), a.Logger)
	queue := redis.NewQueue(redisComp.Client(), "")
	transcriber := pipeline.NewTranscriber(store, queue, artifacts, prov,
		a.Config.Pipeline.Workers, a.Config.Pipeline.ChunkTimeout,
		a.Config.Pipeline.WorkDir, a.Logger)

	mustRegister(a, redisComp)
	mustRegister(a, pipeline.NewStageComponent("transcriber", transcriber))

	if err := a.Run(context.Background()); err != nil {
		a.Logger.Error("service exited with error", logger.ErrorFields("run", err))
		os.Exit(1)
	}
}

func mustRegister(a *app.App, c component.Component) {
	if err := a.Register(c); err != nil {
		a.Logger.Fatal("component registration failed", logger.ErrorFields("register", err))
	}
}
