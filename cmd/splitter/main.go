// The splitter service slices submitted media into per-speaker chunks and
// fans them out to the transcription queue.
package main

import (
	"context"
	"os"

	"github.com/polygraf/audio-backend/internal/app"
	"github.com/polygraf/audio-backend/internal/audio"
	"github.com/polygraf/audio-backend/internal/component"
	"github.com/polygraf/audio-backend/internal/job"
	"github.com/polygraf/audio-backend/internal/logger"
	"github.com/polygraf/audio-backend/internal/pipeline"
	"github.com/polygraf/audio-backend/internal/redis"
	"github.com/polygraf/audio-backend/internal/storage"

	_ "github.com/polygraf/audio-backend/internal/storage/local"
	_ "github.com/polygraf/audio-backend/internal/storage/s3"
)

func main() {
	a, err := app.New("splitter")
	if err != nil {
		logger.NewDefault("splitter").Fatal("startup failed", logger.ErrorFields("init", err))
	}

	redisComp, err := redis.NewComponent(a.Config.Redis, a.Logger)
	if err != nil {
		a.Logger.Fatal("redis init failed", logger.ErrorFields("redis", err))
	}
	artifacts, err := storage.New(a.Config.Storage, a.Logger)
	if err != nil {
		a.Logger.Fatal("storage init failed", logger.ErrorFields("storage", err))
	}

	store := job.NewStore(redisComp.Client(), a.Logger)
	queue := redis.NewQueue(redisComp.Client(), "")
	splitter := pipeline.NewSplitter(store, queue, artifacts,
		audio.NewFFmpegSlicer(), a.Config.Pipeline.WorkDir, a.Logger)

	mustRegister(a, redisComp)
	mustRegister(a, pipeline.NewStageComponent("splitter", splitter))

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
