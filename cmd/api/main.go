// The api service accepts job submissions and serves job status.
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/polygraf/audio-backend/internal/api"
	"github.com/polygraf/audio-backend/internal/app"
	"github.com/polygraf/audio-backend/internal/component"
	"github.com/polygraf/audio-backend/internal/job"
	"github.com/polygraf/audio-backend/internal/logger"
	"github.com/polygraf/audio-backend/internal/redis"
	"github.com/polygraf/audio-backend/internal/server"
	"github.com/polygraf/audio-backend/internal/storage"

	_ "github.com/polygraf/audio-backend/internal/storage/local"
	_ "github.com/polygraf/audio-backend/internal/storage/s3"
)

func main() {
	a, err := app.New("api")
	if err != nil {
		logger.NewDefault("api").Fatal("startup failed", logger.ErrorFields("init", err))
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

	srv := server.New(a.Config.Server, a.Logger)
	health := func(c *gin.Context) {
		statuses := a.Components.HealthAll(c.Request.Context())
		code := http.StatusOK
		for _, h := range statuses {
			if h.Status != component.StatusHealthy {
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"components": statuses})
	}
	api.NewHandler(store, queue, artifacts, health, a.Logger).Register(srv.Engine())

	mustRegister(a, redisComp)
	mustRegister(a, srv)

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
