// The summarizer service turns completed per-speaker transcripts into the
// final structured meeting summary.
package main

import (
	"context"
	"os"

	"github.com/polygraf/audio-backend/internal/app"
	"github.com/polygraf/audio-backend/internal/component"
	"github.com/polygraf/audio-backend/internal/config"
	"github.com/polygraf/audio-backend/internal/job"
	"github.com/polygraf/audio-backend/internal/llm"
	"github.com/polygraf/audio-backend/internal/llm/gemini"
	"github.com/polygraf/audio-backend/internal/llm/ollama"
	"github.com/polygraf/audio-backend/internal/logger"
	"github.com/polygraf/audio-backend/internal/pipeline"
	"github.com/polygraf/audio-backend/internal/redis"
)

func main() {
	a, err := app.New("summarizer")
	if err != nil {
		logger.NewDefault("summarizer").Fatal("startup failed", logger.ErrorFields("init", err))
	}

	prov, err := buildLLMProvider(a.Config)
	if err != nil {
		a.Logger.Fatal("llm provider init failed", logger.ErrorFields("provider", err))
	}

	redisComp, err := redis.NewComponent(a.Config.Redis, a.Logger)
	if err != nil {
		a.Logger.Fatal("redis init failed", logger.ErrorFields("redis", err))
	}
	store := job.NewStore(redisComp.Client(), a.Logger)
	queue := redis.NewQueue(redisComp.Client(), "")
	summarizer := pipeline.NewSummarizer(store, queue, prov, a.Logger)

	mustRegister(a, redisComp)
	mustRegister(a, pipeline.NewStageComponent("summarizer", summarizer))

	if err := a.Run(context.Background()); err != nil {
		a.Logger.Error("service exited with error", logger.ErrorFields("run", err))
		os.Exit(1)
	}
}

// buildLLMProvider selects the summarization backend by configuration.
func buildLLMProvider(cfg *config.Config) (llm.Provider, error) {
	registry := llm.NewRegistry()
	registry.RegisterFactory(gemini.ProviderName, gemini.Factory())
	registry.RegisterFactory(ollama.ProviderName, ollama.Factory())

	switch cfg.Pipeline.LLMProvider {
	case ollama.ProviderName:
		return registry.Create(ollama.ProviderName, map[string]any{
			"base_url":    cfg.Ollama.BaseURL,
			"model":       cfg.Ollama.Model,
			"temperature": cfg.Ollama.Temperature,
			"timeout":     cfg.Ollama.Timeout,
		})
	default:
		return registry.Create(gemini.ProviderName, map[string]any{
			"base_url": cfg.Gemini.BaseURL,
			"api_key":  cfg.Gemini.APIKey,
			"model":    cfg.Gemini.Model,
			"timeout":  cfg.Gemini.Timeout,
		})
	}
}

func mustRegister(a *app.App, c component.Component) {
	if err := a.Register(c); err != nil {
		a.Logger.Fatal("component registration failed", logger.ErrorFields("register", err))
	}
}
