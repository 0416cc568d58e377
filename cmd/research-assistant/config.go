// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/checkpoint"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/internal/workflow"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// setDefaults registers every config key with its default so that
// environment variables are picked up for keys absent from the file.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()

	v.SetDefault("search.timeout", d.Search.Timeout)
	v.SetDefault("search.user_agent", d.Search.UserAgent)
	v.SetDefault("search.max_results", d.Search.MaxResults)
	v.SetDefault("search.email", d.Search.Email)
	v.SetDefault("search.requests_per_second", d.Search.RequestsPerSecond)
	v.SetDefault("search.max_retries", d.Search.MaxRetries)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.max_retries", d.LLM.MaxRetries)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.prefix", d.Store.Prefix)
	v.SetDefault("store.ttl", d.Store.TTL)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.table", d.Store.Table)

	v.SetDefault("workflow.call_timeout", d.Workflow.CallTimeout)
}

// loadConfig reads the effective configuration from v.
func loadConfig(v *viper.Viper) types.Config {
	return types.Config{
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration("search.timeout"),
				UserAgent: v.GetString("search.user_agent"),
			},
			MaxResults:        v.GetInt("search.max_results"),
			Email:             v.GetString("search.email"),
			RequestsPerSecond: v.GetFloat64("search.requests_per_second"),
			MaxRetries:        v.GetInt("search.max_retries"),
		},
		LLM: types.LLMConfig{
			Provider:    v.GetString("llm.provider"),
			Model:       v.GetString("llm.model"),
			APIKey:      v.GetString("llm.api_key"),
			BaseURL:     v.GetString("llm.base_url"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			MaxRetries:  v.GetInt("llm.max_retries"),
		},
		Store: types.StoreConfig{
			Backend:       v.GetString("store.backend"),
			Path:          v.GetString("store.path"),
			RedisAddr:     v.GetString("store.redis_addr"),
			RedisPassword: v.GetString("store.redis_password"),
			RedisDB:       v.GetInt("store.redis_db"),
			Prefix:        v.GetString("store.prefix"),
			TTL:           v.GetDuration("store.ttl"),
			PostgresDSN:   v.GetString("store.postgres_dsn"),
			Table:         v.GetString("store.table"),
		},
		Workflow: types.WorkflowConfig{
			CallTimeout: v.GetDuration("workflow.call_timeout"),
		},
	}
}

// app bundles the collaborators of one CLI invocation.
type app struct {
	cfg   types.Config
	store checkpoint.Store
	ctrl  *workflow.Controller
}

// openStore opens only the checkpoint store, for commands that never call
// a model.
func openStore(ctx context.Context) (checkpoint.Store, error) {
	cfg := loadConfig(viper.GetViper())
	store, _, err := checkpoint.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	return store, nil
}

// openThreads wires a controller without a model or paper source. It
// serves the commands that inspect or reset threads, so it needs no API key
// but still takes the per-thread lock of the configured backend.
func openThreads(ctx context.Context) (*app, error) {
	cfg := loadConfig(viper.GetViper())
	store, locker, err := checkpoint.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	ctrl := workflow.New(nil, nil, store,
		workflow.WithLogger(logger),
		workflow.WithLocker(locker),
	)
	return &app{cfg: cfg, store: store, ctrl: ctrl}, nil
}

// newApp wires the controller from configuration and secrets.
func newApp(ctx context.Context) (*app, error) {
	cfg := loadConfig(viper.GetViper())
	loadedSecrets.Apply(&cfg)
	return buildApp(ctx, cfg, logger)
}

func buildApp(ctx context.Context, cfg types.Config, log *zap.Logger) (*app, error) {
	client, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("configuring %s model: %w", cfg.LLM.Provider, err)
	}

	store, locker, err := checkpoint.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}

	source := search.NewOpenAlexSource(nil, cfg.Search)
	ctrl := workflow.New(client, source, store,
		workflow.WithLogger(log),
		workflow.WithLocker(locker),
		workflow.WithCallTimeout(cfg.Workflow.CallTimeout),
		workflow.WithMaxResults(cfg.Search.MaxResults),
	)

	log.Debug("research assistant ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.String("store", cfg.Store.Backend),
		zap.String("source", source.Name()))

	return &app{cfg: cfg, store: store, ctrl: ctrl}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
