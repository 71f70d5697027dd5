package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/torque/internal/audio"
	"github.com/harunnryd/torque/internal/audio/device"
	"github.com/harunnryd/torque/internal/backend"
	"github.com/harunnryd/torque/internal/composer"
	"github.com/harunnryd/torque/internal/concurrency"
	"github.com/harunnryd/torque/internal/config"
	"github.com/harunnryd/torque/internal/conversation"
	"github.com/harunnryd/torque/internal/metrics"
	"github.com/harunnryd/torque/internal/realtime"
	"github.com/harunnryd/torque/internal/shop"
	"github.com/harunnryd/torque/internal/store"
	"github.com/harunnryd/torque/internal/summarize"
	"github.com/harunnryd/torque/internal/tool"

	_ "github.com/harunnryd/torque/internal/tool/builtin"
)

// components is everything one `torque run` needs, wired from config.
type components struct {
	cfg        *config.Config
	backend    backend.API
	shop       *shop.ContextStore
	registry   *tool.Registry
	pipeline   *audio.Pipeline
	metrics    *metrics.Metrics
	archive    *store.Archive
	controller *conversation.Controller
}

func newBackend(cfg *config.Config) (*backend.Client, error) {
	timeout, err := config.DurationOrDefault(cfg.Backend.Timeout, config.DefaultBackendTimeout)
	if err != nil {
		return nil, fmt.Errorf("backend.timeout: %w", err)
	}
	return backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIToken, timeout)
}

func newArchive(cfg *config.Config) (*store.Archive, error) {
	lockCfg, err := store.LockConfigFrom(cfg.Store)
	if err != nil {
		return nil, err
	}
	return store.NewArchive(cfg.Store.TranscriptDir, lockCfg)
}

// toolSetup installs the built-in tools and applies descriptor overrides.
func toolSetup(api backend.API, descriptors []tool.Descriptor) conversation.ToolSetup {
	return func(registry *tool.Registry, memory tool.Memory) error {
		if err := tool.InstallBuiltins(registry, tool.BuiltinOptions{Backend: api, Memory: memory}); err != nil {
			return err
		}
		if len(descriptors) > 0 {
			applied := registry.ApplyOverrides(descriptors)
			slog.Debug("Applied tool descriptors", "applied", applied, "total", len(descriptors))
		}
		return nil
	}
}

func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	client, err := newBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend client: %w", err)
	}

	summarizer, err := summarize.New(cfg.Summarizer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize summarizer: %w", err)
	}

	descriptors, err := tool.LoadDescriptors(cfg.Tools.DescriptorPath)
	if err != nil {
		return nil, err
	}

	archive, err := newArchive(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript archive: %w", err)
	}

	pipeline, err := device.NewPipeline(cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio: %w", err)
	}

	m := metrics.New("")
	shopCtx := shop.NewContextStore()
	registry := tool.NewRegistry()
	dispatcher := tool.NewDispatcher(registry, shopCtx.Snapshot,
		tool.WithSummarizer(summarizer),
		tool.WithMaxFeedbackChars(cfg.Tools.MaxFeedbackChars),
		tool.WithObserver(m),
	)

	controller, err := conversation.New(conversation.Options{
		Transport:  realtime.NewWebsocketTransport(),
		Audio:      pipeline,
		Registry:   registry,
		Dispatcher: dispatcher,
		Context:    shopCtx,
		Realtime:   cfg.Realtime,
		Prompts: composer.Prompts{
			Base:         cfg.Prompts.Base,
			ToolGuidance: cfg.Prompts.ToolGuidance,
		},
		SetupTools: toolSetup(client, descriptors),
		Metrics:    m,
		Archive:    archive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize conversation: %w", err)
	}

	if addr := cfg.Metrics.Addr; addr != "" {
		concurrency.SafeGo(func() {
			if err := m.Serve(ctx, addr); err != nil {
				slog.Error("Metrics server stopped", "addr", addr, "error", err)
			}
		}, nil)
	}

	return &components{
		cfg:        cfg,
		backend:    client,
		shop:       shopCtx,
		registry:   registry,
		pipeline:   pipeline,
		metrics:    m,
		archive:    archive,
		controller: controller,
	}, nil
}

func (c *components) Stop() {
	c.controller.Close()
	if err := c.pipeline.Release(); err != nil {
		slog.Warn("Audio release failed", "error", err)
	}
}
