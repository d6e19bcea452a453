package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"absensi-ai/internal/adapter/document"
	"absensi-ai/internal/adapter/llm"
	"absensi-ai/internal/adapter/store"
	"absensi-ai/internal/adapter/tool"
	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
	"absensi-ai/internal/infra/logger"
	"absensi-ai/internal/infra/tracer"
	"absensi-ai/internal/usecase"
	"absensi-ai/internal/usecase/attendance"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	store    *store.SQLStore
	tools    *tool.Registry
	llm      domain.LLMProvider
	agent    *usecase.Agent
	sessions *usecase.SessionManager

	closers []func() error
}

// appOptions tweaks component construction per command.
type appOptions struct {
	// console replaces stdout and stderr as the log destination. File
	// outputs are kept.
	console io.Writer
}

// buildApp loads the configuration and wires the store, the operations,
// the model provider and the agent.
func buildApp(ctx context.Context, cfgPath string, opts appOptions) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &app{cfg: cfg}
	if opts.console != nil && isConsole(cfg.Logger.Output) {
		a.log = logger.NewWithWriter(opts.console, cfg.Logger)
	} else {
		log, logCloser, err := logger.New(cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		a.log = log
		a.closers = append(a.closers, logCloser)
	}

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.closers = append(a.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tracerShutdown(shutdownCtx)
	})

	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg := a.cfg

	st, err := store.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	svcCfg, err := serviceConfig(cfg.School)
	if err != nil {
		return err
	}
	docs := document.NewPDFRenderer(cfg.Documents.OutputDir, logger.Component(a.log, "document"))
	svc := attendance.NewService(st, docs, svcCfg, logger.Component(a.log, "attendance"))

	a.tools = tool.NewRegistry(logger.Component(a.log, "tools"))
	if err := tool.RegisterAttendanceTools(a.tools, svc, a.log); err != nil {
		return fmt.Errorf("tools: %w", err)
	}

	_, provider, err := llm.Build(cfg.LLM, logger.Component(a.log, "llm"))
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	a.llm = provider

	a.agent = usecase.NewAgent(agentDeps(cfg.Agent, provider, a.tools, logger.Component(a.log, "agent")))
	a.sessions = usecase.NewSessionManager(
		cfg.Agent.SessionDir,
		cfg.Agent.SessionTTL,
		2*cfg.Agent.HistoryLimit,
		logger.Component(a.log, "sessions"),
	)

	a.log.Info("absensi-ai ready",
		"version", version,
		"database", st.Driver(),
		"provider", provider.Name(),
		"tools", a.tools.Len(),
	)
	return nil
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func isConsole(output string) bool {
	switch strings.ToLower(output) {
	case "", "stdout", "stderr":
		return true
	}
	return false
}

// serviceConfig maps the school section onto the operation settings.
func serviceConfig(sc config.SchoolConfig) (attendance.Config, error) {
	loc := time.Local
	if sc.Timezone != "" {
		l, err := time.LoadLocation(sc.Timezone)
		if err != nil {
			return attendance.Config{}, fmt.Errorf("school.timezone: %w", err)
		}
		loc = l
	}
	return attendance.Config{
		School: domain.SchoolInfo{
			Nama:          sc.Nama,
			Alamat:        sc.Alamat,
			Telepon:       sc.Telepon,
			Email:         sc.Email,
			Kota:          sc.Kota,
			KepalaSekolah: sc.KepalaSekolah,
			NIPKepala:     sc.NIPKepala,
		},
		Latitude:    sc.Latitude,
		Longitude:   sc.Longitude,
		RadiusMeter: sc.RadiusMeter,
		Location:    loc,
	}, nil
}

// agentDeps builds the loop dependencies from the agent section.
func agentDeps(ac config.AgentConfig, provider domain.LLMProvider, tools domain.ToolExecutor, log *slog.Logger) usecase.AgentDeps {
	deps := usecase.AgentDeps{
		LLM:              provider,
		Tools:            tools,
		History:          usecase.NewHistoryManager(ac.SystemPrompt, ac.HistoryLimit),
		Logger:           log,
		MaxToolRounds:    ac.MaxToolRounds,
		RoundTripTimeout: ac.RoundTripTimeout,
		ToolTimeout:      ac.ToolTimeout,
		MaxRetries:       ac.MaxRetries,
	}
	if ac.MaxRetries > 0 {
		deps.ErrorClassifier = usecase.NewErrorClassifier()
	}
	return deps
}

// defaultModel is the model named by the default provider, for display.
func defaultModel(cfg *config.Config) string {
	if p, ok := cfg.Provider(cfg.LLM.DefaultProvider); ok {
		return p.Model
	}
	return ""
}
