package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"absensi-ai/internal/adapter/gateway"
	"absensi-ai/internal/adapter/llm"
	"absensi-ai/internal/adapter/mcpserver"
	"absensi-ai/internal/adapter/notify"
	"absensi-ai/internal/adapter/store"
	"absensi-ai/internal/adapter/tui/chat"
	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
	"absensi-ai/internal/infra/logger"
	"absensi-ai/internal/usecase"
	"absensi-ai/internal/usecase/scheduling"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runChat starts the terminal chat. Console logging is dropped so it does
// not corrupt the screen.
func runChat() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := buildApp(ctx, configPath(), appOptions{console: io.Discard})
	if err != nil {
		return err
	}
	defer a.Close()

	if op, ok := llm.Unwrap(a.llm).(*llm.OllamaProvider); ok {
		go func() {
			warmCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			if err := op.Warmup(warmCtx); err != nil {
				a.log.Warn("model warmup failed", "error", err)
			}
		}()
	}

	return chat.Run(ctx, chat.ModelDeps{
		Agent:  a.agent,
		Model:  defaultModel(a.cfg),
		Logger: logger.Component(a.log, "tui"),
	})
}

// runServe runs the HTTP and websocket gateway together with the
// scheduler until interrupted.
func runServe() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := buildApp(ctx, configPath(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	notifiers, err := notify.FromConfig(a.cfg.Notify, logger.Component(a.log, "notify"))
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	sched := scheduling.NewScheduler(a.tools, notifiers, logger.Component(a.log, "scheduler"))
	if err := configureScheduler(sched, a.cfg.Scheduler, a.sessions); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer sched.Stop()

	srv := gateway.NewServer(a.cfg.Gateway, gateway.ServerDeps{
		Agent:    a.agent,
		Tools:    a.tools,
		Sessions: a.sessions,
		Auth:     gateway.NewAuthenticator(a.cfg.Gateway.Auth),
		Health:   a.store.Ping,
		Logger:   logger.Component(a.log, "gateway"),
	})
	return srv.Start(ctx)
}

// sessionReapInterval is how often idle gateway sessions are dropped.
const sessionReapInterval = "10m"

// configureScheduler registers the session reaper and, when enabled, the
// configured report tasks.
func configureScheduler(sched *scheduling.Scheduler, cfg config.SchedulerConfig, sessions *usecase.SessionManager) error {
	sched.RegisterAction(scheduling.ActionSessionReap, func(context.Context, scheduling.ScheduledTask) error {
		sessions.ReapStaleSessions()
		return nil
	})
	if err := sched.AddTask(scheduling.ScheduledTask{
		Name:     "session-reaper",
		Schedule: sessionReapInterval,
		Action:   scheduling.ActionSessionReap,
	}); err != nil {
		return err
	}

	if !cfg.Enabled {
		return nil
	}
	for _, tc := range cfg.Tasks {
		task, err := reportTask(tc)
		if err != nil {
			return err
		}
		if err := sched.AddTask(task); err != nil {
			return err
		}
	}
	return nil
}

// reportTask converts a configured task into a tool_report task.
func reportTask(tc config.ScheduledTaskConfig) (scheduling.ScheduledTask, error) {
	args := json.RawMessage("{}")
	if len(tc.Args) > 0 {
		raw, err := json.Marshal(tc.Args)
		if err != nil {
			return scheduling.ScheduledTask{}, fmt.Errorf("scheduler task %q: args: %w", tc.Name, err)
		}
		args = raw
	}
	return scheduling.ScheduledTask{
		Name:     tc.Name,
		Schedule: tc.Schedule,
		Action:   scheduling.ActionToolReport,
		Tool:     tc.Tool,
		Args:     args,
		Notify:   tc.Notify,
	}, nil
}

// runMCP serves the operations over MCP on stdin and stdout. Stdout carries
// the protocol, so console logging goes to stderr.
func runMCP() error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := buildApp(ctx, configPath(), appOptions{console: os.Stderr})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := mcpserver.New(a.tools, version, logger.Component(a.log, "mcp"))
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}

// seedDays is how far back the demo data reaches.
const seedDays = 60

// runSeed creates the sqlite database named by database.path and fills it
// with demo data.
func runSeed() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	report, err := seedDatabase(context.Background(), cfg, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Database %s siap: %d kelas, %d siswa, %d absensi.\n",
		cfg.Database.Path, report.Kelas, report.Siswa, report.Absensi)
	return nil
}

func seedDatabase(ctx context.Context, cfg *config.Config, end time.Time) (*store.SeedReport, error) {
	if cfg.Database.Driver != "sqlite" {
		return nil, domain.NewDomainError("seed", domain.ErrInvalidInput,
			"seed only writes sqlite databases; set database.driver to sqlite")
	}
	st, err := store.OpenSQLite(cfg.Database.Path, cfg.Database.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	defer st.Close()

	report, err := st.Seed(ctx, store.SeedOptions{
		End:       end,
		Days:      seedDays,
		Latitude:  cfg.School.Latitude,
		Longitude: cfg.School.Longitude,
		Seed:      uint64(end.Unix()),
	})
	if errors.Is(err, domain.ErrDuplicate) {
		return nil, fmt.Errorf("%s already holds data: %w", cfg.Database.Path, err)
	}
	return report, err
}

// runEncrypt prints the enc: form of a secret for config.yaml.
func runEncrypt(args []string) error {
	out, err := encryptSecret(args, os.Getenv("ABSENSI_CONFIG_KEY"))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func encryptSecret(args []string, passphrase string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", errors.New("usage: absensi-ai encrypt <value>")
	}
	if passphrase == "" {
		return "", errors.New("ABSENSI_CONFIG_KEY must be set")
	}
	return config.EncryptValue(args[0], passphrase)
}
