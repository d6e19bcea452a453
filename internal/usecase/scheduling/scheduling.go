package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"absensi-ai/internal/domain"
)

// ScheduledAction identifies a type of scheduled action.
type ScheduledAction string

const (
	ActionToolReport  ScheduledAction = "tool_report"
	ActionSessionReap ScheduledAction = "session_reap"
)

// DefaultTaskTimeout bounds one run of a scheduled task.
const DefaultTaskTimeout = 5 * time.Minute

// ScheduledTask defines a recurring task.
type ScheduledTask struct {
	Name     string
	Schedule string // cron expression "0 7 * * 1-5", descriptor "@daily" or duration "30m"
	Action   ScheduledAction
	Tool     string          // for tool_report
	Args     json.RawMessage // for tool_report
	Notify   []string        // notifier names for tool_report
	OneShot  bool
}

// ActionFunc runs one firing of a task.
type ActionFunc func(ctx context.Context, task ScheduledTask) error

type entry struct {
	task ScheduledTask
	id   cron.EntryID
}

// Scheduler runs tasks on a recurring schedule using cron expressions or durations.
type Scheduler struct {
	cron        *cron.Cron
	actions     map[ScheduledAction]ActionFunc
	entries     map[string]entry
	tools       domain.ToolExecutor
	notifiers   map[string]domain.Notifier
	taskTimeout time.Duration
	logger      *slog.Logger
	mu          sync.Mutex
	started     bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewScheduler creates a scheduler. tool_report tasks resolve operations
// through tools and deliver results to the named notifiers.
func NewScheduler(tools domain.ToolExecutor, notifiers []domain.Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:        cron.New(),
		actions:     make(map[ScheduledAction]ActionFunc),
		entries:     make(map[string]entry),
		tools:       tools,
		notifiers:   make(map[string]domain.Notifier, len(notifiers)),
		taskTimeout: DefaultTaskTimeout,
		logger:      logger,
	}
	for _, n := range notifiers {
		s.notifiers[n.Name()] = n
	}
	if tools != nil {
		s.actions[ActionToolReport] = s.runToolReport
	}
	return s
}

// SetTaskTimeout overrides DefaultTaskTimeout.
func (s *Scheduler) SetTaskTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.taskTimeout = d
	}
}

// RegisterAction registers a handler for a scheduled action type.
func (s *Scheduler) RegisterAction(action ScheduledAction, fn ActionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[action] = fn
}

// AddTask validates and schedules a task. Task names are unique.
func (s *Scheduler) AddTask(task ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.Name == "" {
		return fmt.Errorf("scheduler: %w: task name is required", domain.ErrInvalidInput)
	}
	if _, exists := s.entries[task.Name]; exists {
		return fmt.Errorf("scheduler: task %q: %w", task.Name, domain.ErrDuplicate)
	}
	fn, ok := s.actions[task.Action]
	if !ok {
		return fmt.Errorf("scheduler: unknown action %q for task %q", task.Action, task.Name)
	}
	if err := s.validate(task); err != nil {
		return err
	}

	schedule, err := parseSchedule(task.Schedule)
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q for task %q: %w", task.Schedule, task.Name, err)
	}

	var entryID cron.EntryID
	entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.fire(task, fn)
		if task.OneShot {
			s.cron.Remove(entryID)
			s.mu.Lock()
			delete(s.entries, task.Name)
			s.mu.Unlock()
		}
	}))
	s.entries[task.Name] = entry{task: task, id: entryID}

	s.logger.Info("task added to scheduler",
		"name", task.Name,
		"schedule", task.Schedule,
		"action", string(task.Action),
		"tool", task.Tool,
	)
	return nil
}

func (s *Scheduler) validate(task ScheduledTask) error {
	if task.Action != ActionToolReport {
		return nil
	}
	if _, err := s.tools.Get(task.Tool); err != nil {
		return fmt.Errorf("scheduler: task %q: %w", task.Name, err)
	}
	if len(task.Args) > 0 && !json.Valid(task.Args) {
		return fmt.Errorf("scheduler: task %q: %w: args are not valid JSON", task.Name, domain.ErrInvalidInput)
	}
	for _, name := range task.Notify {
		if _, ok := s.notifiers[name]; !ok {
			return fmt.Errorf("scheduler: task %q: notifier %q is not configured", task.Name, name)
		}
	}
	return nil
}

// fire runs one firing under the scheduler context and the task timeout.
func (s *Scheduler) fire(task ScheduledTask, fn ActionFunc) {
	s.mu.Lock()
	ctx := s.ctx
	timeout := s.taskTimeout
	s.mu.Unlock()

	if ctx == nil {
		s.logger.Debug("scheduler stopped, skipping task", "task", task.Name)
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := fn(taskCtx, task); err != nil {
		s.logger.Warn("scheduled task failed",
			"task", task.Name,
			"error", err,
			"duration", time.Since(start))
		return
	}
	s.logger.Info("scheduled task completed",
		"task", task.Name,
		"duration", time.Since(start))
}

// RunNow executes a registered task immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	fn := s.actions[e.task.Action]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: task %q: %w", name, domain.ErrNotFound)
	}
	return fn(ctx, e.task)
}

// RemoveTask unschedules a task by name.
func (s *Scheduler) RemoveTask(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("scheduler: task %q: %w", name, domain.ErrNotFound)
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)
	s.logger.Info("task removed", "name", name)
	return nil
}

// NextRun returns the next run time of a task, or nil when the task is
// unknown or the scheduler has not started.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	ce := s.cron.Entry(e.id)
	if ce.ID == 0 || ce.Next.IsZero() {
		return nil
	}
	t := ce.Next
	return &t
}

// Tasks returns the names of scheduled tasks.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start begins running the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true
	return nil
}

// Stop signals the scheduler to stop and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.started = false
	s.mu.Unlock()

	// Running jobs take s.mu in fire, so wait without holding it.
	<-s.cron.Stop().Done()

	s.mu.Lock()
	s.ctx = nil
	s.mu.Unlock()
	return nil
}

// reportOutcome picks the fields of an operation result a report cares about.
type reportOutcome struct {
	Error    string `json:"error"`
	FilePath string `json:"file_path"`
}

// runToolReport executes the task's operation and posts the result to every
// configured notifier. A problem result is delivered too, then reported as
// a failure.
func (s *Scheduler) runToolReport(ctx context.Context, task ScheduledTask) error {
	t, err := s.tools.Get(task.Tool)
	if err != nil {
		return err
	}

	res, err := t.Execute(ctx, task.Args)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrToolFailure, task.Tool, err)
	}
	content := "null"
	if res != nil {
		content = res.Content
	}

	var outcome reportOutcome
	_ = json.Unmarshal([]byte(content), &outcome)

	n := domain.Notification{
		Title:    fmt.Sprintf("%s (%s)", task.Name, time.Now().Format("2006-01-02 15:04")),
		Body:     content,
		FilePath: outcome.FilePath,
	}

	var errs []error
	for _, name := range task.Notify {
		if err := s.notifiers[name].Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if outcome.Error != "" {
		errs = append(errs, fmt.Errorf("%s: %s", task.Tool, outcome.Error))
	}
	return errors.Join(errs...)
}

// parseSchedule tries to parse a schedule string as a cron expression first,
// then falls back to time.ParseDuration.
func parseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("empty schedule")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(schedule); err == nil {
		return sched, nil
	}

	dur, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("not a valid cron expression or duration: %q", schedule)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration must be positive: %q", schedule)
	}
	return &constantDelay{delay: dur}, nil
}

// ParseSchedule exposes schedule parsing for config validation.
func ParseSchedule(schedule string) (cron.Schedule, error) {
	return parseSchedule(schedule)
}

// constantDelay implements cron.Schedule for a fixed interval.
// Unlike cron.Every(), it supports sub-second durations.
type constantDelay struct {
	delay time.Duration
}

func (d *constantDelay) Next(t time.Time) time.Time {
	return t.Add(d.delay)
}
