package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateAgent(cfg, ve)
	validateLLM(cfg, ve)
	validateDatabase(cfg, ve)
	validateSchool(cfg, ve)
	validateGateway(cfg, ve)
	validateScheduler(cfg, ve)
	validateNotify(cfg, ve)
	validateObservability(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateAgent(cfg *Config, ve *ValidationError) {
	a := cfg.Agent
	if a.SystemPrompt == "" {
		ve.Add("agent.system_prompt must not be empty")
	}
	if a.HistoryLimit < 0 {
		ve.Add("agent.history_limit must be >= 0")
	}
	if a.MaxToolRounds < 1 {
		ve.Add("agent.max_tool_rounds must be >= 1")
	}
	if a.RoundTripTimeout <= 0 {
		ve.Add("agent.round_trip_timeout must be > 0")
	}
	if a.ToolTimeout <= 0 {
		ve.Add("agent.tool_timeout must be > 0")
	}
	if a.MaxRetries < 0 {
		ve.Add("agent.max_retries must be >= 0")
	}
}

var validProviderTypes = map[string]bool{
	"openai": true,
	"ollama": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}
	if len(cfg.LLM.Providers) == 0 {
		ve.Add("llm.providers must list at least one provider")
		return
	}

	seen := make(map[string]bool)
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: ollama, openai)", i, p.Type)
		}
		if p.Type == "openai" && p.APIKey == "" {
			ve.Add("llm.providers[%d] (%s): api_key is empty (set via ABSENSI_LLM_PROVIDER_%s_API_KEY)",
				i, p.Name, envName(p.Name))
		}
		if p.Model == "" {
			ve.Add("llm.providers[%d] (%s): model must not be empty", i, p.Name)
		}
	}

	if cfg.LLM.DefaultProvider != "" && !seen[cfg.LLM.DefaultProvider] {
		ve.Add("llm.default_provider %q does not match any provider", cfg.LLM.DefaultProvider)
	}
	if cfg.LLM.Failover.Enabled {
		for _, fb := range cfg.LLM.Failover.Fallbacks {
			if !seen[fb] {
				ve.Add("llm.failover.fallbacks: unknown provider %q", fb)
			}
		}
	}
	if cb := cfg.LLM.CircuitBreaker; cb.Enabled && cb.MaxFailures == 0 {
		ve.Add("llm.circuit_breaker.max_failures must be > 0 when enabled")
	}
}

func validateDatabase(cfg *Config, ve *ValidationError) {
	db := cfg.Database
	switch db.Driver {
	case "mysql":
		if db.Host == "" {
			ve.Add("database.host is required for mysql")
		}
		if db.Name == "" {
			ve.Add("database.name is required for mysql")
		}
		if db.Port <= 0 || db.Port > 65535 {
			ve.Add("database.port %d is out of range", db.Port)
		}
	case "sqlite":
		if db.Path == "" {
			ve.Add("database.path is required for sqlite")
		}
	default:
		ve.Add("database.driver %q is invalid (want: mysql, sqlite)", db.Driver)
	}
	if db.QueryTimeout < 0 {
		ve.Add("database.query_timeout must be >= 0")
	}
}

func validateSchool(cfg *Config, ve *ValidationError) {
	s := cfg.School
	if s.Nama == "" {
		ve.Add("school.nama must not be empty")
	}
	if s.RadiusMeter <= 0 {
		ve.Add("school.radius_meter must be > 0")
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		ve.Add("school.latitude %v is out of range", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		ve.Add("school.longitude %v is out of range", s.Longitude)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			ve.Add("school.timezone %q: %v", s.Timezone, err)
		}
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if !cfg.Gateway.Enabled {
		return
	}
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr is required when gateway is enabled")
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Gateway.Addr); err != nil {
		ve.Add("gateway.addr %q is not a valid host:port", cfg.Gateway.Addr)
	}
	switch cfg.Gateway.Auth.Type {
	case "":
	case "static":
		if len(cfg.Gateway.Auth.Tokens) == 0 {
			ve.Add("gateway.auth.tokens must not be empty for static auth")
		}
	default:
		ve.Add("gateway.auth.type %q is invalid (want: static or empty)", cfg.Gateway.Auth.Type)
	}
	if rl := cfg.Gateway.RateLimit; rl.RequestsPerMinute < 0 || rl.Burst < 0 {
		ve.Add("gateway.rate_limit values must be >= 0")
	}
}

var validNotifiers = map[string]bool{"slack": true, "discord": true}

func validateScheduler(cfg *Config, ve *ValidationError) {
	if !cfg.Scheduler.Enabled {
		return
	}
	seen := make(map[string]bool)
	for i, t := range cfg.Scheduler.Tasks {
		if t.Name == "" {
			ve.Add("scheduler.tasks[%d].name is required", i)
		} else if seen[t.Name] {
			ve.Add("scheduler.tasks[%d]: duplicate task name %q", i, t.Name)
		}
		seen[t.Name] = true
		if t.Schedule == "" {
			ve.Add("scheduler.tasks[%d].schedule is required", i)
		}
		if t.Tool == "" {
			ve.Add("scheduler.tasks[%d].tool is required", i)
		}
		for _, n := range t.Notify {
			if !validNotifiers[n] {
				ve.Add("scheduler.tasks[%d].notify: unknown notifier %q", i, n)
			}
		}
	}
}

func validateNotify(cfg *Config, ve *ValidationError) {
	if s := cfg.Notify.Slack; s != nil && s.BotToken != "" && s.ChannelID == "" {
		ve.Add("notify.slack.channel_id is required when bot_token is set")
	}
	if d := cfg.Notify.Discord; d != nil && d.Token != "" && d.ChannelID == "" {
		ve.Add("notify.discord.channel_id is required when token is set")
	}
}

func validateObservability(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is invalid", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
	if cfg.Tracer.SampleRatio < 0 || cfg.Tracer.SampleRatio > 1 {
		ve.Add("tracer.sample_ratio must be within [0, 1]")
	}
}
