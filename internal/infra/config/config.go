package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt instructs the model how to answer attendance questions.
const DefaultSystemPrompt = `Kamu adalah asisten sekolah yang membantu guru dan admin
untuk mengambil data absensi siswa dari database.

Aturan:
- Jawab dalam Bahasa Indonesia yang jelas dan ringkas
- Selalu gunakan tools yang tersedia untuk mengambil data
- Jangan membuat/mengarang data sendiri
- Jika data kosong, sampaikan bahwa data tidak ditemukan
- Format jawaban dengan rapi dan mudah dibaca
- Jika user hanya menyebut nama siswa tanpa perintah spesifik, langsung gunakan get_rekap_absensi_bulanan dengan nama tersebut untuk menampilkan rekap absensi per bulan
- Semua fungsi yang menerima siswa bisa menggunakan nama siswa langsung (tidak harus ID)
- Semua fungsi yang menerima kelas bisa menggunakan nama kelas langsung (tidak harus ID)`

// Config is the root configuration.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`
	School    SchoolConfig    `yaml:"school"`
	Documents DocumentsConfig `yaml:"documents"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// AgentConfig controls the orchestration loop.
type AgentConfig struct {
	SystemPrompt     string        `yaml:"system_prompt"`
	HistoryLimit     int           `yaml:"history_limit"`
	MaxToolRounds    int           `yaml:"max_tool_rounds"`
	RoundTripTimeout time.Duration `yaml:"round_trip_timeout"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	SessionDir       string        `yaml:"session_dir"` // empty keeps sessions in memory only
}

// FailoverConfig holds model failover settings.
type FailoverConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Fallbacks []string `yaml:"fallbacks"`
}

// LLMConfig holds model endpoint settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	Failover        FailoverConfig       `yaml:"failover"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for model endpoints.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for model endpoints.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single model endpoint.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "ollama" or "openai"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature,omitempty"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// DatabaseConfig selects and tunes the attendance store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // "mysql" or "sqlite"
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	Path            string        `yaml:"path"` // sqlite file
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// SchoolConfig is the letterhead and geofence of the school.
type SchoolConfig struct {
	Nama          string  `yaml:"nama"`
	Alamat        string  `yaml:"alamat"`
	Telepon       string  `yaml:"telepon"`
	Email         string  `yaml:"email"`
	Kota          string  `yaml:"kota"`
	KepalaSekolah string  `yaml:"kepala_sekolah"`
	NIPKepala     string  `yaml:"nip_kepala"`
	Latitude      float64 `yaml:"latitude"`
	Longitude     float64 `yaml:"longitude"`
	RadiusMeter   float64 `yaml:"radius_meter"`
	Timezone      string  `yaml:"timezone"`
}

// DocumentsConfig controls generated PDF files.
type DocumentsConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// GatewayConfig holds HTTP and WebSocket server settings.
type GatewayConfig struct {
	Enabled        bool            `yaml:"enabled"`
	Addr           string          `yaml:"addr"`
	Auth           AuthConfig      `yaml:"auth"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	CORSOrigins    []string        `yaml:"cors_origins,omitempty"`
	TrustedProxies []string        `yaml:"trusted_proxies,omitempty"`
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Type   string        `yaml:"type"` // "static" or ""
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig holds a single gateway auth token.
type TokenConfig struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name"`
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// SchedulerConfig holds scheduled report settings.
type SchedulerConfig struct {
	Enabled bool                  `yaml:"enabled"`
	Tasks   []ScheduledTaskConfig `yaml:"tasks"`
}

// ScheduledTaskConfig runs one operation on a cron schedule.
type ScheduledTaskConfig struct {
	Name     string         `yaml:"name"`
	Schedule string         `yaml:"schedule"` // cron expression or descriptor (@daily)
	Tool     string         `yaml:"tool"`
	Args     map[string]any `yaml:"args,omitempty"`
	Notify   []string       `yaml:"notify,omitempty"`
}

// NotifyConfig configures report delivery channels.
type NotifyConfig struct {
	Slack   *SlackConfig   `yaml:"slack,omitempty"`
	Discord *DiscordConfig `yaml:"discord,omitempty"`
}

// SlackConfig holds Slack bot settings.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			SystemPrompt:     DefaultSystemPrompt,
			HistoryLimit:     20,
			MaxToolRounds:    1,
			RoundTripTimeout: 120 * time.Second,
			ToolTimeout:      30 * time.Second,
			SessionTTL:       2 * time.Hour,
		},
		LLM: LLMConfig{
			DefaultProvider: "ollama",
			Providers: []ProviderConfig{
				{
					Name:        "ollama",
					Type:        "ollama",
					BaseURL:     "http://localhost:11434",
					Model:       "gpt-oss:120b-cloud",
					ConnTimeout: 10 * time.Second,
					RespTimeout: 120 * time.Second,
				},
			},
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			Host:            "localhost",
			Port:            3306,
			User:            "root",
			Name:            "smksmartsis",
			Path:            "absensi.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			QueryTimeout:    15 * time.Second,
		},
		School: SchoolConfig{
			Nama:          "SMK Negeri 1 Sintang",
			Alamat:        "Jl. Pendidikan No. 1, Sintang, Kalimantan Barat",
			Telepon:       "(0565) 21000",
			Email:         "info@smkn1sintang.sch.id",
			Kota:          "Sintang",
			KepalaSekolah: "Kepala Sekolah",
			Latitude:      0.0617,
			Longitude:     111.4953,
			RadiusMeter:   100,
			Timezone:      "Asia/Pontianak",
		},
		Documents: DocumentsConfig{
			OutputDir: "output",
		},
		Gateway: GatewayConfig{
			Addr: "127.0.0.1:8000",
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 100,
				Burst:             20,
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter:    "noop",
			SampleRatio: 1,
		},
	}
}

// Load reads a YAML config file, applies env overrides, decrypts secrets,
// and validates. A missing file yields defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		if err := validatePermissions(absPath); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("ABSENSI_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides reads ABSENSI_* environment variables into cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ABSENSI_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		prefix := "ABSENSI_LLM_PROVIDER_" + envName(p.Name) + "_"
		if v := os.Getenv(prefix + "API_KEY"); v != "" {
			p.APIKey = v
		}
		if v := os.Getenv(prefix + "BASE_URL"); v != "" {
			p.BaseURL = v
		}
		if v := os.Getenv(prefix + "MODEL"); v != "" {
			p.Model = v
		}
	}

	if v := os.Getenv("ABSENSI_AGENT_MAX_TOOL_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxToolRounds = n
		}
	}
	if v := os.Getenv("ABSENSI_AGENT_ROUND_TRIP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Agent.RoundTripTimeout = d
		}
	}
	if v := os.Getenv("ABSENSI_AGENT_TOOL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Agent.ToolTimeout = d
		}
	}

	if v := os.Getenv("ABSENSI_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ABSENSI_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ABSENSI_DB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = n
		}
	}
	if v := os.Getenv("ABSENSI_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ABSENSI_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ABSENSI_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ABSENSI_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("ABSENSI_DOCUMENTS_OUTPUT_DIR"); v != "" {
		cfg.Documents.OutputDir = v
	}
	if v := os.Getenv("ABSENSI_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("ABSENSI_GATEWAY_ENABLED"); v == "true" {
		cfg.Gateway.Enabled = true
	}
	if v := os.Getenv("ABSENSI_GATEWAY_TOKENS"); v != "" {
		for i, tok := range splitAndTrim(v, ",") {
			if tok == "" {
				continue
			}
			cfg.Gateway.Auth.Type = "static"
			cfg.Gateway.Auth.Tokens = append(cfg.Gateway.Auth.Tokens, TokenConfig{
				Token: tok,
				Name:  fmt.Sprintf("env-%d", i),
			})
		}
	}

	if v := os.Getenv("ABSENSI_SLACK_BOT_TOKEN"); v != "" {
		if cfg.Notify.Slack == nil {
			cfg.Notify.Slack = &SlackConfig{}
		}
		cfg.Notify.Slack.BotToken = v
	}
	if v := os.Getenv("ABSENSI_DISCORD_TOKEN"); v != "" {
		if cfg.Notify.Discord == nil {
			cfg.Notify.Discord = &DiscordConfig{}
		}
		cfg.Notify.Discord.Token = v
	}

	if v := os.Getenv("ABSENSI_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("ABSENSI_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("ABSENSI_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("ABSENSI_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// Provider returns the provider config with the given name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.LLM.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// envName upper-cases a provider name for use in an env var.
func envName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
