package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"absensi-ai/internal/adapter/llm"
	"absensi-ai/internal/adapter/store"
	"absensi-ai/internal/infra/config"
	"absensi-ai/internal/infra/logger"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

const doctorTimeout = 10 * time.Second

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()

	// Some checks work without a loaded config.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Database", Fn: checkDatabase},
		{Name: "Model endpoint", Fn: checkModelEndpoint},
		{Name: "Output directory", Fn: checkOutputDir},
		{Name: "Gateway auth", Fn: checkGatewayAuth},
	}

	fmt.Println("absensi-ai doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name
		results = append(results, result)

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}
	}

	pass, warn, fail := summarize(results)
	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Println("\nFix the FAIL issues above before running absensi-ai.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Println("\nabsensi-ai should work, but consider addressing the warnings.")
	} else {
		fmt.Println("\nAll checks passed! absensi-ai is ready to run.")
	}
	return nil
}

func summarize(results []CheckResult) (pass, warn, fail int) {
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}
	return pass, warn, fail
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

func notLoaded() CheckResult {
	return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
}

// checkConfigFile returns a check that verifies the config file parses.
// A missing file is only a warning since defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check " + cfgPath + " syntax and the ABSENSI_* environment variables",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("%s not found, using defaults", cfgPath),
				Fix:     "Create " + cfgPath + " to set the database and model endpoint",
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkDatabase opens the configured database and pings it.
func checkDatabase(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	if cfg.Database.Driver == "sqlite" {
		if _, err := os.Stat(cfg.Database.Path); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("sqlite database %s does not exist", cfg.Database.Path),
				Fix:     "Run 'absensi-ai seed' to create a demo database",
			}
		}
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	start := time.Now()
	if err := st.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s database: %v", cfg.Database.Driver, err),
			Fix:     "Check database.host, database.user and database.password",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable (latency: %dms)", cfg.Database.Driver, time.Since(start).Milliseconds()),
	}
}

// checkModelEndpoint verifies the default provider is reachable. For
// ollama it also checks the configured model has been pulled.
func checkModelEndpoint(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	pc, ok := cfg.Provider(cfg.LLM.DefaultProvider)
	if !ok {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("default provider %q not found in config", cfg.LLM.DefaultProvider),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	if pc.Type == "ollama" {
		return checkOllama(ctx, pc)
	}
	return checkOpenAI(ctx, pc)
}

func checkOllama(ctx context.Context, pc config.ProviderConfig) CheckResult {
	p := llm.NewOllamaProvider(pc, logger.NewWithWriter(os.Stderr, config.LoggerConfig{Level: "error"}))
	models, err := p.ListModels(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach ollama at %s: %v", pc.BaseURL, err),
			Fix:     "Start ollama with 'ollama serve' or fix llm.providers[].base_url",
		}
	}
	if !slices.Contains(models, pc.Model) && !slices.Contains(models, pc.Model+":latest") {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("ollama reachable but model %q is not pulled", pc.Model),
			Fix:     "Run 'ollama pull " + pc.Model + "'",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("ollama reachable, model %s available", pc.Model),
	}
}

func checkOpenAI(ctx context.Context, pc config.ProviderConfig) CheckResult {
	if pc.APIKey == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: "skipped, no API key for default provider",
			Fix:     "Set ABSENSI_LLM_PROVIDER_" + strings.ToUpper(pc.Name) + "_API_KEY",
		}
	}

	endpoint := modelsEndpoint(pc)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+pc.APIKey)

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check your network connection and llm.providers[].base_url",
		}
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s rejected the API key (HTTP %d)", pc.Name, resp.StatusCode),
		}
	case resp.StatusCode >= 400:
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s answered HTTP %d", endpoint, resp.StatusCode),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable (latency: %dms)", pc.Name, time.Since(start).Milliseconds()),
	}
}

// modelsEndpoint returns the model listing URL of an OpenAI-compatible
// provider.
func modelsEndpoint(pc config.ProviderConfig) string {
	base := strings.TrimRight(pc.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return base + "/models"
}

// checkOutputDir verifies generated documents can be written.
func checkOutputDir(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	dir := cfg.Documents.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot create %s: %v", dir, err),
			Fix:     "Set documents.output_dir to a writable directory",
		}
	}

	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s is not writable: %v", dir, err),
			Fix:     "Fix the permissions of " + dir,
		}
	}
	os.Remove(probe)

	abs, _ := filepath.Abs(dir)
	return CheckResult{Status: StatusPass, Message: "documents are written to " + abs}
}

// checkGatewayAuth warns when the gateway listens beyond localhost without
// authentication.
func checkGatewayAuth(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	if cfg.Gateway.Auth.Type == "static" {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%d token(s) configured", len(cfg.Gateway.Auth.Tokens)),
		}
	}
	if isLoopback(cfg.Gateway.Addr) {
		return CheckResult{Status: StatusPass, Message: "no auth, listening on " + cfg.Gateway.Addr + " only"}
	}
	return CheckResult{
		Status:  StatusWarn,
		Message: "gateway on " + cfg.Gateway.Addr + " accepts unauthenticated requests",
		Fix:     "Set gateway.auth.type to static and add tokens",
	}
}

func isLoopback(addr string) bool {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	host = strings.Trim(host, "[]")
	return host == "localhost" || strings.HasPrefix(host, "127.") || host == "::1"
}
