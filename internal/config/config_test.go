package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("RULES_REGISTRY_PATH", "")
	t.Setenv("ENGINE_CONFIG_PATH", "")
	t.Setenv("REPORT_CACHE_TTL_SECS", "")
	t.Setenv("EVAL_RETENTION_DAYS", "")
	t.Setenv("ALERT_POLL_SECS", "")
	t.Setenv("MCP_TRANSPORT", "")
	t.Setenv("MCP_HTTP_ENABLED", "")
	t.Setenv("MCP_HTTP_BIND", "")
	t.Setenv("MCP_HTTP_PORT", "")
	t.Setenv("MCP_AUTH_TOKEN", "")
	t.Setenv("MCP_REQUEST_TIMEOUT_SECS", "")
	t.Setenv("MCP_RATE_LIMIT_PER_MIN", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("ADVISOR_MAX_HISTORY", "")
	t.Setenv("SSH_BIND", "")
	t.Setenv("SSH_PORT", "")
	t.Setenv("SSH_HOST_KEY_PATH", "")

	cfg := Load()
	if cfg.RedisURL != "localhost:6379" {
		t.Fatalf("expected default redis url, got %s", cfg.RedisURL)
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("expected default http port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.RegistryPath != "" || cfg.EngineConfigPath != "" {
		t.Fatalf("expected empty registry/config paths, got %q %q", cfg.RegistryPath, cfg.EngineConfigPath)
	}
	if cfg.ReportCacheTTLSecs != 300 || cfg.RetentionDays != 365 || cfg.AlertPollSecs != 60 {
		t.Fatalf("unexpected cache/retention/alert defaults: %+v", cfg)
	}
	if cfg.MCPTransport != "stdio" {
		t.Fatalf("expected default MCP transport stdio, got %s", cfg.MCPTransport)
	}
	if cfg.MCPHTTPBind != "127.0.0.1" || cfg.MCPHTTPPort != 8090 {
		t.Fatalf("unexpected MCP http defaults: %s:%d", cfg.MCPHTTPBind, cfg.MCPHTTPPort)
	}
	if cfg.MCPRequestTimeoutSecs != 5 || cfg.MCPRateLimitPerMin != 60 {
		t.Fatalf("unexpected MCP defaults: timeout=%d rate=%d", cfg.MCPRequestTimeoutSecs, cfg.MCPRateLimitPerMin)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" || cfg.AdvisorMaxHistory != 20 {
		t.Fatalf("unexpected advisor defaults: model=%s history=%d", cfg.OpenAIModel, cfg.AdvisorMaxHistory)
	}
	if cfg.SSHBind != "0.0.0.0" || cfg.SSHPort != 2222 || cfg.SSHHostKeyPath != ".ssh/finmentor_ed25519" {
		t.Fatalf("unexpected SSH defaults: %s:%d key=%s", cfg.SSHBind, cfg.SSHPort, cfg.SSHHostKeyPath)
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis:6379")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("RULES_REGISTRY_PATH", "/etc/finmentor/rules.json")
	t.Setenv("ENGINE_CONFIG_PATH", "/etc/finmentor/engine.json")
	t.Setenv("REPORT_CACHE_TTL_SECS", "120")
	t.Setenv("EVAL_RETENTION_DAYS", "90")
	t.Setenv("ALERT_POLL_SECS", "30")
	t.Setenv("MCP_TRANSPORT", "http")
	t.Setenv("MCP_HTTP_ENABLED", "true")
	t.Setenv("MCP_HTTP_BIND", "0.0.0.0")
	t.Setenv("MCP_HTTP_PORT", "9191")
	t.Setenv("MCP_AUTH_TOKEN", "secret")
	t.Setenv("MCP_REQUEST_TIMEOUT_SECS", "9")
	t.Setenv("MCP_RATE_LIMIT_PER_MIN", "75")
	t.Setenv("OPENAI_API_KEY", "key")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("ADVISOR_MAX_HISTORY", "5")
	t.Setenv("SSH_BIND", "127.0.0.1")
	t.Setenv("SSH_PORT", "2323")
	t.Setenv("SSH_HOST_KEY_PATH", "/var/keys/host")

	cfg := Load()
	if cfg.TelegramBotToken != "token" || cfg.DatabaseURL != "postgres://example" || cfg.RedisURL != "redis:6379" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.HTTPPort != 9090 {
		t.Fatalf("expected http port 9090, got %d", cfg.HTTPPort)
	}
	if cfg.RegistryPath != "/etc/finmentor/rules.json" || cfg.EngineConfigPath != "/etc/finmentor/engine.json" {
		t.Fatalf("unexpected paths: %q %q", cfg.RegistryPath, cfg.EngineConfigPath)
	}
	if cfg.ReportCacheTTLSecs != 120 || cfg.RetentionDays != 90 || cfg.AlertPollSecs != 30 {
		t.Fatalf("unexpected cache/retention/alert values: %+v", cfg)
	}
	if cfg.MCPTransport != "http" || !cfg.MCPHTTPEnabled || cfg.MCPHTTPBind != "0.0.0.0" || cfg.MCPHTTPPort != 9191 || cfg.MCPAuthToken != "secret" {
		t.Fatalf("unexpected MCP config: %+v", cfg)
	}
	if cfg.MCPRequestTimeoutSecs != 9 || cfg.MCPRateLimitPerMin != 75 {
		t.Fatalf("unexpected MCP timeout/rate: %+v", cfg)
	}
	if cfg.OpenAIAPIKey != "key" || cfg.OpenAIModel != "gpt-4o" || cfg.AdvisorMaxHistory != 5 {
		t.Fatalf("unexpected advisor config: %+v", cfg)
	}
	if cfg.SSHBind != "127.0.0.1" || cfg.SSHPort != 2323 || cfg.SSHHostKeyPath != "/var/keys/host" {
		t.Fatalf("unexpected SSH config: %+v", cfg)
	}

	t.Setenv("HTTP_PORT", "bad")
	t.Setenv("REPORT_CACHE_TTL_SECS", "bad")
	t.Setenv("EVAL_RETENTION_DAYS", "-1")
	t.Setenv("ALERT_POLL_SECS", "bad")
	t.Setenv("MCP_HTTP_PORT", "bad")
	t.Setenv("MCP_REQUEST_TIMEOUT_SECS", "bad")
	t.Setenv("MCP_RATE_LIMIT_PER_MIN", "bad")
	t.Setenv("ADVISOR_MAX_HISTORY", "bad")
	t.Setenv("SSH_PORT", "bad")
	cfg = Load()
	if cfg.HTTPPort != 8080 || cfg.ReportCacheTTLSecs != 300 || cfg.RetentionDays != 365 || cfg.AlertPollSecs != 60 {
		t.Fatalf("invalid numeric values should fall back to defaults: %+v", cfg)
	}
	if cfg.MCPHTTPPort != 8090 || cfg.MCPRequestTimeoutSecs != 5 || cfg.MCPRateLimitPerMin != 60 {
		t.Fatalf("invalid MCP numeric values should fall back to defaults: %+v", cfg)
	}
	if cfg.AdvisorMaxHistory != 20 || cfg.SSHPort != 2222 {
		t.Fatalf("invalid advisor/SSH numeric values should fall back to defaults: %+v", cfg)
	}
}

func TestLoadRejectsUnknownMCPTransport(t *testing.T) {
	t.Setenv("MCP_TRANSPORT", "carrier-pigeon")
	cfg := Load()
	if cfg.MCPTransport != "stdio" {
		t.Fatalf("expected unsupported transport to fall back to stdio, got %s", cfg.MCPTransport)
	}
}
