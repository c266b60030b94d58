package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"ENV", "PORTAL_URL", "LLM_MODEL", "LLM_TEMPERATURE", "MAX_TEXT_CHARS", "OBJECT_STORE", "MONITOR_INTERVAL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected dev env, got %q", cfg.Env)
	}
	if cfg.PortalURL != DefaultPortalURL {
		t.Fatalf("unexpected portal url %q", cfg.PortalURL)
	}
	if cfg.LLMModel != "gpt-4o-mini" {
		t.Fatalf("unexpected model %q", cfg.LLMModel)
	}
	if cfg.LLMTemperature != 0.3 {
		t.Fatalf("unexpected temperature %v", cfg.LLMTemperature)
	}
	if cfg.MaxTextChars != 100000 || cfg.MinTextChars != 100 || cfg.MinPDFBytes != 2000 {
		t.Fatalf("unexpected text limits: %+v", cfg)
	}
	if cfg.PortalWait != 30*time.Second || cfg.PortalPageLoad != 90*time.Second || cfg.PortalClickSettle != 8*time.Second {
		t.Fatalf("unexpected portal timings: wait=%s load=%s settle=%s", cfg.PortalWait, cfg.PortalPageLoad, cfg.PortalClickSettle)
	}
	if cfg.ObjectStoreType != "local" {
		t.Fatalf("unexpected store type %q", cfg.ObjectStoreType)
	}
	if cfg.MonitorInterval != 0 {
		t.Fatalf("expected no interval, got %s", cfg.MonitorInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "prod")
	t.Setenv("OBJECT_STORE", "GCS")
	t.Setenv("EMAIL_TO", " a@example.com, ,b@example.com ")
	t.Setenv("MONITOR_INTERVAL", "6h")
	t.Setenv("CHROME_HEADLESS", "false")
	t.Setenv("MAX_TEXT_CHARS", "not-a-number")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected production, got %q", cfg.Env)
	}
	if cfg.IsDevLike() {
		t.Fatalf("production must not be dev-like")
	}
	if cfg.ObjectStoreType != "gcs" {
		t.Fatalf("expected gcs, got %q", cfg.ObjectStoreType)
	}
	if len(cfg.EmailTo) != 2 || cfg.EmailTo[0] != "a@example.com" || cfg.EmailTo[1] != "b@example.com" {
		t.Fatalf("unexpected recipients: %v", cfg.EmailTo)
	}
	if cfg.MonitorInterval != 6*time.Hour {
		t.Fatalf("unexpected interval %s", cfg.MonitorInterval)
	}
	if cfg.ChromeHeadless {
		t.Fatalf("expected headless disabled")
	}
	if cfg.MaxTextChars != 100000 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.MaxTextChars)
	}
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MONITOR_NAME=\"Monitor Arquivo\"\nTELEGRAM_CHAT_ID=123\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("MONITOR_NAME", "Monitor Ambiente")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	_ = os.Unsetenv("TELEGRAM_CHAT_ID")

	cfg := Load()
	if cfg.MonitorName != "Monitor Ambiente" {
		t.Fatalf("environment should win, got %q", cfg.MonitorName)
	}
	if cfg.TelegramChatID != "123" {
		t.Fatalf("expected chat id from env file, got %q", cfg.TelegramChatID)
	}
}
