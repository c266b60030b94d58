package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	DatabaseURL     string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	S3Endpoint      string
	SSEKMSKeyID     string
	GCSBucket       string
	GCSPrefix       string
	GCSEndpoint     string
	GoogleCredsFile string

	PortalURL          string
	PortalDownloadPath string
	PortalWait         time.Duration
	PortalPageLoad     time.Duration
	PortalClickSettle  time.Duration
	ChromeRemoteURL    string
	ChromeHeadless     bool
	UserAgent          string

	LLMProvider     string
	LLMModel        string
	LLMTemperature  float32
	PromptVersion   string
	OpenAIAPIKey    string
	VertexProjectID string
	VertexRegion    string

	TelegramToken  string
	TelegramChatID string
	SMTPAddr       string
	SMTPUsername   string
	SMTPPassword   string
	EmailFrom      string
	EmailTo        []string

	MonitorName     string
	MaxTextChars    int
	MinTextChars    int
	MinPDFBytes     int
	QueueURL        string
	MonitorInterval time.Duration

	CORSAllowOrigin []string
	RunsPerMinute   int
}

const (
	DefaultPortalURL  = "https://atos.teresopolis.rj.gov.br/diario/"
	DefaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultMonitorTag = "Monitor Teresópolis"
)

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		DatabaseURL:     dbURL,
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		GCSBucket:       getEnv("GCS_BUCKET", ""),
		GCSPrefix:       getEnv("GCS_PREFIX", ""),
		GCSEndpoint:     getEnv("GCS_ENDPOINT", ""),
		GoogleCredsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		PortalURL:          getEnv("PORTAL_URL", DefaultPortalURL),
		PortalDownloadPath: getEnv("PORTAL_DOWNLOAD_PATH", "/api/editions/download/"),
		PortalWait:         getSeconds("PORTAL_WAIT_SECONDS", 30),
		PortalPageLoad:     getSeconds("PORTAL_PAGE_LOAD_SECONDS", 90),
		PortalClickSettle:  getSeconds("PORTAL_CLICK_SETTLE_SECONDS", 8),
		ChromeRemoteURL:    getEnv("CHROME_REMOTE_URL", ""),
		ChromeHeadless:     getBool("CHROME_HEADLESS", true),
		UserAgent:          getEnv("USER_AGENT", DefaultUserAgent),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:        getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature:  getFloat32("LLM_TEMPERATURE", 0.3),
		PromptVersion:   getEnv("PROMPT_VERSION", "v1"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		VertexProjectID: getEnv("VERTEX_PROJECT_ID", ""),
		VertexRegion:    getEnv("VERTEX_REGION", "us-central1"),

		TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID: getEnv("TELEGRAM_CHAT_ID", ""),
		SMTPAddr:       getEnv("SMTP_ADDR", ""),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailTo:        splitAndTrim(getEnv("EMAIL_TO", "")),

		MonitorName:     getEnv("MONITOR_NAME", defaultMonitorTag),
		MaxTextChars:    getInt("MAX_TEXT_CHARS", 100000),
		MinTextChars:    getInt("MIN_TEXT_CHARS", 100),
		MinPDFBytes:     getInt("MIN_PDF_BYTES", 2000),
		QueueURL:        strings.TrimSpace(getEnv("SQS_QUEUE_URL", "")),
		MonitorInterval: getDuration("MONITOR_INTERVAL", 0),

		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGIN", "")),
		RunsPerMinute:   getInt("RUNS_PER_MINUTE", 2),
	}
}

// IsDevLike reports whether the environment tolerates missing infrastructure.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getSeconds(key string, def int) time.Duration {
	return time.Duration(getInt(key, def)) * time.Second
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func getFloat32(key string, def float32) float32 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		log.Printf("config %s invalid float: %v", key, err)
		return def
	}
	return float32(val)
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config %s invalid bool: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "gcs":
		return "gcs"
	default:
		return "local"
	}
}
