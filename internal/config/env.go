package config

import (
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	SslCertPath    string
	JWTSecret      string
	JWTTTL         time.Duration
	AllowedOrigins []string
	RequireAuth    bool
	MaxUploadMB    int

	// Pipeline
	ScratchDir      string
	ScratchMaxAge   time.Duration
	PageIndex       int
	RenderDPI       int
	ConverterBin    string
	RendererBin     string
	ConvertTimeout  time.Duration
	OCRLanguage     string
	OCRPSM          int
	OCRPoolSize     int
	PipelineWorkers int

	// Classifier
	LLMProvider      string
	OllamaURL        string
	GenModel         string
	GeminiModel      string
	AIAPIKey         string
	ClassifyTimeout  time.Duration
	ClassifyMaxChars int
	ClassifyLabels   []string

	// Failure quarantine (optional)
	AwsAccessKey     string
	AwsSecretKey     string
	AwsRegion        string
	QuarantineBucket string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "5000"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SslCertPath:    getEnv("SSL_CERT_PATH", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTTTL:         getEnvDuration("JWT_TTL", 24*time.Hour),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		RequireAuth:    getEnvBool("REQUIRE_AUTH", false),
		MaxUploadMB:    getEnvInt("MAX_UPLOAD_MB", 10),

		ScratchDir:      getEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "scanlens")),
		ScratchMaxAge:   getEnvDuration("SCRATCH_MAX_AGE", time.Hour),
		PageIndex:       getEnvInt("PAGE_INDEX", 0),
		RenderDPI:       getEnvInt("RENDER_DPI", 150),
		ConverterBin:    getEnv("CONVERTER_BIN", "soffice"),
		RendererBin:     getEnv("RENDERER_BIN", "pdftoppm"),
		ConvertTimeout:  getEnvDuration("CONVERT_TIMEOUT", 2*time.Minute),
		OCRLanguage:     getEnv("OCR_LANGUAGE", "eng"),
		OCRPSM:          getEnvInt("OCR_PSM", 1),
		OCRPoolSize:     getEnvInt("OCR_POOL_SIZE", runtime.NumCPU()),
		PipelineWorkers: getEnvInt("PIPELINE_WORKERS", runtime.NumCPU()),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "ollama")),
		OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
		GenModel:         getEnv("GEN_MODEL", "qwen2.5"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		AIAPIKey:         getEnv("GEMINI_API_KEY", ""),
		ClassifyTimeout:  getEnvDuration("CLASSIFY_TIMEOUT", 60*time.Second),
		ClassifyMaxChars: getEnvInt("CLASSIFY_MAX_CHARS", 12000),
		ClassifyLabels:   getEnvList("CLASSIFY_LABELS", nil),

		AwsAccessKey:     getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:     getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:        getEnv("AWS_REGION", "us-east-2"),
		QuarantineBucket: getEnv("QUARANTINE_BUCKET", ""),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Println("WARN: JWT_SECRET not set, issued tokens are signed with an empty key")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
