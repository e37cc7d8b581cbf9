package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	TransportTelegram  = "telegram"
	TransportWebsocket = "websocket"

	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Port     string `yaml:"port"`
}

type Config struct {
	TelegramBotToken string `yaml:"telegram_bot_token"`
	AdminChatID      int64  `yaml:"admin_chat_id"`
	Transport        string `yaml:"transport"`

	StoreBackend string   `yaml:"store_backend"`
	DataDir      string   `yaml:"data_dir"`
	MediaDir     string   `yaml:"media_dir"`
	RedisURL     string   `yaml:"redis_url"`
	DB           DBConfig `yaml:"db"`

	FusionBrainURL         string        `yaml:"fusionbrain_url"`
	FusionBrainAPIKey      string        `yaml:"fusionbrain_api_key"`
	FusionBrainSecretKey   string        `yaml:"fusionbrain_secret_key"`
	GenerationPollAttempts int           `yaml:"generation_poll_attempts"`
	GenerationPollDelay    time.Duration `yaml:"generation_poll_delay"`
	GenerationImageSize    int           `yaml:"generation_image_size"`

	FFmpegPath      string `yaml:"ffmpeg_path"`
	FFprobePath     string `yaml:"ffprobe_path"`
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
	RenderStickerID string `yaml:"render_sticker_id"`

	ApprovalCooldown   time.Duration `yaml:"approval_cooldown"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	Workers            int           `yaml:"workers"`

	GeminiAPIKey  string `yaml:"gemini_api_key"`
	GeminiModel   string `yaml:"gemini_model"`
	GCSBucketName string `yaml:"gcs_bucket_name"`
	GCSPrefix     string `yaml:"gcs_prefix"`

	HTTPAddr       string   `yaml:"http_addr"`
	AdminJWTSecret string   `yaml:"admin_jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func NewConfig() *Config {
	return &Config{
		Transport:              TransportTelegram,
		StoreBackend:           StoreFile,
		DataDir:                "./data",
		MediaDir:               "./data/media",
		DB:                     DBConfig{Port: "5432"},
		FusionBrainURL:         "https://api-key.fusionbrain.ai/",
		GenerationPollAttempts: 20,
		GenerationPollDelay:    3 * time.Second,
		GenerationImageSize:    512,
		FFmpegPath:             "ffmpeg",
		FFprobePath:            "ffprobe",
		MaxUploadBytes:         20 << 20,
		ApprovalCooldown:       time.Hour,
		SessionIdleTimeout:     24 * time.Hour,
		Workers:                8,
		GeminiModel:            "gemini-1.5-flash",
		HTTPAddr:               ":8080",
		AllowedOrigins:         []string{"http://localhost:5173"},
		LogLevel:               "info",
		LogFormat:              "json",
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE yaml
// document and the environment (a .env file is read first when present).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	cfg := NewConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

type envReader struct {
	lookup lookupFunc
	err    error
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.lookup(key); ok && v != "" {
		*dst = v
	}
}

func (r *envReader) num(key string, dst *int) {
	var n int64
	if r.parse(key, &n) {
		*dst = int(n)
	}
}

func (r *envReader) num64(key string, dst *int64) {
	r.parse(key, dst)
}

func (r *envReader) parse(key string, dst *int64) bool {
	v, ok := r.lookup(key)
	if !ok || v == "" || r.err != nil {
		return false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		r.err = fmt.Errorf("%s: %q is not an integer", key, v)
		return false
	}
	*dst = n
	return true
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.lookup(key)
	if !ok || v == "" || r.err != nil {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		r.err = fmt.Errorf("%s: %q is not a duration", key, v)
		return
	}
	*dst = d
}

func (r *envReader) list(key string, dst *[]string) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup lookupFunc) error {
	r := &envReader{lookup: lookup}

	r.str("TELEGRAM_BOT_TOKEN", &c.TelegramBotToken)
	r.num64("ADMIN_CHAT_ID", &c.AdminChatID)
	r.str("TRANSPORT", &c.Transport)

	r.str("STORE_BACKEND", &c.StoreBackend)
	r.str("DATA_DIR", &c.DataDir)
	r.str("MEDIA_DIR", &c.MediaDir)
	r.str("REDIS_URL", &c.RedisURL)
	r.str("DB_HOST", &c.DB.Host)
	r.str("DB_USER", &c.DB.User)
	r.str("DB_PASSWORD", &c.DB.Password)
	r.str("DB_NAME", &c.DB.Name)
	r.str("DB_PORT", &c.DB.Port)

	r.str("FUSIONBRAIN_URL", &c.FusionBrainURL)
	r.str("FUSIONBRAIN_API_KEY", &c.FusionBrainAPIKey)
	r.str("FUSIONBRAIN_SECRET_KEY", &c.FusionBrainSecretKey)
	r.num("GENERATION_POLL_ATTEMPTS", &c.GenerationPollAttempts)
	r.duration("GENERATION_POLL_DELAY", &c.GenerationPollDelay)
	r.num("GENERATION_IMAGE_SIZE", &c.GenerationImageSize)

	r.str("FFMPEG_PATH", &c.FFmpegPath)
	r.str("FFPROBE_PATH", &c.FFprobePath)
	r.num64("MAX_UPLOAD_BYTES", &c.MaxUploadBytes)
	r.str("RENDER_STICKER_ID", &c.RenderStickerID)

	r.duration("APPROVAL_COOLDOWN", &c.ApprovalCooldown)
	r.duration("SESSION_IDLE_TIMEOUT", &c.SessionIdleTimeout)
	r.num("WORKERS", &c.Workers)

	r.str("GEMINI_API_KEY", &c.GeminiAPIKey)
	r.str("GEMINI_MODEL", &c.GeminiModel)
	r.str("GCS_BUCKET_NAME", &c.GCSBucketName)
	r.str("GCS_PREFIX", &c.GCSPrefix)

	r.str("HTTP_ADDR", &c.HTTPAddr)
	r.str("ADMIN_JWT_SECRET", &c.AdminJWTSecret)
	r.list("ALLOWED_ORIGINS", &c.AllowedOrigins)

	r.str("LOG_LEVEL", &c.LogLevel)
	r.str("LOG_FORMAT", &c.LogFormat)
	return r.err
}

// Validate checks required keys and ranges. Errors name the offending key.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportTelegram:
		if c.TelegramBotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required for the telegram transport")
		}
	case TransportWebsocket:
	default:
		return fmt.Errorf("TRANSPORT: unknown transport %q", c.Transport)
	}
	if c.AdminChatID == 0 {
		return fmt.Errorf("ADMIN_CHAT_ID is required")
	}

	switch c.StoreBackend {
	case StoreFile, StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	case StorePostgres:
		if c.DB.Host == "" || c.DB.Name == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for the postgres store")
		}
	default:
		return fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend)
	}

	if c.FusionBrainAPIKey == "" || c.FusionBrainSecretKey == "" {
		return fmt.Errorf("FUSIONBRAIN_API_KEY and FUSIONBRAIN_SECRET_KEY are required")
	}
	if c.GenerationPollAttempts < 1 {
		return fmt.Errorf("GENERATION_POLL_ATTEMPTS must be at least 1")
	}
	if c.GenerationPollDelay <= 0 {
		return fmt.Errorf("GENERATION_POLL_DELAY must be positive")
	}
	if c.GenerationImageSize <= 0 {
		return fmt.Errorf("GENERATION_IMAGE_SIZE must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	return nil
}
