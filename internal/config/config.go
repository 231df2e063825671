package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at an optional YAML config file.
const FileEnv = "REKOGNIZER_CONFIG"

type Config struct {
	LogLevel string         `yaml:"log_level"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Facenet  FacenetConfig  `yaml:"facenet"`
	Detector DetectorConfig `yaml:"detector"`
	Users    UsersConfig    `yaml:"users"`
	Auth     AuthConfig     `yaml:"auth"`
	Image    ImageConfig    `yaml:"image"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Addr         string `yaml:"addr"`
	EventChannel string `yaml:"event_channel"`
}

// FacenetConfig points at the TensorFlow Serving deployment computing embeddings.
type FacenetConfig struct {
	Host          string        `yaml:"host"`
	Port          string        `yaml:"port"`
	Model         string        `yaml:"model"`
	SignatureName string        `yaml:"signature_name"`
	Threshold     float64       `yaml:"threshold"`
	Timeout       time.Duration `yaml:"timeout"`
}

// PredictURL returns the REST predict endpoint of the configured model.
func (c FacenetConfig) PredictURL() string {
	return fmt.Sprintf("http://%s:%s/v1/models/%s:predict", c.Host, c.Port, c.Model)
}

type DetectorConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type UsersConfig struct {
	Addr string `yaml:"addr"`
}

type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	JWTAudience string `yaml:"jwt_audience"`
}

type ImageConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
	MaxEdge      int           `yaml:"max_edge"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			DSN:          "host=postgres user=postgres password=postgres dbname=rekognizer port=5432 sslmode=disable",
			MaxIdleConns: 5,
			MaxOpenConns: 10,
		},
		Redis: RedisConfig{
			Addr:         "redis:6379",
			EventChannel: "rekognizer.events",
		},
		Facenet: FacenetConfig{
			Host:          "facenet",
			Port:          "8501",
			Model:         "facenet",
			SignatureName: "calculate_embeddings",
			Threshold:     0.8,
			Timeout:       30 * time.Second,
		},
		Detector: DetectorConfig{
			URL:     "http://detector:5000/detect",
			Timeout: 30 * time.Second,
		},
		Users: UsersConfig{
			Addr: "users:50051",
		},
		Auth: AuthConfig{
			JWTSecret: "dev-secret",
		},
		Image: ImageConfig{
			FetchTimeout: 10 * time.Second,
			MaxBytes:     20 << 20,
			MaxEdge:      600,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// REKOGNIZER_CONFIG and finally the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)

	cfg.HTTP.Addr = envString("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.ShutdownTimeout = envDuration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.HTTP.AllowedOrigins = splitList(origins)
	}

	cfg.Database.DSN = envString("DATABASE_DSN", cfg.Database.DSN)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)

	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.EventChannel = envString("EVENT_CHANNEL", cfg.Redis.EventChannel)

	cfg.Facenet.Host = envString("FACENET_HOST", cfg.Facenet.Host)
	cfg.Facenet.Port = envString("FACENET_PORT", cfg.Facenet.Port)
	cfg.Facenet.Model = envString("FACENET_MODEL", cfg.Facenet.Model)
	cfg.Facenet.SignatureName = envString("FACENET_SIGNATURE", cfg.Facenet.SignatureName)
	cfg.Facenet.Threshold = envFloat("FACENET_THRESHOLD", cfg.Facenet.Threshold)
	cfg.Facenet.Timeout = envDuration("FACENET_TIMEOUT", cfg.Facenet.Timeout)

	cfg.Detector.URL = envString("DETECTOR_URL", cfg.Detector.URL)
	cfg.Detector.Timeout = envDuration("DETECTOR_TIMEOUT", cfg.Detector.Timeout)

	cfg.Users.Addr = envString("USERS_ADDR", cfg.Users.Addr)

	cfg.Auth.JWTSecret = envString("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTAudience = envString("JWT_AUDIENCE", cfg.Auth.JWTAudience)

	cfg.Image.FetchTimeout = envDuration("IMAGE_FETCH_TIMEOUT", cfg.Image.FetchTimeout)
	cfg.Image.MaxBytes = int64(envInt("IMAGE_MAX_BYTES", int(cfg.Image.MaxBytes)))
	cfg.Image.MaxEdge = envInt("IMAGE_MAX_EDGE", cfg.Image.MaxEdge)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Facenet.Threshold <= 0 {
		return fmt.Errorf("facenet threshold must be positive, got %v", c.Facenet.Threshold)
	}
	if c.Image.MaxEdge <= 0 {
		return fmt.Errorf("image max edge must be positive, got %d", c.Image.MaxEdge)
	}
	if c.Facenet.Host == "" || c.Facenet.Port == "" {
		return fmt.Errorf("facenet host and port are required")
	}
	return nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// envInt returns fallback when the variable is unset or not a positive integer.
func envInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
