package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string         `json:"env"`
	Http     HttpConfig     `json:"http"`
	Ws       WsConfig       `json:"ws"`
	Location LocationConfig `json:"location"`
	Client   ClientConfig   `json:"client"`
	APIKey   string         `json:"api_key,omitempty"`
}

type HttpConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type WsConfig struct {
	AllowedOrigins   []string      `json:"allowed_origins"`
	WriteTimeout     time.Duration `json:"write_timeout"`
	SubscriberBuffer int           `json:"subscriber_buffer"`
}

type LocationConfig struct {
	StalenessWindow time.Duration `json:"staleness_window"`
	SweepPeriod     time.Duration `json:"sweep_period"`
}

// ClientConfig drives the citizen-side location throttle.
type ClientConfig struct {
	LocationInterval  time.Duration `json:"location_interval"`
	LocationDistanceM float64       `json:"location_distance_m"`
}

func Load() (*Config, error) {
	stdLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLogger.Warn(".env load warning", slog.Any("error", err))
	}

	cfg := &Config{
		Env: getEnv("ENV", "local"),
		Http: HttpConfig{
			Port:            getEnv("HTTP_PORT", ":8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Ws: WsConfig{
			AllowedOrigins:   getEnvList("WS_ALLOWED_ORIGINS", nil),
			WriteTimeout:     getEnvDuration("WS_WRITE_TIMEOUT", 5*time.Second),
			SubscriberBuffer: getEnvInt("WS_SUBSCRIBER_BUFFER", 64),
		},
		Location: LocationConfig{
			StalenessWindow: getEnvDuration("LOCATION_STALENESS_WINDOW", 5*time.Minute),
			SweepPeriod:     getEnvDuration("LOCATION_SWEEP_PERIOD", 5*time.Minute),
		},
		Client: ClientConfig{
			LocationInterval:  getEnvDuration("CLIENT_LOCATION_INTERVAL", 60*time.Second),
			LocationDistanceM: getEnvFloat("CLIENT_LOCATION_DISTANCE_M", 50),
		},
		APIKey: getEnv("API_KEY", "super-secret-key"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stdLogger.Info("Config loaded successfully",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.Http.Port),
		slog.Duration("staleness_window", cfg.Location.StalenessWindow),
		slog.Duration("sweep_period", cfg.Location.SweepPeriod))

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Http.Port == "" || c.Http.Port[0] != ':' {
		return errors.New("HTTP_PORT must start with ':' like ':8080'")
	}
	if c.Location.StalenessWindow <= 0 {
		return errors.New("LOCATION_STALENESS_WINDOW must be positive")
	}
	if c.Location.SweepPeriod <= 0 {
		return errors.New("LOCATION_SWEEP_PERIOD must be positive")
	}
	if c.Client.LocationInterval <= 0 || c.Client.LocationDistanceM <= 0 {
		return errors.New("client location throttle thresholds must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
