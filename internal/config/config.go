package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Matching    MatchingConfig
	Gallery     GalleryConfig
	Recognition RecognitionConfig
	Embedding   EmbeddingConfig
	Database    DatabaseConfig
	Kafka       KafkaConfig
	Web         WebConfig
	SummaryAt   string // HH:MM local time for the daily summary, empty disables it
}

type MatchingConfig struct {
	DistanceThreshold float64 `yaml:"distance_threshold"` // lower = stricter
}

type GalleryConfig struct {
	Dir         string  `yaml:"dir"`
	Scale       float64 `yaml:"scale"`       // downsampling applied before embedding gallery images
	Concurrency int     `yaml:"concurrency"` // parallel embedding requests during load
	Cache       bool    `yaml:"-"`           // reuse embeddings stored in PostgreSQL
}

type RecognitionConfig struct {
	FrameScale    float64       `yaml:"frame_scale"`
	FrameInterval time.Duration `yaml:"-"`
	RawInterval   string        `yaml:"frame_interval"`
	SnapshotURL   string        `yaml:"-"` // camera JPEG snapshot endpoint
}

type EmbeddingConfig struct {
	URL   string // defaults to http://localhost:8000
	Model string // name of the face model behind URL, part of the gallery cache key
}

type DatabaseConfig struct {
	Backend      string `yaml:"backend"` // postgres or mariadb
	URL          string `yaml:"-"`       // PostgreSQL connection URL
	MariaDBDSN   string `yaml:"-"`       // e.g. attendance:secret@tcp(mariadb:3306)/attendance
	MaxOpenConns int    `yaml:"-"`       // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"-"`       // Maximum idle connections (default 5)
}

type KafkaConfig struct {
	Brokers []string `yaml:"-"`
	Topic   string   `yaml:"topic"`
}

type WebConfig struct {
	Host           string
	Port           int
	APIToken       string   // bearer token required by the API when set
	AllowedOrigins []string // CORS whitelist, localhost is always allowed
}

// Enabled reports whether mark events should be published to Kafka.
func (c *KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type defaults struct {
	Matching    MatchingConfig    `yaml:"matching"`
	Gallery     GalleryConfig     `yaml:"gallery"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Ledger      DatabaseConfig    `yaml:"ledger"`
	Kafka       KafkaConfig       `yaml:"kafka"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && !math.IsInf(f, 0) {
		return f
	}
	return defaultVal
}

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func loadDefaults() defaults {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return d
}

func Load() *Config {
	d := loadDefaults()

	interval, err := time.ParseDuration(d.Recognition.RawInterval)
	if err != nil {
		panic("invalid frame_interval in embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Matching: MatchingConfig{
			DistanceThreshold: envFloat("DISTANCE_THRESHOLD", d.Matching.DistanceThreshold),
		},
		Gallery: GalleryConfig{
			Dir:         envString("GALLERY_DIR", d.Gallery.Dir),
			Scale:       envFloat("GALLERY_SCALE", d.Gallery.Scale),
			Concurrency: envInt("GALLERY_CONCURRENCY", d.Gallery.Concurrency),
			Cache:       envBool("GALLERY_CACHE"),
		},
		Recognition: RecognitionConfig{
			FrameScale:    envFloat("FRAME_SCALE", d.Recognition.FrameScale),
			FrameInterval: envDuration("FRAME_INTERVAL", interval),
			RawInterval:   d.Recognition.RawInterval,
			SnapshotURL:   os.Getenv("CAMERA_SNAPSHOT_URL"),
		},
		Embedding: EmbeddingConfig{
			URL:   os.Getenv("EMBEDDING_URL"),
			Model: envString("EMBEDDING_MODEL", "buffalo_l"),
		},
		Database: DatabaseConfig{
			Backend:      strings.ToLower(envString("LEDGER_BACKEND", d.Ledger.Backend)),
			URL:          os.Getenv("DATABASE_URL"),
			MariaDBDSN:   os.Getenv("MARIADB_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_TOPIC", d.Kafka.Topic),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			APIToken:       os.Getenv("API_TOKEN"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		SummaryAt: os.Getenv("SUMMARY_AT"),
	}
}

// Validate reports configuration values that would make the system misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.Matching.DistanceThreshold <= 0 {
		errs = append(errs, fmt.Errorf("distance threshold must be positive, got %v", c.Matching.DistanceThreshold))
	}
	if c.Gallery.Scale <= 0 || c.Gallery.Scale > 1 {
		errs = append(errs, fmt.Errorf("gallery scale must be in (0, 1], got %v", c.Gallery.Scale))
	}
	if c.Recognition.FrameScale <= 0 || c.Recognition.FrameScale > 1 {
		errs = append(errs, fmt.Errorf("frame scale must be in (0, 1], got %v", c.Recognition.FrameScale))
	}
	switch c.Database.Backend {
	case "postgres", "mariadb":
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q (use postgres or mariadb)", c.Database.Backend))
	}
	if c.Gallery.Cache && c.Database.Backend != "postgres" {
		errs = append(errs, errors.New("GALLERY_CACHE requires the postgres ledger backend"))
	}
	return errors.Join(errs...)
}
