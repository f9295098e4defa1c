package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port          int    `envconfig:"PORT" default:"3000"`
	Environment   string `envconfig:"ENV" default:"development"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:3000"`

	// Database
	DatabaseURL     string        `envconfig:"DATABASE_URL" required:"true"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"true"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"5m"`

	// Provider
	ProviderType     string        `envconfig:"PROVIDER_TYPE" default:"deepface"`
	DeepFaceURL      string        `envconfig:"DEEPFACE_URL" default:"http://localhost:5000"`
	DeepFaceModel    string        `envconfig:"DEEPFACE_MODEL" default:"Facenet"`
	DeepFaceDetector string        `envconfig:"DEEPFACE_DETECTOR" default:"opencv"`
	DeepFaceTimeout  time.Duration `envconfig:"DEEPFACE_TIMEOUT" default:"30s"`
	MinConfidence    float64       `envconfig:"MIN_CONFIDENCE" default:"0.5"`
	InputSize        int           `envconfig:"INPUT_SIZE" default:"320"`

	// Optional Rekognition face gate in front of the provider
	FaceGate  string `envconfig:"FACE_GATE" default:""`
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Catalog and descriptor cache
	CatalogPath      string        `envconfig:"CATALOG_PATH" default:""`
	BuildConcurrency int           `envconfig:"BUILD_CONCURRENCY" default:"4"`
	BuildTaskTimeout time.Duration `envconfig:"BUILD_TASK_TIMEOUT" default:"15s"`
	BuildTimeout     time.Duration `envconfig:"BUILD_TIMEOUT" default:"2m"`
	DefaultTopK      int           `envconfig:"DEFAULT_TOP_K" default:"3"`
	FetchRPS         float64       `envconfig:"FETCH_RPS" default:"5"`
	FetchBurst       int           `envconfig:"FETCH_BURST" default:"5"`
	FetchMaxBytes    int64         `envconfig:"FETCH_MAX_BYTES" default:"10485760"`
	// WarmStart restores the last persisted descriptors before building
	WarmStart          bool `envconfig:"WARM_START" default:"true"`
	PersistDescriptors bool `envconfig:"PERSIST_DESCRIPTORS" default:"true"`
	MaxUploadBytes     int  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`

	// Descriptor memo: postgres, redis or none
	MemoBackend string        `envconfig:"MEMO_BACKEND" default:"postgres"`
	MemoTTL     time.Duration `envconfig:"MEMO_TTL" default:"24h"`
	RedisURL    string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	// Object storage for user photos
	StorageEndpoint  string `envconfig:"STORAGE_ENDPOINT" default:""`
	StorageAccessKey string `envconfig:"STORAGE_ACCESS_KEY" default:""`
	StorageSecretKey string `envconfig:"STORAGE_SECRET_KEY" default:""`
	StorageBucket    string `envconfig:"STORAGE_BUCKET" default:"user-uploads"`
	StorageUseSSL    bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
	StoragePublicURL string `envconfig:"STORAGE_PUBLIC_URL" default:""`

	// Security
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL            time.Duration `envconfig:"JWT_TTL" default:"24h"`
	AdminEmails       []string      `envconfig:"ADMIN_EMAILS" default:""`
	MatchQuotaPerHour int           `envconfig:"MATCH_QUOTA_PER_HOUR" default:"30"`
	RequestsPerMinute int           `envconfig:"REQUESTS_PER_MINUTE" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// DatabaseConfig is the subset of Config needed by offline tools
type DatabaseConfig struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

// LoadDatabase reads only the database settings
func LoadDatabase() (*DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express
func (c *Config) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be within [0,1], got %v", c.MinConfidence)
	}
	if c.BuildConcurrency < 1 {
		return fmt.Errorf("BUILD_CONCURRENCY must be positive, got %d", c.BuildConcurrency)
	}
	if c.DefaultTopK < 1 || c.DefaultTopK > 10 {
		return fmt.Errorf("DEFAULT_TOP_K must be within [1,10], got %d", c.DefaultTopK)
	}
	switch c.MemoBackend {
	case "postgres", "redis", "none":
	default:
		return fmt.Errorf("MEMO_BACKEND must be postgres, redis or none, got %q", c.MemoBackend)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// StorageEnabled reports whether user photos should be uploaded
func (c *Config) StorageEnabled() bool {
	return c.StorageEndpoint != ""
}
