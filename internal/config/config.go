package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Document store drivers.
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Blob store drivers for the clinic logo.
const (
	BlobMemory = "memory"
	BlobFS     = "fs"
	BlobS3     = "s3"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	AuthMode        string        `mapstructure:"AUTH_MODE"`
	DocstoreDriver  string        `mapstructure:"DOCSTORE_DRIVER"`
	MongoURI        string        `mapstructure:"MONGO_URI"`
	MongoDatabase   string        `mapstructure:"MONGO_DATABASE"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	SQLitePath      string        `mapstructure:"SQLITE_PATH"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	LockTTL         time.Duration `mapstructure:"LOCK_TTL"`
	AuthIssuer      string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL     string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience    string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	BlobDriver      string        `mapstructure:"BLOB_DRIVER"`
	BlobFSRoot      string        `mapstructure:"BLOB_FS_ROOT"`
	BlobS3Bucket    string        `mapstructure:"BLOB_S3_BUCKET"`
	BlobS3Region    string        `mapstructure:"BLOB_S3_REGION"`
	BlobS3Endpoint  string        `mapstructure:"BLOB_S3_ENDPOINT"`
	BlobS3PathStyle bool          `mapstructure:"BLOB_S3_PATH_STYLE"`
	BodyLimit       string        `mapstructure:"BODY_LIMIT"`
	MaxLogoBytes    int64         `mapstructure:"MAX_LOGO_BYTES"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

func Load() (*Config, error) {
	// Export .env into the process environment so the AWS credential chain
	// sees the same values viper does.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from ENV
	v.SetDefault("DOCSTORE_DRIVER", DriverMemory)
	v.SetDefault("MONGO_DATABASE", "clinicdesk")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SQLITE_PATH", "clinicdesk.db")
	v.SetDefault("LOCK_TTL", "5s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BLOB_DRIVER", BlobMemory)
	v.SetDefault("BLOB_FS_ROOT", "./data/blobs")
	v.SetDefault("BLOB_S3_REGION", "us-east-1")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("MAX_LOGO_BYTES", 2<<20)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "AUTH_MODE",
		"DOCSTORE_DRIVER", "MONGO_URI", "MONGO_DATABASE",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "SQLITE_PATH",
		"REDIS_URL", "LOCK_TTL",
		"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "CORS_ORIGINS",
		"BLOB_DRIVER", "BLOB_FS_ROOT", "BLOB_S3_BUCKET", "BLOB_S3_REGION",
		"BLOB_S3_ENDPOINT", "BLOB_S3_PATH_STYLE",
		"BODY_LIMIT", "MAX_LOGO_BYTES", "SHUTDOWN_TIMEOUT",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.DocstoreDriver = strings.ToLower(strings.TrimSpace(cfg.DocstoreDriver))
	cfg.BlobDriver = strings.ToLower(strings.TrimSpace(cfg.BlobDriver))

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active and every request acts as admin.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE when set, "development" for ENV=development,
// and "external" otherwise.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "external"
}

// Validate checks driver and auth requirements before anything is dialed.
func (c *Config) Validate() error {
	switch c.DocstoreDriver {
	case DriverMemory:
		if c.IsProduction() {
			return fmt.Errorf("DOCSTORE_DRIVER=memory is not allowed in production")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when DOCSTORE_DRIVER is %q", DriverMongo)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DOCSTORE_DRIVER is %q", DriverPostgres)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when DOCSTORE_DRIVER is %q", DriverSQLite)
		}
	default:
		return fmt.Errorf("DOCSTORE_DRIVER must be one of memory, mongo, postgres, sqlite, got %q", c.DocstoreDriver)
	}

	switch c.BlobDriver {
	case BlobMemory, BlobFS:
	case BlobS3:
		if c.BlobS3Bucket == "" {
			return fmt.Errorf("BLOB_S3_BUCKET is required when BLOB_DRIVER is %q", BlobS3)
		}
	default:
		return fmt.Errorf("BLOB_DRIVER must be one of memory, fs, s3, got %q", c.BlobDriver)
	}

	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "external" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"external\", got %q", mode)
	}
	if mode == "external" && c.AuthIssuer == "" {
		return fmt.Errorf(
			"AUTH_ISSUER must be set when AUTH_MODE is \"external\" (current ENV=%q). "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.MaxLogoBytes <= 0 {
		return fmt.Errorf("MAX_LOGO_BYTES must be positive, got %d", c.MaxLogoBytes)
	}
	return nil
}
