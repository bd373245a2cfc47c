package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DOCSTORE_DRIVER", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.DocstoreDriver != DriverMemory {
		t.Errorf("expected default driver memory, got %s", cfg.DocstoreDriver)
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("expected default max conns 20, got %d", cfg.DBMaxConns)
	}
	if cfg.LockTTL != 5*time.Second {
		t.Errorf("expected default lock ttl 5s, got %s", cfg.LockTTL)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected default shutdown timeout 10s, got %s", cfg.ShutdownTimeout)
	}
	if cfg.BodyLimit != "1M" {
		t.Errorf("expected default body limit 1M, got %s", cfg.BodyLimit)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DOCSTORE_DRIVER", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DocstoreDriver != DriverMongo {
		t.Errorf("expected driver to be normalized to mongo, got %q", cfg.DocstoreDriver)
	}
	if cfg.MongoURI != "mongodb://localhost:27017" {
		t.Errorf("expected MONGO_URI to be set, got %s", cfg.MongoURI)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("expected 2 CORS origins, got %v", cfg.CORSOrigins)
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
}

func TestConfig_ResolvedAuthMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit", Config{AuthMode: "external", Env: "development"}, "external"},
		{"dev", Config{Env: "development"}, "development"},
		{"prod", Config{Env: "production"}, "external"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolvedAuthMode(); got != tt.want {
				t.Errorf("ResolvedAuthMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func validDev() Config {
	return Config{
		Env:            "development",
		DocstoreDriver: DriverMemory,
		BlobDriver:     BlobMemory,
		MaxLogoBytes:   1024,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid dev", func(c *Config) {}, ""},
		{"mongo without uri", func(c *Config) { c.DocstoreDriver = DriverMongo }, "MONGO_URI"},
		{"postgres without url", func(c *Config) { c.DocstoreDriver = DriverPostgres }, "DATABASE_URL"},
		{"sqlite without path", func(c *Config) { c.DocstoreDriver = DriverSQLite }, "SQLITE_PATH"},
		{"unknown driver", func(c *Config) { c.DocstoreDriver = "dynamo" }, "DOCSTORE_DRIVER"},
		{"s3 without bucket", func(c *Config) { c.BlobDriver = BlobS3 }, "BLOB_S3_BUCKET"},
		{"unknown blob driver", func(c *Config) { c.BlobDriver = "gcs" }, "BLOB_DRIVER"},
		{"memory in production", func(c *Config) { c.Env = "production" }, "not allowed in production"},
		{"external without issuer", func(c *Config) { c.AuthMode = "external" }, "AUTH_ISSUER"},
		{"bad auth mode", func(c *Config) { c.AuthMode = "standalone" }, "AUTH_MODE"},
		{"zero logo size", func(c *Config) { c.MaxLogoBytes = 0 }, "MAX_LOGO_BYTES"},
		{"external with issuer", func(c *Config) {
			c.AuthMode = "external"
			c.AuthIssuer = "https://id.example.test"
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validDev()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
