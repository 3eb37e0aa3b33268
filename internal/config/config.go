package config

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	EnvProduction = "production"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	MediaDriverS3    = "s3"
	MediaDriverLocal = "local"
)

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Postgres PostgresConfig
	Media    MediaConfig
}

type ServerConfig struct {
	Addr           string   `env:"ADDR,default=:8080"`
	Environment    string   `env:"APP_ENV,default=development"`
	CORSOrigins    []string `env:"CORS_ORIGIN"`
	MaxUploadBytes int64    `env:"MAX_UPLOAD_BYTES,default=8388608"`
}

// IsProduction controls the Secure attribute of auth cookies.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

type AuthConfig struct {
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET,required"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY,default=15m"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET,required"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY,default=240h"`
	BcryptCost         int           `env:"BCRYPT_COST,default=10"`
}

type PostgresConfig struct {
	Driver      string `env:"STORE_DRIVER,default=postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	Host        string `env:"PGHOST,default=localhost"`
	Port        string `env:"PGPORT,default=5432"`
	User        string `env:"PGUSER"`
	Password    string `env:"PGPASSWORD"`
	Database    string `env:"PGDATABASE"`
	SSLMode     string `env:"PGSSLMODE,default=disable"`
}

// URL returns DATABASE_URL when set, otherwise a DSN assembled from the PG* variables.
func (c PostgresConfig) URL() (string, error) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	if c.User == "" || c.Database == "" {
		return "", fmt.Errorf("missing required env: DATABASE_URL or PGUSER/PGDATABASE")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   c.Database,
	}
	if c.Password == "" {
		u.User = url.User(c.User)
	} else {
		u.User = url.UserPassword(c.User, c.Password)
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

type MediaConfig struct {
	Driver         string `env:"MEDIA_DRIVER,default=local"`
	LocalDir       string `env:"MEDIA_LOCAL_DIR,default=./public/media"`
	PublicBaseURL  string `env:"MEDIA_PUBLIC_BASE_URL"`
	Endpoint       string `env:"S3_ENDPOINT"`
	Region         string `env:"S3_REGION,default=us-east-1"`
	AccessKey      string `env:"S3_ACCESS_KEY"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	Bucket         string `env:"S3_BUCKET"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE,default=true"`
}

// Load reads a .env file when present and then the process environment.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()
	return LoadFrom(ctx, envconfig.OsLookuper())
}

func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	switch cfg.Postgres.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("load config: unknown STORE_DRIVER %q", cfg.Postgres.Driver)
	}
	switch cfg.Media.Driver {
	case MediaDriverS3, MediaDriverLocal:
	default:
		return Config{}, fmt.Errorf("load config: unknown MEDIA_DRIVER %q", cfg.Media.Driver)
	}

	return cfg, nil
}
