package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultJwtSecret    = "change-me"
	defaultHereAPIKey   = "default_here_api_key"
	DefaultTokenTTL     = 15 * time.Minute
	defaultGeocodeURL   = "https://geocode.search.hereapi.com/v1/geocode"
	defaultDiscoverURL  = "https://discover.search.hereapi.com/v1/discover"
	defaultHereTimeout  = 10 * time.Second
	defaultHereRate     = 5.0
	defaultReadTimeout  = 5 * time.Second
	defaultWriteTimeout = 15 * time.Second
)

type Config struct {
	Port       string
	Env        string
	DBAdapter  string
	SQLiteFile string
	LogLevel   string
	LogFormat  string

	JwtSecret string
	TokenTTL  time.Duration

	HereAPIKey        string
	HereGeocodeURL    string
	HereDiscoverURL   string
	HereTimeout       time.Duration
	HereRatePerSecond float64

	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsProduction reports whether ENV (or NODE_ENV) names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	port := c.PostgresPort
	if port == "" {
		port = "5432"
	}

	sslMode := c.PostgresSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, port, c.PostgresUser, c.PostgresDB, sslMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

// Load reads an optional .env file (missing files are ignored) and then
// builds the Config from the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return New()
}

func New() (*Config, error) {
	c := &Config{
		Port:            getenv("PORT", "8080"),
		Env:             strings.ToLower(getenv("ENV", getenv("NODE_ENV", ""))),
		DBAdapter:       getenv("DB_ADAPTER", "postgres"),
		SQLiteFile:      getenv("SQLITE_FILE", "./data/placesauth.db"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "text"),
		JwtSecret:       getenv("JWT_SECRET", defaultJwtSecret),
		HereAPIKey:      getenv("HERE_API_KEY", defaultHereAPIKey),
		HereGeocodeURL:  getenv("HERE_GEOCODE_URL", defaultGeocodeURL),
		HereDiscoverURL: getenv("HERE_DISCOVER_URL", defaultDiscoverURL),
		AllowedOrigins:  splitList(getenv("CORS_ALLOWED_ORIGINS", "")),
		// PostgreSQL settings; DATABASE_URL is honoured for compatibility with hosted platforms
		PostgresDSN:      getenv("POSTGRES_DSN", getenv("DATABASE_URL", "")),
		PostgresHost:     getenv("POSTGRES_HOST", getenv("DB_HOST", "localhost")),
		PostgresPort:     getenv("POSTGRES_PORT", getenv("DB_PORT", "5432")),
		PostgresUser:     getenv("POSTGRES_USER", getenv("DB_USER", "places")),
		PostgresPassword: getenv("POSTGRES_PASSWORD", getenv("DB_PASSWORD", "placespass")),
		PostgresDB:       getenv("POSTGRES_DB", getenv("DB_NAME", "placesauth")),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", getenv("DB_SSLMODE", "disable")),
	}

	var err error
	if c.TokenTTL, err = getenvDuration("JWT_ACCESS_TOKEN_EXPIRE_TIME", DefaultTokenTTL); err != nil {
		return nil, err
	}
	if c.HereTimeout, err = getenvDuration("HERE_TIMEOUT", defaultHereTimeout); err != nil {
		return nil, err
	}
	if c.ReadTimeout, err = getenvDuration("HTTP_READ_TIMEOUT", defaultReadTimeout); err != nil {
		return nil, err
	}
	if c.WriteTimeout, err = getenvDuration("HTTP_WRITE_TIMEOUT", defaultWriteTimeout); err != nil {
		return nil, err
	}

	c.HereRatePerSecond = defaultHereRate
	if v := os.Getenv("HERE_RATE_PER_SECOND"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			return nil, fmt.Errorf("invalid HERE_RATE_PER_SECOND: %s", v)
		}
		c.HereRatePerSecond = r
	}

	switch c.DBAdapter {
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	case "sqlite":
		if c.SQLiteFile == "" {
			return nil, errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, sqlite, memory)", c.DBAdapter)
	}

	if c.IsProduction() {
		if c.JwtSecret == "" || c.JwtSecret == defaultJwtSecret {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		if c.HereAPIKey == "" || c.HereAPIKey == defaultHereAPIKey {
			return nil, errors.New("HERE_API_KEY must be set in production")
		}
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return c, nil
}
