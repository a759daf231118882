package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centralises every runtime setting so the rest of the codebase can remain deterministic
// and easy to test. All fields can be overridden using environment variables.
type Config struct {
	AppName     string         `env:"APP_NAME" envDefault:"mediconnect-api"`
	Env         string         `env:"APP_ENV" envDefault:"development"`
	LogLevel    string         `env:"LOG_LEVEL" envDefault:"info"`
	SeedFile    string         `env:"SEED_FILE" envDefault:""`
	CORSOrigins []string       `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
	HTTP        HTTPConfig     `envPrefix:"HTTP_"`
	Database    DatabaseConfig `envPrefix:"DB_"`
	Auth        AuthConfig     `envPrefix:"AUTH_"`
	Dispatch    DispatchConfig `envPrefix:"DISPATCH_"`
}

// HTTPConfig controls the HTTP server behaviour.
type HTTPConfig struct {
	Address      string        `env:"ADDRESS" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
}

// DatabaseConfig groups the Postgres settings for the activity journal.
// An empty URL keeps the journal in memory.
type DatabaseConfig struct {
	URL             string        `env:"URL" envDefault:""`
	RunMigrations   bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
	MigrationsDir   string        `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	MaxConns        int32         `env:"MAX_CONNS" envDefault:"10"`
	MaxConnIdleTime time.Duration `env:"MAX_CONN_IDLE_TIME" envDefault:"5m"`
	MaxConnLifetime time.Duration `env:"MAX_CONN_LIFETIME" envDefault:"30m"`
}

// AuthConfig points at the Keycloak realm that signs bearer tokens.
type AuthConfig struct {
	Enabled      bool   `env:"ENABLED" envDefault:"false"`
	URL          string `env:"KEYCLOAK_URL" envDefault:"http://localhost:8080"`
	PublicURL    string `env:"KEYCLOAK_PUBLIC_URL" envDefault:"http://localhost:8080"`
	Realm        string `env:"KEYCLOAK_REALM" envDefault:"mediconnect"`
	RequiredRole string `env:"REQUIRED_ROLE" envDefault:"api-access"`
}

// DispatchConfig tunes the dispatcher.
type DispatchConfig struct {
	ETA             time.Duration `env:"ETA" envDefault:"15m"`
	Auto            bool          `env:"AUTO" envDefault:"false"`
	MetricsInterval time.Duration `env:"METRICS_INTERVAL" envDefault:"15s"`
	JournalCapacity int           `env:"JOURNAL_CAPACITY" envDefault:"500"`
}

// Load reads configuration from the environment, applying defaults defined above.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
