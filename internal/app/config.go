package app

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RunAddress      string
	DatabaseURI     string
	LogLevel        string
	MigrationsPath  string
	AccessSecret    string
	RefreshSecret   string
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
	Workers         int
	QueueSize       int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	AdminAddress    string
	RateLimit       float64
	RateBurst       int
	ActionsLog      string
}

// NewConfigFromFlags reads flags from the command line, then lets the
// environment (and an optional .env file) override them. It panics on an
// invalid configuration.
func NewConfigFromFlags() *Config {
	// A missing .env file is the normal case.
	_ = godotenv.Load()

	cfg, err := parseConfig(os.Args[0], os.Args[1:], os.Getenv)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func parseConfig(name string, args []string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", ":8080", "Server address (env: RUN_ADDRESS)")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "Database URI (env: DATABASE_URI)")
	fs.StringVar(&cfg.LogLevel, "l", "debug", "Log level (debug|info|warn|error) (env: LOG_LEVEL)")
	fs.StringVar(&cfg.MigrationsPath, "migrations", "./migrations", "Path to migrations folder (env: MIGRATIONS_PATH)")
	fs.StringVar(&cfg.AccessSecret, "access-secret", "", "Access token secret (env: JWT_ACCESS_SECRET)")
	fs.StringVar(&cfg.RefreshSecret, "refresh-secret", "", "Refresh token secret (env: JWT_REFRESH_SECRET)")
	fs.DurationVar(&cfg.AccessLifetime, "access-lifetime", 15*time.Minute, "Access token lifetime (env: JWT_ACCESS_LIFETIME)")
	fs.DurationVar(&cfg.RefreshLifetime, "refresh-lifetime", 720*time.Hour, "Refresh token lifetime (env: JWT_REFRESH_LIFETIME)")
	fs.IntVar(&cfg.Workers, "workers", 32, "Number of connection workers (env: WORKERS)")
	fs.IntVar(&cfg.QueueSize, "queue", 128, "Accepted connections waiting for a worker (env: QUEUE_SIZE)")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", 5*time.Second, "Request read timeout (env: READ_TIMEOUT)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", 5*time.Second, "Response write timeout (env: WRITE_TIMEOUT)")
	fs.StringVar(&cfg.AdminAddress, "admin", "", "Admin HTTP address for /healthz and /metrics, empty disables (env: ADMIN_ADDRESS)")
	fs.Float64Var(&cfg.RateLimit, "rate", 0, "Requests per second per client IP, 0 disables (env: RATE_LIMIT)")
	fs.IntVar(&cfg.RateBurst, "burst", 10, "Rate limiter burst (env: RATE_BURST)")
	fs.StringVar(&cfg.ActionsLog, "actions-log", "", "User actions log file, empty logs to stdout (env: ACTIONS_LOG)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvVars(getenv); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvVars(getenv func(string) string) error {
	strs := map[string]*string{
		"RUN_ADDRESS":        &c.RunAddress,
		"DATABASE_URI":       &c.DatabaseURI,
		"LOG_LEVEL":          &c.LogLevel,
		"MIGRATIONS_PATH":    &c.MigrationsPath,
		"JWT_ACCESS_SECRET":  &c.AccessSecret,
		"JWT_REFRESH_SECRET": &c.RefreshSecret,
		"ADMIN_ADDRESS":      &c.AdminAddress,
		"ACTIONS_LOG":        &c.ActionsLog,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"JWT_ACCESS_LIFETIME":  &c.AccessLifetime,
		"JWT_REFRESH_LIFETIME": &c.RefreshLifetime,
		"READ_TIMEOUT":         &c.ReadTimeout,
		"WRITE_TIMEOUT":        &c.WriteTimeout,
	}
	for key, dst := range durations {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"WORKERS":    &c.Workers,
		"QUEUE_SIZE": &c.QueueSize,
		"RATE_BURST": &c.RateBurst,
	}
	for key, dst := range ints {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}

	if v := getenv("RATE_LIMIT"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT: %w", err)
		}
		c.RateLimit = r
	}
	return nil
}

func (c *Config) validate() error {
	if c.DatabaseURI == "" {
		return errors.New("Database URI is required (use -d flag or DATABASE_URI env)")
	}
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return errors.New("JWT access and refresh secrets are required (use -access-secret/-refresh-secret or JWT_ACCESS_SECRET/JWT_REFRESH_SECRET env)")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("JWT access and refresh secrets must differ")
	}
	if c.AccessLifetime <= 0 || c.RefreshLifetime <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if c.QueueSize < 0 {
		return errors.New("queue size must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	return nil
}

func (c *Config) MaskDBPassword() string {
	u, err := url.Parse(c.DatabaseURI)
	if err != nil {
		return c.DatabaseURI
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
