package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all bloomctl configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Readiness ReadinessConfig
	Migration MigrationConfig
	Fixtures  FixturesConfig
	Log       LogConfig
}

// AppConfig holds application-wide settings
type AppConfig struct {
	Name    string
	Env     string `env:"ENVIRONMENT" validate:"oneof=local staging production"`
	WorkDir string // directory probed for the entry module and hook script
}

// ServerConfig describes how the web server process is launched.
// Port is left empty when unset so each launcher can apply its own default.
type ServerConfig struct {
	ModuleName   string
	VariableName string
	AppModule    string
	Host         string
	Port         string `env:"PORT" validate:"omitempty,tcp_port"`
	LogLevel     string

	Workers           int    `env:"WORKERS" validate:"gte=0"` // 0 = derive from CPU count
	WorkerConnections int    `env:"WORKER_CONNECTIONS" validate:"gte=0"`
	WorkerClass       string
	Timeout           int `env:"TIMEOUT" validate:"gte=0"`          // seconds
	KeepAlive         int `env:"KEEPALIVE" validate:"gte=0"`        // seconds
	GracefulTimeout   int `env:"GRACEFUL_TIMEOUT" validate:"gte=0"` // seconds
	MaxRequests       int `env:"MAX_REQUESTS" validate:"gte=0"`     // 0 disables worker recycling
	MaxRequestsJitter int `env:"MAX_REQUESTS_JITTER" validate:"gte=0"`

	DevBinary      string
	ProdBinary     string
	BackgroundJobs []string
	PrestartScript string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string `env:"POSTGRES_PASSWORD"`
	DBName          string
	SSLMode         string
	MaxOpenConns    int `env:"POSTGRES_MAX_OPEN_CONNS" validate:"gte=0"`
	MaxIdleConns    int `env:"POSTGRES_MAX_IDLE_CONNS" validate:"gte=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ReadinessConfig controls the dependency probes run before startup
type ReadinessConfig struct {
	MaxTries   int `env:"READINESS_MAX_TRIES" validate:"gte=0"`
	Wait       time.Duration
	CheckRedis bool
}

// MigrationConfig holds schema migration settings
type MigrationConfig struct {
	Path string
}

// FixturesConfig controls fixture loading
type FixturesConfig struct {
	Enabled bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string `env:"LOG_FORMAT" validate:"omitempty,oneof=json console"` // empty picks by environment
	Output string // stdout, stderr, or file path; empty means stderr
}

const (
	EnvLocal      = "local"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Load loads configuration from an optional .env file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables (e.g., PORT, POSTGRES_PASSWORD)
// 2. .env in the working directory
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with the .env file looked up in dir.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(filepath.Join(dir, ".env"))
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading .env file: %w", err)
		}
		// No .env is fine, environment variables and defaults still apply
	}

	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app_name"),
			Env:     strings.ToLower(v.GetString("environment")),
			WorkDir: v.GetString("work_dir"),
		},
		Server: ServerConfig{
			ModuleName:        v.GetString("module_name"),
			VariableName:      v.GetString("variable_name"),
			AppModule:         v.GetString("app_module"),
			Host:              v.GetString("host"),
			Port:              v.GetString("port"),
			LogLevel:          v.GetString("log_level"),
			Workers:           v.GetInt("workers"),
			WorkerConnections: v.GetInt("worker_connections"),
			WorkerClass:       v.GetString("worker_class"),
			Timeout:           v.GetInt("timeout"),
			KeepAlive:         v.GetInt("keepalive"),
			GracefulTimeout:   v.GetInt("graceful_timeout"),
			MaxRequests:       v.GetInt("max_requests"),
			MaxRequestsJitter: v.GetInt("max_requests_jitter"),
			DevBinary:         v.GetString("dev_server_bin"),
			ProdBinary:        v.GetString("prod_server_bin"),
			BackgroundJobs:    splitJobs(v.GetString("dev_background_jobs")),
			PrestartScript:    v.GetString("prestart_script"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("postgres_host"),
			Port:            v.GetInt("postgres_port"),
			User:            v.GetString("postgres_user"),
			Password:        v.GetString("postgres_password"),
			DBName:          v.GetString("postgres_db"),
			SSLMode:         v.GetString("postgres_sslmode"),
			MaxOpenConns:    v.GetInt("postgres_max_open_conns"),
			MaxIdleConns:    v.GetInt("postgres_max_idle_conns"),
			ConnMaxLifetime: v.GetInt("postgres_conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("postgres_conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis_host"),
			Port:     v.GetInt("redis_port"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Readiness: ReadinessConfig{
			MaxTries:   v.GetInt("readiness_max_tries"),
			Wait:       v.GetDuration("readiness_wait"),
			CheckRedis: v.GetBool("readiness_check_redis"),
		},
		Migration: MigrationConfig{
			Path: v.GetString("migrations_path"),
		},
		Fixtures: FixturesConfig{
			Enabled: v.GetBool("load_fixtures"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
			Output: v.GetString("log_output"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers defaults that cannot be told apart from an
// explicit zero value once read, such as booleans and the server
// settings for which 0 is meaningful.
func setDefaults(v *viper.Viper) {
	v.SetDefault("load_fixtures", true)
	v.SetDefault("readiness_check_redis", false)
	v.SetDefault("keepalive", 5)
	v.SetDefault("max_requests", 1000)
	v.SetDefault("max_requests_jitter", 50)
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "bloom"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = EnvLocal
	}
	if cfg.App.WorkDir == "" {
		cfg.App.WorkDir = "."
	}

	if cfg.Server.VariableName == "" {
		cfg.Server.VariableName = "app"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.WorkerConnections == 0 {
		cfg.Server.WorkerConnections = 1000
	}
	if cfg.Server.WorkerClass == "" {
		cfg.Server.WorkerClass = "uvicorn.workers.UvicornWorker"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30
	}
	if cfg.Server.GracefulTimeout == 0 {
		cfg.Server.GracefulTimeout = 30
	}
	if cfg.Server.DevBinary == "" {
		cfg.Server.DevBinary = "uvicorn"
	}
	if cfg.Server.ProdBinary == "" {
		cfg.Server.ProdBinary = "gunicorn"
	}
	if cfg.Server.PrestartScript == "" {
		cfg.Server.PrestartScript = filepath.Join("scripts", "pre-start.sh")
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "bloom"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 5
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Readiness.MaxTries == 0 {
		cfg.Readiness.MaxTries = 60 * 5
	}
	if cfg.Readiness.Wait == 0 {
		cfg.Readiness.Wait = time.Second
	}

	if cfg.Migration.Path == "" {
		cfg.Migration.Path = "migrations"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

var configValidator = newValidator()

// newValidator reports fields by their environment variable name and adds
// the rules that span sections of the config.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("env")
	})
	_ = v.RegisterValidation("tcp_port", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Field().String())
		return err == nil && n >= 1 && n <= 65535
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		c := sl.Current().Interface().(Config)
		if c.App.Env == EnvProduction && c.Database.Password == "" {
			sl.ReportError(c.Database.Password, "POSTGRES_PASSWORD", "Password", "required_in_production", "")
		}
	}, Config{})
	return v
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, validationMessage(e))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}

// validationMessage returns a human-readable message for a failed rule
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of %s, got %q", e.Field(), e.Param(), fmt.Sprint(e.Value()))
	case "tcp_port":
		return fmt.Sprintf("%s must be a port number in 1-65535, got %q", e.Field(), fmt.Sprint(e.Value()))
	case "gte":
		return fmt.Sprintf("%s cannot be negative", e.Field())
	case "ltefield":
		return fmt.Sprintf("%s (%v) cannot exceed POSTGRES_MAX_OPEN_CONNS", e.Field(), e.Value())
	case "required_in_production":
		return fmt.Sprintf("%s is required in production", e.Field())
	default:
		return fmt.Sprintf("%s failed the %s rule", e.Field(), e.Tag())
	}
}

// splitJobs parses a ';'-separated list of shell commands
func splitJobs(raw string) []string {
	var jobs []string
	for _, job := range strings.Split(raw, ";") {
		if job = strings.TrimSpace(job); job != "" {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
