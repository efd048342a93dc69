// Package config loads the application configuration from defaults, command
// line flags, a .env file and environment variables, in that order of
// precedence (environment variables win). Values are validated before use.
package config

import (
	"flag"
	"log"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the process configuration.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" validate:"loglevel"`
	DatabaseDSN         string        `env:"DATABASE_DSN"`
	DBFileName          string        `env:"FILE_STORAGE_PATH"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR"`
	AuthSecret          string        `env:"AUTH_SECRET" validate:"required,base64"`
	TokenTTL            time.Duration `env:"TOKEN_TTL"`
	SubscriptionBuffer  int           `env:"SUBSCRIPTION_BUFFER" validate:"gt=0"`
	TelemetryToken      string        `env:"TELEMETRY_TOKEN"`
}

var defaultConfig = Config{
	RunAddr:             ":8080",
	LogLevel:            "info",
	DatabaseDSN:         "",
	DBFileName:          "",
	DBConnectionTimeout: 10 * time.Second,
	MigrationsDir:       "cmd/linkfeed/migrations",
	AuthSecret:          "dGhpcyBpcyBteSBzZWNyZXQ=",
	TokenTTL:            0,
	SubscriptionBuffer:  16,
	TelemetryToken:      "",
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

// InitOption configures the loading behavior of New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing skips command line flag parsing, which is needed
// when configuration is constructed inside tests.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

func overlayEnv(values *Config, fromEnv Config) {
	if fromEnv.RunAddr != "" {
		values.RunAddr = fromEnv.RunAddr
	}

	if fromEnv.LogLevel != "" {
		values.LogLevel = fromEnv.LogLevel
	}

	if fromEnv.DatabaseDSN != "" {
		values.DatabaseDSN = fromEnv.DatabaseDSN
	}

	if fromEnv.DBFileName != "" {
		values.DBFileName = fromEnv.DBFileName
	}

	if fromEnv.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = fromEnv.DBConnectionTimeout
	}

	if fromEnv.MigrationsDir != "" {
		values.MigrationsDir = fromEnv.MigrationsDir
	}

	if fromEnv.AuthSecret != "" {
		values.AuthSecret = fromEnv.AuthSecret
	}

	if fromEnv.TokenTTL != 0 {
		values.TokenTTL = fromEnv.TokenTTL
	}

	if fromEnv.SubscriptionBuffer != 0 {
		values.SubscriptionBuffer = fromEnv.SubscriptionBuffer
	}

	if fromEnv.TelemetryToken != "" {
		values.TelemetryToken = fromEnv.TelemetryToken
	}
}

// New builds the configuration: defaults, then flags, then .env, then
// environment variables, then validation.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	if !options.disableFlagsParsing {
		flag.StringVar(&values.RunAddr, "a", values.RunAddr, "address and port to run server")
		flag.StringVar(&values.LogLevel, "l", values.LogLevel, "logger level")
		flag.StringVar(&values.DatabaseDSN, "d", values.DatabaseDSN, "a string with the database connection details")
		flag.StringVar(&values.DBFileName, "f", values.DBFileName, "JSON file name with database")
		flag.StringVar(&values.MigrationsDir, "m", values.MigrationsDir, "directory with goose migrations")
		flag.StringVar(&values.AuthSecret, "s", values.AuthSecret, "base64-encoded JWT signing secret")
		flag.DurationVar(&values.TokenTTL, "t", values.TokenTTL, "token lifetime, 0 disables expiry")
		flag.Parse()
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	var valuesFromEnv Config
	err = env.Parse(&valuesFromEnv)
	if err != nil {
		return nil, err
	}

	overlayEnv(values, valuesFromEnv)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}
