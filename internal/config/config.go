package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds application configuration. It is loaded once at startup and
// passed by value afterwards.
type Config struct {
	AppName     string `envconfig:"APP_SERVICE" default:"givebox"`
	AppVersion  string `envconfig:"APP_VERSION" default:"0.1.0"`
	Environment string `envconfig:"APP_ENV" default:"development" validate:"oneof=development production test"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	AppURL      string `envconfig:"APP_URL" validate:"required,url"`

	DBType            string        `envconfig:"DATABASE_TYPE" default:"postgres" validate:"oneof=postgres sqlite"`
	DatabaseURL       string        `envconfig:"DATABASE_URL" validate:"omitempty,url"`
	DBMaxIdleConn     int           `envconfig:"DATABASE_MAX_IDLE_CONN" default:"5" validate:"gte=0"`
	DBMaxOpenConn     int           `envconfig:"DATABASE_MAX_OPEN_CONN" default:"20" validate:"gte=0"`
	DBConnMaxLifetime time.Duration `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"5m"`

	ClerkSecretKey     string `envconfig:"CLERK_SECRET_KEY" validate:"required"`
	ClerkJWTKey        string `envconfig:"CLERK_JWT_KEY" validate:"required"`
	ClerkWebhookSecret string `envconfig:"CLERK_WEBHOOK_SECRET"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeAPIBase       string `envconfig:"STRIPE_API_BASE" validate:"omitempty,url"`

	RedisURL        string `envconfig:"REDIS_URL" validate:"omitempty,url"`
	RateLimitConfig string `envconfig:"RATE_LIMIT_CONFIG"`

	LogLevel  string `envconfig:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" validate:"omitempty,oneof=json console"`

	OTLPEnabled       bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint      string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	OTLPProtocol      string  `envconfig:"OTEL_EXPORTER_OTLP_PROTOCOL" default:"grpc" validate:"oneof=grpc http"`
	OTLPSamplingRatio float64 `envconfig:"OTEL_SAMPLING_RATIO" default:"0.1" validate:"gte=0,lte=1"`
}

// Features are switches derived from the deployment environment.
type Features struct {
	RateLimiting   bool
	DetailedErrors bool
	Metrics        bool
	AuditLogging   bool
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func (c Config) Features() Features {
	production := c.IsProduction()
	return Features{
		RateLimiting:   production,
		DetailedErrors: c.IsDevelopment(),
		Metrics:        production,
		AuditLogging:   production,
	}
}

// FieldViolation describes one configuration key that failed validation.
type FieldViolation struct {
	Key        string
	Constraint string
	Message    string
}

// ValidationErrors lists every violated key, not just the first.
type ValidationErrors struct {
	Violations []FieldViolation
}

func (v *ValidationErrors) Error() string {
	keys := make([]string, 0, len(v.Violations))
	for _, violation := range v.Violations {
		keys = append(keys, violation.Key)
	}
	return "invalid configuration: " + strings.Join(keys, ", ")
}

// Load reads .env (if present) and the process environment, then validates
// the result against the declared schema.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv is Load without the .env file.
func LoadFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		var parseErr *envconfig.ParseError
		if errors.As(err, &parseErr) {
			return Config{}, &ValidationErrors{Violations: []FieldViolation{{
				Key:        parseErr.KeyName,
				Constraint: parseErr.TypeName,
				Message:    fmt.Sprintf("must be a valid %s", parseErr.TypeName),
			}}}
		}
		return Config{}, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.DBType = strings.ToLower(strings.TrimSpace(c.DBType))
	c.AppURL = strings.TrimRight(strings.TrimSpace(c.AppURL), "/")
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		if c.Environment == EnvDevelopment {
			c.LogLevel = "debug"
		} else {
			c.LogLevel = "info"
		}
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		if c.Environment == EnvDevelopment {
			c.LogFormat = "console"
		} else {
			c.LogFormat = "json"
		}
	}
	c.OTLPProtocol = strings.ToLower(strings.TrimSpace(c.OTLPProtocol))
}

// Validate checks the whole configuration and reports every violation.
func (c Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.TrimSpace(field.Tag.Get("envconfig"))
		if name == "" {
			return field.Name
		}
		return name
	})

	var violations []FieldViolation
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			violations = append(violations, FieldViolation{
				Key:        fe.Field(),
				Constraint: fe.Tag(),
				Message:    constraintMessage(fe.Tag(), fe.Param()),
			})
		}
	}

	if c.DBType == "postgres" && strings.TrimSpace(c.DatabaseURL) == "" {
		violations = append(violations, FieldViolation{
			Key:        "DATABASE_URL",
			Constraint: "required_if",
			Message:    "is required when DATABASE_TYPE is postgres",
		})
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationErrors{Violations: violations}
}

func constraintMessage(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "gte":
		return "must be greater than or equal to " + param
	case "lte":
		return "must be less than or equal to " + param
	default:
		return "failed " + tag + " constraint"
	}
}

var exit = os.Exit

// Provide loads the configuration for fx. Invalid configuration is fatal:
// every violation is logged and the process exits.
func Provide() Config {
	cfg, err := Load()
	if err != nil {
		log, logErr := zap.NewProduction()
		if logErr != nil {
			log = zap.NewNop()
		}
		ReportInvalid(log, err)
		_ = log.Sync()
		exit(1)
	}
	return cfg
}

// ReportInvalid logs each violated key of a configuration error.
func ReportInvalid(log *zap.Logger, err error) {
	var verr *ValidationErrors
	if !errors.As(err, &verr) {
		log.Error("invalid environment configuration", zap.Error(err))
		return
	}
	for _, violation := range verr.Violations {
		log.Error("invalid environment configuration",
			zap.String("key", violation.Key),
			zap.String("constraint", violation.Constraint),
			zap.String("message", violation.Message),
		)
	}
}
