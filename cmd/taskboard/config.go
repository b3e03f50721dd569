package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/mkovalev/taskboard/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultMongoURI     = "mongodb://localhost:27017/taskboard"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the taskboard service will be run
	ListenAddr string

	// Postgres the user store connects to
	DatabaseDSN string

	// Mongo the task store connects to
	MongoURI string

	// Redis backing the auth rate limiter; empty disables the limiter
	RedisAddr string

	// Distinct signing secrets for access and refresh tokens
	AccessSecret  string
	RefreshSecret string

	// Token lifetimes; zero falls back to the token manager defaults
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Origins allowed to call the API from a browser
	CORSOrigins []string

	// Requests allowed per window per IP on the auth endpoints
	AuthRateLimit  int
	AuthRateWindow time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		MongoURI:       defaultMongoURI,
		Environment:    defaultEnvironment,
		AuthRateLimit:  20,
		AuthRateWindow: time.Minute,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if d, err := time.ParseDuration(value); err == nil && d > 0 {
				*o = d
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				*o = n
			}
		}
	}
	setStrings := func(o *[]string) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			*o = parts
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":       setString(&c.ListenAddr),
		"DATABASE_URI":      setString(&c.DatabaseDSN),
		"MONGO_URI":         setString(&c.MongoURI),
		"REDIS_ADDR":        setString(&c.RedisAddr),
		"ACCESS_SECRET":     setString(&c.AccessSecret),
		"REFRESH_SECRET":    setString(&c.RefreshSecret),
		"ACCESS_TOKEN_TTL":  setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL": setDuration(&c.RefreshTokenTTL),
		"CORS_ORIGINS":      setStrings(&c.CORSOrigins),
		"AUTH_RATE_LIMIT":   setInt(&c.AuthRateLimit),
		"AUTH_RATE_WINDOW":  setDuration(&c.AuthRateWindow),
		"LOG_LEVEL":         setString(&c.LogLevel),
		"ENVIRONMENT":       setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("taskboard", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Postgres connection string")
	fs.StringVarP(&c.MongoURI, "mongo", "m", c.MongoURI, "Mongo connection string")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for the auth rate limiter (empty disables)")
	fs.StringVar(&c.AccessSecret, "access-secret", c.AccessSecret, "Access token signing secret")
	fs.StringVar(&c.RefreshSecret, "refresh-secret", c.RefreshSecret, "Refresh token signing secret")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-ttl", c.RefreshTokenTTL, "Refresh token lifetime")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "Allowed CORS origins")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}
