package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Env          string `toml:"env"`
	LogLevel     string `toml:"log_level"`
	DBType       string `toml:"storage_backend"`
	DBDSN        string `toml:"postgres_dsn"`
	SQLitePath   string `toml:"sqlite_path"`
	FileSessions string `toml:"sessions_file"`
	FileCoins    string `toml:"coins_file"`
	RegistryPath string `toml:"registry_path"`
	Timezone     string `toml:"timezone"`
	HTTPAddr     string `toml:"http_addr"`
	UserID       string `toml:"user_id"`
}

var (
	cfg  *Config
	once sync.Once
)

// Load reads the configuration once per process and panics if it is invalid.
func Load() *Config {
	once.Do(func() {
		c, err := FromEnv()
		if err != nil {
			panic("Invalid config: " + err.Error())
		}
		cfg = c
	})
	return cfg
}

// FromEnv builds a Config from defaults, the optional CONFIG_FILE and the
// environment, in increasing order of precedence.
func FromEnv() (*Config, error) {
	c := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.mergeFile(path); err != nil {
			return nil, err
		}
	}
	c.Env = getEnv("APP_ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DBType = getEnv("STORAGE_BACKEND", c.DBType)
	c.DBDSN = getEnv("POSTGRES_DSN", c.DBDSN)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.FileSessions = getEnv("SESSIONS_FILE", c.FileSessions)
	c.FileCoins = getEnv("COINS_FILE", c.FileCoins)
	c.RegistryPath = getEnv("REGISTRY_PATH", c.RegistryPath)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.UserID = getEnv("USER_ID", c.UserID)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func Defaults() *Config {
	return &Config{
		Env:          "development",
		LogLevel:     "info",
		DBType:       "file",
		SQLitePath:   "data/sleepcat.db",
		FileSessions: "data/sleep_sessions.json",
		FileCoins:    "data/coins.json",
		RegistryPath: "data/pending.db",
		Timezone:     "UTC",
		HTTPAddr:     ":8088",
	}
}

// mergeFile overlays the non-empty values of a TOML file onto c.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc Config
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	overlay(&c.Env, fc.Env)
	overlay(&c.LogLevel, fc.LogLevel)
	overlay(&c.DBType, fc.DBType)
	overlay(&c.DBDSN, fc.DBDSN)
	overlay(&c.SQLitePath, fc.SQLitePath)
	overlay(&c.FileSessions, fc.FileSessions)
	overlay(&c.FileCoins, fc.FileCoins)
	overlay(&c.RegistryPath, fc.RegistryPath)
	overlay(&c.Timezone, fc.Timezone)
	overlay(&c.HTTPAddr, fc.HTTPAddr)
	overlay(&c.UserID, fc.UserID)
	return nil
}

func (c *Config) Validate() error {
	switch c.DBType {
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
		}
	case "file":
		if c.FileSessions == "" || c.FileCoins == "" {
			return errors.New("File storage requires SESSIONS_FILE and COINS_FILE to be set")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: file, sqlite, postgres (got %q)", c.DBType)
	}
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	if c.RegistryPath == "" {
		return errors.New("REGISTRY_PATH is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the time zone sessions are attributed to.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
