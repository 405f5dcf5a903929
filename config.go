package nasc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Environment keys read by LoadConfig.
const (
	EnvDebug       = "NASC_DEBUG"
	EnvValidate    = "NASC_VALIDATE"
	EnvDiagnostics = "NASC_DIAGNOSTICS"
	EnvLogLevel    = "NASC_LOG_LEVEL"
)

// Config holds builder settings read from the environment.
type Config struct {
	Debug       bool
	Validation  bool
	Diagnostics bool
	LogLevel    string
}

// LoadConfig reads the given env files (".env" when none are given) and then
// the process environment. Missing files are skipped and variables already
// set in the environment win. A file that cannot be read or parsed is
// reported after the remaining files have been loaded.
//
// Example:
//
//	cfg, err := nasc.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts, err := cfg.Options(prometheus.DefaultRegisterer)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	b := nasc.NewBuilder(opts...)
func LoadConfig(envFiles ...string) (Config, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}

	var errs error
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, fmt.Errorf("failed to load %s: %w", file, err))
		}
	}

	return Config{
		Debug:       envBool(EnvDebug, false),
		Validation:  envBool(EnvValidate, false),
		Diagnostics: envBool(EnvDiagnostics, false),
		LogLevel:    os.Getenv(EnvLogLevel),
	}, errs
}

// Options turns the configuration into builder options. reg receives the
// diagnostics collectors when diagnostics are enabled.
func (c Config) Options(reg prometheus.Registerer) ([]Option, error) {
	var opts []Option

	switch {
	case c.Debug:
		opts = append(opts, WithDebug())
	case c.LogLevel != "":
		level, err := zap.ParseAtomicLevel(c.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvLogLevel, err)
		}
		zc := zap.NewProductionConfig()
		zc.Level = level
		logger, err := zc.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
		opts = append(opts, WithLogger(logger.Named("nasc")))
	}

	if c.Validation {
		opts = append(opts, WithValidation())
	}

	if c.Diagnostics {
		d, err := NewDiagnostics(reg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDiagnostics(d))
	}

	return opts, nil
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
