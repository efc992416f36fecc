// Package config loads application configuration from environment variables
// into annotated structs.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11: the
// default .env file is loaded once per process, then env.Parse populates any
// struct with `env:` tags. Each configuration type is parsed at most once and
// cached for the lifetime of the process, so repeated Load calls across
// components are cheap and always observe the same values.
//
// Example:
//
//	type PublisherConfig struct {
//	    SweepInterval time.Duration `env:"PUBLISH_SWEEP_INTERVAL" envDefault:"30s"`
//	    MaxAttempts   int           `env:"PUBLISH_MAX_ATTEMPTS" envDefault:"3"`
//	}
//
//	var cfg PublisherConfig
//	config.MustLoad(&cfg)
//
// Sentinel errors (ErrParsingConfig, ErrConfigNotLoaded, ErrNilPointer) can be
// checked with errors.Is.
package config
