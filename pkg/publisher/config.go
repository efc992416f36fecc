package publisher

import "time"

// Config is the environment-driven tuning surface for the publishing
// pipeline. Load it with pkg/config.
type Config struct {
	SweepInterval         time.Duration `env:"PUBLISH_SWEEP_INTERVAL" envDefault:"30s"`
	SweepBatchSize        int           `env:"PUBLISH_SWEEP_BATCH" envDefault:"50"`
	MaxConcurrentAccounts int           `env:"PUBLISH_MAX_CONCURRENT_ACCOUNTS" envDefault:"8"`
	PublishTimeout        time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"60s"`
	ClaimStaleAfter       time.Duration `env:"PUBLISH_CLAIM_STALE_AFTER" envDefault:"5m"`
	MaxAttempts           int           `env:"PUBLISH_MAX_ATTEMPTS" envDefault:"3"`
	ScheduleGrace         time.Duration `env:"PUBLISH_SCHEDULE_GRACE" envDefault:"10m"`

	RetryInitialInterval time.Duration `env:"PUBLISH_RETRY_INITIAL_INTERVAL" envDefault:"30s"`
	RetryMaxInterval     time.Duration `env:"PUBLISH_RETRY_MAX_INTERVAL" envDefault:"30m"`
	RetryMultiplier      float64       `env:"PUBLISH_RETRY_MULTIPLIER" envDefault:"2"`
	RetryJitter          float64       `env:"PUBLISH_RETRY_JITTER" envDefault:"0.2"`

	AccountRateCapacity       int           `env:"PUBLISH_ACCOUNT_RATE_CAPACITY" envDefault:"10"`
	AccountRateRefillRate     int           `env:"PUBLISH_ACCOUNT_RATE_REFILL" envDefault:"10"`
	AccountRateRefillInterval time.Duration `env:"PUBLISH_ACCOUNT_RATE_INTERVAL" envDefault:"1h"`
}
