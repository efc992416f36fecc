package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amplifyops/publishkit/pkg/backoff"
	"github.com/amplifyops/publishkit/pkg/config"
	"github.com/amplifyops/publishkit/pkg/logger"
	"github.com/amplifyops/publishkit/pkg/pg"
	"github.com/amplifyops/publishkit/pkg/publisher"
	"github.com/amplifyops/publishkit/pkg/ratelimiter"
	"github.com/amplifyops/publishkit/pkg/redis"
)

type appConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"publish-scheduler"`

	ContentAPIURL     string        `env:"CONTENT_API_URL,required"`
	ContentAPITimeout time.Duration `env:"CONTENT_API_TIMEOUT" envDefault:"10s"`

	MetaWebhookURL     string `env:"ADAPTER_META_URL"`
	TikTokWebhookURL   string `env:"ADAPTER_TIKTOK_URL"`
	YouTubeWebhookURL  string `env:"ADAPTER_YOUTUBE_URL"`
	LinkedInWebhookURL string `env:"ADAPTER_LINKEDIN_URL"`
	XWebhookURL        string `env:"ADAPTER_X_URL"`
}

func main() {
	var appCfg appConfig
	config.MustLoad(&appCfg)

	var pgCfg pg.Config
	config.MustLoad(&pgCfg)

	var redisCfg redis.Config
	config.MustLoad(&redisCfg)

	var pubCfg publisher.Config
	config.MustLoad(&pubCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Environment, appCfg.ServiceName))
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appCfg, pgCfg, redisCfg, pubCfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("scheduler exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg appConfig, pgCfg pg.Config, redisCfg redis.Config, pubCfg publisher.Config, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	for _, check := range []func(context.Context) error{
		pg.Healthcheck(pool),
		redis.Healthcheck(redisClient),
	} {
		if err := check(ctx); err != nil {
			return err
		}
	}

	store, err := publisher.NewPostgresStore(pool)
	if err != nil {
		return err
	}

	claims, err := publisher.NewClaimManager(store, publisher.WithClaimLogger(log))
	if err != nil {
		return err
	}

	policy := publisher.NewRetryPolicy(backoff.Exponential{
		Initial:    pubCfg.RetryInitialInterval,
		Max:        pubCfg.RetryMaxInterval,
		Multiplier: pubCfg.RetryMultiplier,
		Jitter:     pubCfg.RetryJitter,
	})

	content := newContentClient(appCfg.ContentAPIURL, appCfg.ContentAPITimeout)

	dispatcher, err := publisher.NewDispatcher(store, claims, policy, content,
		publisher.WithPublishTimeout(pubCfg.PublishTimeout),
		publisher.WithDispatcherLogger(log),
	)
	if err != nil {
		return err
	}

	registerAdapters(dispatcher, appCfg, log)

	limiter, err := ratelimiter.NewBucket(
		ratelimiter.NewRedisStore(redisClient, ratelimiter.WithKeyPrefix("publish:rate:")),
		ratelimiter.Config{
			Capacity:       pubCfg.AccountRateCapacity,
			RefillRate:     pubCfg.AccountRateRefillRate,
			RefillInterval: pubCfg.AccountRateRefillInterval,
		},
	)
	if err != nil {
		return err
	}

	sweep, err := publisher.NewSweep(store, dispatcher, policy,
		publisher.WithSweepInterval(pubCfg.SweepInterval),
		publisher.WithSweepBatchSize(pubCfg.SweepBatchSize),
		publisher.WithStaleClaimThreshold(pubCfg.ClaimStaleAfter),
		publisher.WithMaxConcurrentAccounts(pubCfg.MaxConcurrentAccounts),
		publisher.WithAccountRateLimiter(limiter),
		publisher.WithSweepLogger(log),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(sweep.Run(gctx))

	return g.Wait()
}

// registerAdapters wires one webhook adapter per configured platform. A
// platform without a URL stays unregistered; its jobs fail permanently, which
// surfaces the misconfiguration through the normal alerting path.
func registerAdapters(d *publisher.Dispatcher, cfg appConfig, log *slog.Logger) {
	urls := map[publisher.Platform]string{
		publisher.PlatformMeta:     cfg.MetaWebhookURL,
		publisher.PlatformTikTok:   cfg.TikTokWebhookURL,
		publisher.PlatformYouTube:  cfg.YouTubeWebhookURL,
		publisher.PlatformLinkedIn: cfg.LinkedInWebhookURL,
		publisher.PlatformX:        cfg.XWebhookURL,
	}

	for platform, url := range urls {
		if url == "" {
			log.Warn("no adapter configured for platform", "platform", string(platform))
			continue
		}
		d.RegisterAdapter(platform, newWebhookAdapter(url))
	}
}
