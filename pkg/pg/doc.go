// Package pg bootstraps the PostgreSQL layer behind the publish job store:
// connection pooling via pgx/v5, schema migrations via goose/v3, and a
// health check helper.
//
// Config is populated from environment variables (see field tags for names
// and defaults). Connect retries with a growing delay until the database is
// reachable, Migrate brings the schema up to date before the scheduler starts
// sweeping, and Healthcheck exposes a func(context.Context) error suitable
// for health registries.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    return err
//	}
package pg
