// Package pg wraps pgx/v5 for the billing engine: pool construction with
// retries, goose migrations from an embedded filesystem, a ping health check
// and a DB type that binds transactions to a context.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, migrations, cfg.MigrationsTable, log); err != nil {
//		return err
//	}
//
//	db := pg.NewDB(pool)
//	err = db.WithinTx(ctx, func(ctx context.Context) error {
//		_, err := db.Conn(ctx).Exec(ctx, "SELECT 1")
//		return err
//	})
//
// Nested WithinTx calls join the outer transaction.
package pg
