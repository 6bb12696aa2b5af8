// Package redis connects to the optional Redis server used for the webhook
// job store, rate-limit counters and the reminder sent-log.
//
// Connect retries the initial ping using Config.RetryAttempts and
// Config.RetryInterval, and Healthcheck adapts a client into a readiness
// probe. Errors are joined with the package sentinels so callers can use
// errors.Is.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package redis
