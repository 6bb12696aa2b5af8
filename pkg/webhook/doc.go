// Package webhook ingests payment gateway webhooks: it verifies their HMAC
// signatures and processes them asynchronously with bounded retries.
//
// A Processor owns a single worker goroutine. Submit persists the job in a
// JobStore and wakes the worker, which picks due retries first and then
// pending jobs by priority and age. Handler errors are classified with
// apperr.IsRetryable: transient failures are retried with exponential
// backoff (1s, 2s, 4s, ... capped at 60s) up to MaxAttempts, everything else
// fails the job permanently and archives it for operator review.
//
// Retry due times are persisted rather than held in timers, so Recover can
// rebuild the queue after a restart. MemoryJobStore serves single-instance
// deployments, RedisJobStore keeps the queue in Redis.
//
//	verifier := webhook.NewVerifier(cfg.Secret, log)
//	proc := webhook.NewProcessor(handler,
//	    webhook.WithJobStore(webhook.NewRedisJobStore(rdb, cfg.RedisPrefix)),
//	    webhook.WithBackoff(cfg.Backoff()),
//	    webhook.WithLogger(log),
//	)
//	if err := verifier.Check(body, r.Header.Get(webhook.SignatureHeader)); err != nil {
//	    // reject with 401
//	}
//	job, err := proc.Submit(ctx, body, sig, nil, webhook.PriorityHigh)
//
// Idempotency is the handler's responsibility.
package webhook
