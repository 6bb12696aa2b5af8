// Package logger builds the *slog.Logger used across the billing engine.
//
// New returns a logger configured through functional options: output format,
// level, static attributes and ContextExtractor callbacks that pull request
// scoped values (request id, account id) out of context.Context on every
// record. Attribute helpers in attr.go keep key names consistent between the
// webhook processor, the payment service and the scheduler:
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "billingd"))
//	log.InfoContext(ctx, "payment verified",
//	    logger.AccountID(accountID),
//	    logger.PaymentID(paymentID),
//	)
//
// Helpers return an empty slog.Attr for nil or empty values so call sites do
// not need guards.
package logger
