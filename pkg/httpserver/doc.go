// Package httpserver runs an http.Server tied to a context.
//
// Run binds the listener, serves until the context is cancelled and then
// shuts down gracefully, so it fits directly into an errgroup:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// HealthHandler turns dependency pings into a JSON readiness endpoint.
package httpserver
