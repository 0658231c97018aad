// Package httpserver runs an http.Server whose lifetime follows a context.
//
// Start listens, serves, and shuts down gracefully when its context ends;
// Run wraps Start for errgroup. Config carries the env-driven timeouts.
// HealthCheckHandler serves liveness and readiness probes.
//
//	srv := httpserver.NewFromConfig(cfg, router, httpserver.WithServerLogger(log))
//	g.Go(srv.Run(ctx))
package httpserver
