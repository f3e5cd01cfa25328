/*
Package server hosts the restkit kernel behind the HTTP middleware stack.

# Middleware Components

## Request ID (requestid.go)

RequestIDMiddleware keeps a valid UUID sent in X-Request-ID or generates one,
and adds it to:
  - The request context (accessible via GetRequestID)
  - The X-Request-ID response header

## Logging (logging.go)

LoggingMiddleware provides structured request logging using slog:
  - Logs request start at debug level (method, path, remote_addr)
  - Logs request completion (status, duration, api_code)
  - Supports custom log fields via AddLogField/AddError

## Timeout (timeout.go)

TimeoutMiddleware puts a deadline on the request context. Controllers that
return the context error are answered with a 504 envelope on REST routes.

# Middleware Chain Order

 1. RequestIDMiddleware (first, to generate request IDs)
 2. LoggingMiddleware (logs all requests)
 3. TimeoutMiddleware (enforces timeouts)
 4. Recoverer (catches panics outside the kernel)
 5. OTel instrumentation (OpenTelemetry)

# Hot reload

SwapHandler holds the kernel behind an atomic pointer so a config reload can
replace the whole pipeline without restarting the listener.

# Example Usage

	srv := server.New(server.Options{Port: 8080}, logger)
	srv.Router.Handle("/metrics", m.Handler())
	srv.Router.Mount("/", server.NewSwapHandler(k))
	err := srv.Run(ctx)
*/
package server
