// Package transport provides the HTTP middleware chain that wraps every
// tutogate route: request ID assignment (X-Request-ID), structured request
// logging via log/slog, and panic recovery. It also owns the JSON envelope
// used for success and error bodies, so the gates in pkg/auth and the route
// handlers in pkg/transport/http answer in the same shape:
//
//	{"success": false, "error": "<message>"}
//
// Middleware is plain net/http: func(http.Handler) http.Handler. Chain
// composes several of them, outermost first.
package transport
