// Package httpx holds the net/http middleware used by the admin server.
//
// A middleware is a plain wrapper:
//
//	type Middleware func(http.Handler) http.Handler
//
// Chain(a, b, c).Handler(h) returns a(b(c(h))). Nil middlewares are ignored and a nil
// endpoint panics.
//
//	base := httpx.Chain(httpx.RequestID(), httpx.Recover(), httpx.AccessLog())
//	srv := &http.Server{Handler: base.Handler(mux)}
//
// Recover and AccessLog report through log/slog and tag records with the request id
// set by RequestID.
package httpx
