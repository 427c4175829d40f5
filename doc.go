// Package prefetch is the HTTP request layer of a server-rendered front-end
// application. One Client issues requests identically from the server process
// and the browser-facing process, and a DataStore carries server-fetched
// results across the render/hydrate boundary so the consumer never refetches:
//
//   - Request/response interceptor chains for cross-cutting concerns
//     (auth injection, logging, cache busting)
//   - In-memory response caching keyed by method + URL + body, with TTL
//     invalidation and per-request overrides
//   - Bounded retry with a fixed delay and a per-attempt deadline
//   - A single normalized error shape for every failure
//   - An insertion-ordered key-value store serializable at the process
//     boundary (dehydrate on the producer, hydrate on the consumer)
//   - Optional Prometheus metrics and structured debug logging
//
// Design goals:
//   - Per-cycle construction: a fresh Client, cache and DataStore per
//     request/render cycle, never process-wide state
//   - Small surface area, functional options configure everything
//   - Safe concurrent use of one Cycle's instances during parallel fan-out
//
// Typical producer cycle:
//
//	cycle := prefetch.NewCycle(
//	    prefetch.WithBaseURL("https://api.example.com"),
//	    prefetch.WithRetryCount(3),
//	    prefetch.WithCacheTTL(5*time.Minute),
//	)
//	user, err := cycle.Prefetch(ctx, "user", "/api/user", nil)
//	state, err := cycle.Dehydrate() // embed at the well-known location
//
// The consuming cycle calls Hydrate(state) before any read; Prefetch then
// serves "user" from the store without touching the network.
package prefetch
