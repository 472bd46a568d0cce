// Package server hosts the card catalog API behind a single HTTP server.
//
// It builds a consistent middleware chain of request IDs, logging, security
// headers, CORS, rate limiting, and session resolution so every handler sees
// the same protections and the same request context.
package server
