// Package httpapi exposes an Engine over a small JSON API.
//
// Routes:
//
//	POST /v1/hash          raw hex mode
//	POST /v1/hash/encoded  PHC encoded mode
//	POST /v1/verify        verification, throttled when a subject is given
//	GET  /healthz          throttle backend health
//	GET  /metrics          Prometheus text exposition
//
// Request bodies are normalized with mold and checked with validator before
// they reach the engine. Passwords are never modified or logged.
package httpapi
