// Package api defines the wire types and OpenAPI-compatible surface of the
// smart-router gateway.
//
// # API Overview
//
// The gateway exposes:
//   - POST /v1/chat/completions — chat completions with automatic prompt
//     classification, provider/model selection, and upstream fallback
//   - GET /v1/models — the model registry, filtered to providers currently
//     in the availability set
//   - GET /health — liveness plus provider/profile counts
//
// # Authentication
//
// Authorization: Bearer sk-sr-... is validated against the API-key registry
// when one is configured; its absence is permitted.
//
// # Base URL
//
// The default base URL is http://localhost:8080, configurable via
// SMART_ROUTER_PORT / config.ServerConfig.HTTPPort.
package api
